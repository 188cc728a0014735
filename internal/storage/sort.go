package storage

import (
	"cmp"
	"slices"
	"strings"
)

func sortStable[T any](items []T, fn func(a, b T) int) {
	slices.SortStableFunc(items, fn)
}

func compareDesc(a, b float64) int {
	return cmp.Compare(b, a)
}

func compareString(a, b string) int {
	return strings.Compare(a, b)
}
