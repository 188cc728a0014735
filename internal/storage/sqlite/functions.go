package sqlite

import (
	"database/sql/driver"
	"sync"

	msqlite "modernc.org/sqlite"

	"github.com/scrypster/resolver/internal/textsim"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions installs the resolver's scalar SQL functions with the
// driver. Registration is process-wide and happens once.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction("resolver_normalize", 1, normalizeFunc)
		if registerErr != nil {
			return
		}
		registerErr = msqlite.RegisterDeterministicScalarFunction("resolver_similarity", 2, similarityFunc)
	})
	return registerErr
}

// normalizeFunc implements resolver_normalize(text).
func normalizeFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	s, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	return textsim.Normalize(s), nil
}

// similarityFunc implements resolver_similarity(a, b). NULL operands score 0.
func similarityFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, okA := textArg(args[0])
	b, okB := textArg(args[1])
	if !okA || !okB {
		return 0.0, nil
	}
	return textsim.Similarity(a, b), nil
}

func textArg(v driver.Value) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
