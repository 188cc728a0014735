// Command resolver serves and queries the mention resolver.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/scrypster/resolver/internal/logger"
)

func main() {
	// Optional; variables already set in the environment win.
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
