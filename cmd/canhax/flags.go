package main

import (
	"fmt"
	"os"

	"github.com/rybolov/Can-Hax/errors"
)

// getEnv returns the environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// inputMissing reports a missing required argument as a fatal input error.
func inputMissing(method, format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrInputMissing, fmt.Sprintf(format, args...)),
		"canhax", method, "check arguments")
}
