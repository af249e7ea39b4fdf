package errors

import (
	"os"

	"go.uber.org/zap"
)

// ExitWithCode logs the failure and terminates the process with the given
// exit code. Codes come from gofulmen's foundry catalog so scripts can rely
// on stable values.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	if logger != nil {
		if err != nil {
			logger.Error(message, zap.Error(err), zap.Int("exit_code", code))
		} else {
			logger.Error(message, zap.Int("exit_code", code))
		}
		_ = logger.Sync()
	}
	os.Exit(code)
}
