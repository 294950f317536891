package usecases

import (
	"strings"

	"chainhub.backend/internal/domain/entities"
)

// retryableErrorTexts are provider failure modes that may succeed on a later
// attempt. Anything else (invalid recipient, unsupported token, malformed
// intent) will fail identically every time.
var retryableErrorTexts = []string{
	"insufficient balance",
	"network error",
	"timeout",
	"gas estimation failed",
}

func isRetryableError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, text := range retryableErrorTexts {
		if strings.Contains(lower, text) {
			return true
		}
	}
	return false
}

// canRetryOperation reports whether a failed operation is worth rebuilding.
// Only failed operations with a transient error and a stored intent qualify.
func canRetryOperation(op *entities.Operation) bool {
	if op.Status != entities.OperationStatusFailed {
		return false
	}
	if len(op.Intent) == 0 || string(op.Intent) == "{}" {
		return false
	}
	return isRetryableError(op.ErrorMessage.String)
}
