package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	domainerrors "chainhub.backend/internal/domain/errors"
)

// Success sends a success response
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// Error sends an error response
func Error(c *gin.Context, err error) {
	var appErr *domainerrors.AppError
	if !errors.As(err, &appErr) {
		// Default to Internal Server Error if not an AppError
		appErr = domainerrors.InternalError(err)
	}

	status := appErr.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"code":    status,
		"message": appErr.Message,
		"error":   appErr.Message,
	})
}
