package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shucway/internal/core/apperror"
	"shucway/pkg/logger"
)

// Recovery recovers from panics and returns a generic 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperror.CodeInternal,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
