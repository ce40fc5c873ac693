package webui

import (
	"mime"
	"net/http"
	"time"

	"codeagent/internal/logging"

	"github.com/gin-gonic/gin"
)

// jsonMiddleware rejects write requests whose body is not JSON.
func jsonMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if contentType := c.GetHeader("Content-Type"); contentType != "" {
				mediaType, _, err := mime.ParseMediaType(contentType)
				if err != nil || mediaType != "application/json" {
					c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, APIResponse{
						Success: false,
						Error:   "Content-Type must be application/json",
					})
					return
				}
			}
		}
		c.Next()
	}
}

// requestLogger logs one line per request through the component logger.
func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(started))
	}
}
