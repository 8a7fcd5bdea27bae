package middlewares

import (
	"courtbook/src/config"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SecureHeaders(ctx *gin.Context) {
	h := ctx.Writer.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	if config.String("API_ENV", "local") != "local" {
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	}
	ctx.Next()
}

// MaintenanceMode rejects every request while MAINTENANCE_MODE is true.
func MaintenanceMode(ctx *gin.Context) {
	if config.Bool("MAINTENANCE_MODE", false) {
		err := errors.New("server is under maintenance")
		log.Println(err.Error())
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	ctx.Next()
}
