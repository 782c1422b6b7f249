package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/apperr"
)

// respondError translates a service error into its HTTP response. Internal
// causes are logged, never sent to the client.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if appErr.Kind == apperr.KindInternal {
			log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), appErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": string(apperr.KindInternal)})
			return
		}
		c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr.Message, "code": string(appErr.Kind)})
		return
	}
	log.Printf("Unclassified error on %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": string(apperr.KindInternal)})
}
