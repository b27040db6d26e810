package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/coin-tracker/internal/models"
)

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindDataIntegrity:
		return http.StatusUnprocessableEntity
	case models.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the status for err's kind. Internal failures get a
// generic message.
func writeError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := StatusFor(kind)

	msg := "Internal server error"
	if status != http.StatusInternalServerError {
		msg = rootMessage(err)
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind.String()})
}

// rootMessage strips the operation prefixes of classified errors
func rootMessage(err error) string {
	var e *models.Error
	for errors.As(err, &e) && e.Err != nil {
		err = e.Err
	}
	return err.Error()
}
