// Package response holds the shared JSON envelope for the Courtly API.
package response

import "github.com/gin-gonic/gin"

// RespondJSON writes the standard envelope. Handlers pass structured
// domain detail (slot conflicts, field validation) through errors so the
// client can act on it without parsing the message text.
func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}
