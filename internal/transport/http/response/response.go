package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response. Failures carry only Message.
type Envelope struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Data: data})
}

func Message(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Envelope{Message: message})
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, Envelope{Message: message})
}
