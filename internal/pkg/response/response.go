package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Error aborts with an error body.
func Error(c *gin.Context, status int, errText, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: errText, Message: message})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, errText, message string) {
	Error(c, http.StatusBadRequest, errText, message)
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, "Not found", message)
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, "Method not allowed", "")
}

// InternalError sends a 500 error response.
func InternalError(c *gin.Context, errText string, err error) {
	Error(c, http.StatusInternalServerError, errText, errMessage(err))
}

// BadGateway sends a 502 error response.
func BadGateway(c *gin.Context, errText string, err error) {
	Error(c, http.StatusBadGateway, errText, errMessage(err))
}

// ServiceUnavailable sends a 503 error response.
func ServiceUnavailable(c *gin.Context, errText string, err error) {
	Error(c, http.StatusServiceUnavailable, errText, errMessage(err))
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context, message string) {
	c.Header("Retry-After", "1")
	Error(c, http.StatusTooManyRequests, "Too many requests", message)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
