package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Status is the body of GET /health.
type Status struct {
	Status    string    `json:"status"`
	Property  string    `json:"property"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRoutes mounts GET /health. It only reports that the process is serving; it does
// not call the analytics backend.
func RegisterRoutes(rg gin.IRoutes, property string, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	rg.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, Status{
			Status:    "healthy",
			Property:  property,
			Timestamp: now().UTC(),
		})
	})
}
