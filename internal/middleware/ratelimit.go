package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/jengzang/mvtypes-go/pkg/response"
)

// RunLimiter bounds how many classification runs execute at once.
// Requests wait for a slot until their context ends.
type RunLimiter struct {
	sem *semaphore.Weighted
}

// NewRunLimiter creates a limiter admitting n concurrent runs (at least one)
func NewRunLimiter(n int) *RunLimiter {
	if n < 1 {
		n = 1
	}
	return &RunLimiter{sem: semaphore.NewWeighted(int64(n))}
}

// Middleware holds a slot for the duration of the request
func (rl *RunLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rl.sem.Acquire(c.Request.Context(), 1); err != nil {
			response.Abort(c, http.StatusServiceUnavailable, "Too many concurrent runs")
			return
		}
		defer rl.sem.Release(1)

		c.Next()
	}
}
