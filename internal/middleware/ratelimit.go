package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimit allows requests per client IP per fixed window, answering
// 429 with the error envelope once a client is over. A non-positive
// requests value disables limiting.
func RateLimit(requests int, window time.Duration, log *zap.SugaredLogger) gin.HandlerFunc {
	if requests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	rate := limiter.Rate{Period: window, Limit: int64(requests)}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "stackit_ratelimit",
		CleanUpInterval: window,
	})

	return mgin.NewMiddleware(limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			abort(c, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Errorw("rate limiter failed", "client_ip", c.ClientIP(), "error", err)
			abort(c, http.StatusInternalServerError, "Internal server error")
		}),
	)
}
