package middleware

import (
	"net/http"

	"account-service/pkg/utils"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Recover turns a handler panic into a 500 envelope. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				utils.ResponseInternalError(w, "Internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
