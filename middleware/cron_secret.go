package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/podstreak/config"
	"github.com/cppla/podstreak/utils"
)

// CronSecretHeader carries the scheduler's shared secret.
const CronSecretHeader = "X-Cron-Secret"

// CronSecretRequired guards scheduler-only endpoints. The secret is read from X-Cron-Secret or,
// failing that, a bearer token. With no secret configured every request is rejected.
func CronSecretRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		expected := config.Get().CronSecret
		if expected == "" {
			utils.Sugar.Warnw("cron trigger rejected: no secret configured", "path", ctx.Request.URL.Path)
			utils.Abort(ctx, http.StatusUnauthorized, 40120, "unauthorized")
			return
		}

		provided := ctx.GetHeader(CronSecretHeader)
		if provided == "" {
			provided, _, _ = bearerToken(ctx)
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			utils.Sugar.Warnw("cron trigger rejected: secret mismatch", "path", ctx.Request.URL.Path, "ip", ctx.ClientIP())
			utils.Abort(ctx, http.StatusUnauthorized, 40120, "unauthorized")
			return
		}
		ctx.Next()
	}
}
