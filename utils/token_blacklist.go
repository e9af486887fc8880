package utils

import (
	"context"
	"time"
)

const revokedTokenPrefix = "jwt:blacklist:"

// IsTokenBlacklisted checks the revocation list the account service maintains in Redis on logout.
// Without Redis nothing is considered revoked.
func IsTokenBlacklisted(token string) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := rc.Exists(ctx, revokedTokenPrefix+token).Result()
	if err != nil {
		// Fail open
		Sugar.Warnf("revocation lookup failed err=%v", err)
		return false
	}
	return n > 0
}
