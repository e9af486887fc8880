package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/podstreak/streak"
	"github.com/cppla/podstreak/utils"
)

// CronController exposes scheduler-triggered maintenance.
type CronController struct {
	engine *streak.Engine
}

// NewCronController creates a new controller instance.
func NewCronController(engine *streak.Engine) *CronController {
	return &CronController{engine: engine}
}

// ExpireStreaks runs one expiry sweep and reports the users whose streaks were zeroed.
func (c *CronController) ExpireStreaks(ctx *gin.Context) {
	summary, err := c.engine.CheckAndBreakExpiredStreaks(ctx.Request.Context())
	if err != nil {
		utils.Sugar.Errorw("expiry sweep failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "expiry sweep failed")
		return
	}
	if summary.BrokenStreaks > 0 {
		utils.InvalidateByPrefix(utils.StatusCachePrefix())
	}
	utils.Success(ctx, summary)
}
