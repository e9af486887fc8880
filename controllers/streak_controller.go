package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/podstreak/calendar"
	"github.com/cppla/podstreak/middleware"
	"github.com/cppla/podstreak/streak"
	"github.com/cppla/podstreak/utils"
)

// StreakController handles the authenticated streak endpoints.
type StreakController struct {
	engine   *streak.Engine
	cacheTTL time.Duration
}

// NewStreakController creates a new controller instance. Status responses are cached for cacheTTL
// when Redis is enabled.
func NewStreakController(engine *streak.Engine, cacheTTL time.Duration) *StreakController {
	return &StreakController{engine: engine, cacheTTL: cacheTTL}
}

type checkInRequest struct {
	StayedOnTrack *bool `json:"stayed_on_track" binding:"required"`
}

type restoreRequest struct {
	RestoreDate string `json:"restore_date"`
}

// CheckIn records today's outcome for the caller.
func (s *StreakController) CheckIn(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req checkInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "stayed_on_track is required")
		return
	}

	res, err := s.engine.ProcessCheckIn(ctx.Request.Context(), userID, *req.StayedOnTrack, time.Time{})
	if err != nil {
		respondStreakError(ctx, err, 50010, "failed to record check-in")
		return
	}
	if res.Success {
		utils.CacheDelete(utils.StatusCacheKey(userID))
	}
	utils.Success(ctx, res)
}

// Status returns the caller's streak health.
func (s *StreakController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	key := utils.StatusCacheKey(userID)
	var cached streak.Status
	if utils.CacheGetJSON(key, &cached) {
		utils.Success(ctx, cached)
		return
	}

	status, err := s.engine.GetStreakStatus(ctx.Request.Context(), userID)
	if err != nil {
		respondStreakError(ctx, err, 50011, "failed to load streak status")
		return
	}
	utils.CacheSetJSON(key, status, s.cacheTTL)
	utils.Success(ctx, status)
}

// Restore spends one monthly restore on a missed day, yesterday unless restore_date is given.
func (s *StreakController) Restore(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req restoreRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request body")
			return
		}
	}

	var target *calendar.Date
	if raw := strings.TrimSpace(req.RestoreDate); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40012, "restore_date must be YYYY-MM-DD")
			return
		}
		target = &d
	}

	res, err := s.engine.UseStreakRestore(ctx.Request.Context(), userID, target)
	if err != nil {
		respondStreakError(ctx, err, 50012, "failed to restore streak")
		return
	}
	utils.CacheDelete(utils.StatusCacheKey(userID))
	utils.Success(ctx, res)
}

// History lists the caller's latest restores with the remaining monthly quota.
func (s *StreakController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	history, err := s.engine.GetRestoreHistory(ctx.Request.Context(), userID)
	if err != nil {
		respondStreakError(ctx, err, 50013, "failed to load restore history")
		return
	}
	utils.Success(ctx, history)
}

// respondStreakError maps engine errors to the JSON envelope. Unknown errors are logged and
// reported with the caller's fallback code.
func respondStreakError(ctx *gin.Context, err error, code int, msg string) {
	switch {
	case errors.Is(err, streak.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
	case errors.Is(err, streak.ErrNoRestoresRemaining):
		utils.Error(ctx, http.StatusConflict, 40910, streak.ErrNoRestoresRemaining.Error())
	case errors.Is(err, streak.ErrAlreadySuccessful):
		utils.Error(ctx, http.StatusConflict, 40911, streak.ErrAlreadySuccessful.Error())
	case errors.Is(err, streak.ErrInvalidDate):
		utils.Error(ctx, http.StatusBadRequest, 40013, streak.ErrInvalidDate.Error())
	default:
		userID, _ := getUserID(ctx)
		utils.Logger.Error(msg,
			zap.Uint("user_id", userID),
			zap.String("request_id", ctx.GetString(middleware.ContextRequestIDKey)),
			zap.Error(err),
		)
		utils.Error(ctx, http.StatusInternalServerError, code, msg)
	}
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}
