package streak

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrNoRestoresRemaining is returned when the monthly restore quota is used up.
	ErrNoRestoresRemaining = errors.New("no streak restores remaining this month")
	// ErrInvalidDate is returned when a restore targets a day after the user's today.
	ErrInvalidDate = errors.New("cannot restore a future date")
	// ErrAlreadySuccessful is returned when the restore target already has a successful check-in.
	ErrAlreadySuccessful = errors.New("date is already recorded as successful")

	errDuplicateCheckIn = errors.New("check-in already recorded for this date")
)

// logical errors are outcomes of the request itself and are never retried.
var logicalErrors = []error{
	ErrNotFound,
	ErrNoRestoresRemaining,
	ErrInvalidDate,
	ErrAlreadySuccessful,
	errDuplicateCheckIn,
	gorm.ErrRecordNotFound,
	gorm.ErrDuplicatedKey,
	gorm.ErrInvalidTransaction,
	context.Canceled,
	context.DeadlineExceeded,
}

var transientMarkers = []string{
	"invalid connection",
	"bad connection",
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"server has gone away",
	"too many connections",
	"database is locked",
}

// IsTransient classifies err as a storage-connectivity failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	for _, logical := range logicalErrors {
		if errors.Is(err, logical) {
			return false
		}
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
