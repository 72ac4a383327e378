package repository

import (
	"errors"
	"fmt"
	"strings"
)

// Shared storage-boundary sentinels. VersionConflict means an optimistic
// concurrency check lost the race and the caller may retry; StoreUnavailable
// wraps transient connectivity failures.
var (
	ErrVersionConflict   = errors.New("version conflict")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// wrapTransient tags connectivity failures as ErrStoreUnavailable so the
// service retry loop can distinguish them from permanent errors.
func wrapTransient(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout") {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
