package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrNoFavorites     = errors.New("no favorites")
	ErrUpstream        = errors.New("upstream error")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrCatalogNotReady = errors.New("catalog not ready")
	ErrAlreadyRecorded = errors.New("battle already recorded")
)

type UpstreamError struct {
	Category   Category
	Key        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s:%s: provider returned status %d", e.Category, e.Key, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s:%s: %v", e.Category, e.Key, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	switch target {
	case ErrUpstream:
		return true
	case ErrUpstreamTimeout:
		return e.Timeout()
	}
	return false
}

func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, ErrUpstreamTimeout)
}

type NoFavoritesError struct {
	PlayerName string
}

func (e *NoFavoritesError) Error() string {
	return fmt.Sprintf("%s has no Pokemon in their favorites list", e.PlayerName)
}

func (e *NoFavoritesError) Is(target error) bool {
	return target == ErrNoFavorites
}

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
