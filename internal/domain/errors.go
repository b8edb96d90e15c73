package domain

import (
	"errors"
	"fmt"
)

// Error kinds as surfaced in the status store.
const (
	KindSignalUnavailable = "signal_unavailable"
	KindVenueQuery        = "venue_query"
	KindVenueOrder        = "venue_order"
	KindConflict          = "conflict"
	KindNoPosition        = "no_position"
	KindInternal          = "internal"
)

var (
	ErrSignalUnavailable = errors.New("signal unavailable")
	// ErrConflict is returned when opening while a position is already open.
	ErrConflict = errors.New("position already open")
	// ErrNoPosition is returned when closing while flat.
	ErrNoPosition = errors.New("no open position")
)

// VenueQueryError wraps a failed balance or price read.
type VenueQueryError struct {
	Op  string
	Err error
}

func (e *VenueQueryError) Error() string { return fmt.Sprintf("venue query %s: %v", e.Op, e.Err) }
func (e *VenueQueryError) Unwrap() error { return e.Err }

// VenueOrderError wraps a rejected or failed order placement.
type VenueOrderError struct {
	Side Side
	Err  error
}

func (e *VenueOrderError) Error() string {
	return fmt.Sprintf("venue order %s: %v", e.Side, e.Err)
}
func (e *VenueOrderError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var qe *VenueQueryError
	var oe *VenueOrderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSignalUnavailable):
		return KindSignalUnavailable
	case errors.As(err, &qe):
		return KindVenueQuery
	case errors.As(err, &oe):
		return KindVenueOrder
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNoPosition):
		return KindNoPosition
	default:
		return KindInternal
	}
}
