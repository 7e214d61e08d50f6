package service

import (
	"errors"
)

// User-visible, no automatic retry.
var (
	// ErrBoardFull means a bounded board has no free coordinate left.
	ErrBoardFull = errors.New("board full")
	// ErrDateTaken means the featured date is held by a pending or paid
	// booking. Never retried onto another date.
	ErrDateTaken = errors.New("date already booked")
	// ErrSubscriptionNotEligible means the merchant's billing state blocks
	// the operation; the merchant must resolve billing first.
	ErrSubscriptionNotEligible = errors.New("subscription not eligible")
	ErrAlreadySubscribed       = errors.New("merchant already has a subscription")
	// ErrReactivateWindowPassed: the period closed with the cancel flag set,
	// only a fresh subscription can follow.
	ErrReactivateWindowPassed = errors.New("reactivation window passed")
	ErrNotOwner               = errors.New("listing not owned by merchant")
	ErrDateOutOfRange         = errors.New("date outside bookable range")
	ErrBookingNotCancelable   = errors.New("booking cannot be canceled")
	ErrListingNotActive       = errors.New("listing is not active")
	ErrBoardMismatch          = errors.New("listing does not belong to board")
	ErrNotFound               = errors.New("not found")
)

// ErrTransientConflict: slot scanning lost the coordinate race more times
// than the retry budget allows. Surfaced as 503, safe for the caller to
// retry.
var ErrTransientConflict = errors.New("transient allocation conflict")
