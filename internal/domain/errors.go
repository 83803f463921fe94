package domain

import "errors"

// Validation errors: rejected before any state mutation, recoverable by the
// caller retrying with corrected input.
var (
	ErrZeroAddress         = errors.New("address cannot be zero")
	ErrZeroAmount          = errors.New("amount cannot be zero")
	ErrInvalidFee          = errors.New("fee exceeds 10000 basis points")
	ErrNoArrayParity       = errors.New("batch input arrays must have equal length")
	ErrBatchTooLarge       = errors.New("batch size exceeds limit")
	ErrInvalidListing      = errors.New("invalid listing parameters")
	ErrListingNotFound     = errors.New("no active listing for owner")
	ErrBelowMinFraction    = errors.New("fraction amount below listing minimum")
	ErrExceedsListed       = errors.New("fraction amount exceeds listed quantity")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnsupportedCurrency = errors.New("settlement currency not supported")
)

// Temporal errors: policy rejections tied to the clock, not bugs.
var (
	ErrDueDateNotPassed = errors.New("asset due date has not passed")
	ErrDueDatePassed    = errors.New("asset due date has passed")
	ErrOfferExpired     = errors.New("offer deadline has expired")
)

// Authorization errors: security-critical, never silently ignored.
var (
	ErrMissingRole      = errors.New("actor lacks required role")
	ErrInvalidSignature = errors.New("signature does not recover to owner")
	ErrNotOfferor       = errors.New("caller is not the claimed offeror")
)

// Integrity errors: state-machine violations, fatal for the operation.
var (
	ErrAssetAlreadyCreated = errors.New("asset already created for id pair")
	ErrAssetNotFound       = errors.New("asset not found")
)
