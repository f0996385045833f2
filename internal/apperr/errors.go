package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service layer wraps exactly one of
// these; callers classify with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrStockConflict    = errors.New("stock conflict")
	ErrStoreUnavailable = errors.New("service unavailable")
	ErrConflict         = errors.New("conflict")
	ErrPaymentRejected  = errors.New("payment rejected")
	ErrInternal         = errors.New("internal error")
)

// Validation reports malformed input detected before any store access.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound reports an unresolvable product, address, cart line or order.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// StockConflict reports a requested quantity above the stock seen at check time.
func StockConflict(productID string, requested, available int) error {
	return fmt.Errorf("%w: product %s requested=%d available=%d", ErrStockConflict, productID, requested, available)
}

// StockReserveConflict reports a conditional decrement that found too little
// stock. The remaining quantity is not known at that point.
func StockReserveConflict(productID string, requested int) error {
	return fmt.Errorf("%w: product %s requested=%d exceeds remaining stock", ErrStockConflict, productID, requested)
}

// Unavailable reports a backing store that is not ready.
func Unavailable(store string) error {
	return fmt.Errorf("%w: %s store not ready", ErrStoreUnavailable, store)
}

// Conflict reports a retryable write conflict.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// PaymentRejected reports a payment reference that failed verification.
func PaymentRejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPaymentRejected, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure. The caller must not assume the
// operation did or did not partially apply.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", ErrInternal, op, err)
}

// Kind returns the taxonomy sentinel err wraps, or ErrInternal when it wraps none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrStockConflict,
		ErrStoreUnavailable,
		ErrConflict,
		ErrPaymentRejected,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStockConflict)
}
