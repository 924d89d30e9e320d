package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrPolicyNotAccepted    = errors.New("privacy policy not accepted")
	ErrInvalidForm          = errors.New("invalid checkout form")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrSubmissionInProgress = errors.New("order submission already in progress")

	// ErrPermanent marks sink failures that resubmitting cannot fix.
	ErrPermanent = errors.New("order rejected permanently")
)

// DispatchError is returned when the order could not be handed to the sink.
type DispatchError struct {
	Retryable  bool
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("order dispatch failed (%s, status %d): %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("order dispatch failed (%s): %v", kind, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a dispatch failure worth resubmitting.
func IsRetryable(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Retryable
}
