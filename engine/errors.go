package engine

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was rejected. Every rejection aborts the
// whole operation.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindNotAuthorized
	KindInvalidState
	KindInactiveAuction
	KindBidTooLow
	KindReserveNotMet
	KindInsufficientOwnBalance
	KindCurrencyMismatch
	KindTransferFailed
	KindAlreadySet
	KindInvalidArgument
	KindReentrant
)

var kindNames = [...]string{
	KindUnknown:                "unknown",
	KindNotFound:               "not_found",
	KindNotAuthorized:          "not_authorized",
	KindInvalidState:           "invalid_state",
	KindInactiveAuction:        "inactive_auction",
	KindBidTooLow:              "bid_too_low",
	KindReserveNotMet:          "reserve_not_met",
	KindInsufficientOwnBalance: "insufficient_own_balance",
	KindCurrencyMismatch:       "currency_mismatch",
	KindTransferFailed:         "transfer_failed",
	KindAlreadySet:             "already_set",
	KindInvalidArgument:        "invalid_argument",
	KindReentrant:              "reentrant",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Sentinels for errors.Is.
var (
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrNotAuthorized          = &Error{Kind: KindNotAuthorized}
	ErrInvalidState           = &Error{Kind: KindInvalidState}
	ErrInactiveAuction        = &Error{Kind: KindInactiveAuction}
	ErrBidTooLow              = &Error{Kind: KindBidTooLow}
	ErrReserveNotMet          = &Error{Kind: KindReserveNotMet}
	ErrInsufficientOwnBalance = &Error{Kind: KindInsufficientOwnBalance}
	ErrCurrencyMismatch       = &Error{Kind: KindCurrencyMismatch}
	ErrTransferFailed         = &Error{Kind: KindTransferFailed}
	ErrAlreadySet             = &Error{Kind: KindAlreadySet}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrReentrant              = &Error{Kind: KindReentrant}
)

// Error is returned by every engine operation that rejects its input or
// fails to complete.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg = e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}
