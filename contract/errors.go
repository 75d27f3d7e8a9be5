package contract

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable number of a protocol error, clients switch on it.
type ErrorCode uint32

const (
	CodeProjectNotFound ErrorCode = iota + 1
	CodeMilestoneNotFound
	CodeMilestoneAlreadyReleased
	CodeInsufficientBalance
	CodeInvalidMilestones
	CodeNotAuthorized
	CodeInvalidGoal
	CodeAlreadyInitialized
	CodeRoleNotFound
	CodeTooManyTokens
	CodeInvalidAmount
	CodeDuplicateToken
	CodeInvalidDeadline
	CodeProjectExpired
	CodeProjectNotActive
	CodeVerificationFailed
	CodeEmptyAcceptedTokens
	CodeOverflow
	CodeProtocolPaused
	CodeTokenNotAccepted
)

var codeNames = map[ErrorCode]string{
	CodeProjectNotFound:          "ProjectNotFound",
	CodeMilestoneNotFound:        "MilestoneNotFound",
	CodeMilestoneAlreadyReleased: "MilestoneAlreadyReleased",
	CodeInsufficientBalance:      "InsufficientBalance",
	CodeInvalidMilestones:        "InvalidMilestones",
	CodeNotAuthorized:            "NotAuthorized",
	CodeInvalidGoal:              "InvalidGoal",
	CodeAlreadyInitialized:       "AlreadyInitialized",
	CodeRoleNotFound:             "RoleNotFound",
	CodeTooManyTokens:            "TooManyTokens",
	CodeInvalidAmount:            "InvalidAmount",
	CodeDuplicateToken:           "DuplicateToken",
	CodeInvalidDeadline:          "InvalidDeadline",
	CodeProjectExpired:           "ProjectExpired",
	CodeProjectNotActive:         "ProjectNotActive",
	CodeVerificationFailed:       "VerificationFailed",
	CodeEmptyAcceptedTokens:      "EmptyAcceptedTokens",
	CodeOverflow:                 "Overflow",
	CodeProtocolPaused:           "ProtocolPaused",
	CodeTokenNotAccepted:         "TokenNotAccepted",
}

func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ErrorCode(%d)", uint32(c))
}

// Error is a protocol failure. Two errors match under errors.Is when their codes match,
// so callers compare against the Err* sentinels below.
type Error struct {
	Code  ErrorCode
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCause returns a copy carrying the underlying failure.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Cause = err
	return &cp
}

func errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol code from err, false when err is a host or backend failure.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

var (
	ErrProjectNotFound          = &Error{Code: CodeProjectNotFound}
	ErrMilestoneNotFound        = &Error{Code: CodeMilestoneNotFound}
	ErrMilestoneAlreadyReleased = &Error{Code: CodeMilestoneAlreadyReleased}
	ErrInsufficientBalance      = &Error{Code: CodeInsufficientBalance}
	ErrInvalidMilestones        = &Error{Code: CodeInvalidMilestones}
	ErrNotAuthorized            = &Error{Code: CodeNotAuthorized}
	ErrInvalidGoal              = &Error{Code: CodeInvalidGoal}
	ErrAlreadyInitialized       = &Error{Code: CodeAlreadyInitialized}
	ErrRoleNotFound             = &Error{Code: CodeRoleNotFound}
	ErrTooManyTokens            = &Error{Code: CodeTooManyTokens}
	ErrInvalidAmount            = &Error{Code: CodeInvalidAmount}
	ErrDuplicateToken           = &Error{Code: CodeDuplicateToken}
	ErrInvalidDeadline          = &Error{Code: CodeInvalidDeadline}
	ErrProjectExpired           = &Error{Code: CodeProjectExpired}
	ErrProjectNotActive         = &Error{Code: CodeProjectNotActive}
	ErrVerificationFailed       = &Error{Code: CodeVerificationFailed}
	ErrEmptyAcceptedTokens      = &Error{Code: CodeEmptyAcceptedTokens}
	ErrOverflow                 = &Error{Code: CodeOverflow}
	ErrProtocolPaused           = &Error{Code: CodeProtocolPaused}
	ErrTokenNotAccepted         = &Error{Code: CodeTokenNotAccepted}
)
