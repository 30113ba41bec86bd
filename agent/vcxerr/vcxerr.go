// Package vcxerr is the error taxonomy of the credential exchange core. Every
// error returned over a public API of this module is, or wraps, an *Error
// which carries a Kind. Callers branch with errors.Is:
//
//	if errors.Is(err, vcxerr.InvalidState) { ... }
package vcxerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error. Kind implements error itself so that it can be
// used as an errors.Is target.
type Kind int

const (
	Unknown Kind = iota
	InvalidState
	InvalidHandle
	InvalidAttributes
	InvalidOption
	NotFound
	AlreadyExists
	UnknownCryptoMethod
	VerificationFailed
	Timeout
	Expired
	InvalidCredentialHandle
	InvalidProofCredentialData
	InvalidJSON
	InvalidConnection
	Unauthorized
)

var kindInfo = [...]struct {
	code int
	text string
}{
	Unknown:                    {1001, "unknown error"},
	InvalidState:               {1081, "object not in valid state for the operation"},
	InvalidHandle:              {1048, "invalid object handle"},
	InvalidAttributes:          {1021, "attributes are not correct"},
	InvalidOption:              {1007, "invalid option"},
	NotFound:                   {1073, "not found"},
	AlreadyExists:              {1068, "already exists"},
	UnknownCryptoMethod:        {1065, "unknown crypto method"},
	VerificationFailed:         {1032, "verification failed"},
	Timeout:                    {1038, "timed out"},
	Expired:                    {1039, "expired"},
	InvalidCredentialHandle:    {1053, "invalid credential handle"},
	InvalidProofCredentialData: {1027, "proof does not have valid credentials"},
	InvalidJSON:                {1016, "invalid JSON string"},
	InvalidConnection:          {1003, "invalid connection"},
	Unauthorized:               {1028, "ledger request not authorized"},
}

func (k Kind) valid() bool {
	return k >= Unknown && int(k) < len(kindInfo)
}

// Code returns libvcx compatible numeric error code.
func (k Kind) Code() int {
	if !k.valid() {
		return kindInfo[Unknown].code
	}
	return kindInfo[k].code
}

func (k Kind) Error() string {
	if !k.valid() {
		return kindInfo[Unknown].text
	}
	return kindInfo[k].text
}

func (k Kind) String() string {
	return k.Error()
}

// Error is the concrete error type of the module.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns a new error of the kind with a formatted message.
func New(k Kind, format string, a ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches the kind to err. Wrap(k, nil) returns nil.
func Wrap(k Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Msg != "" {
		s = e.Msg + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is the same Kind or an *Error of the same
// Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind && (t.Msg == "" || t.Msg == e.Msg)
	}
	return false
}

// KindOf returns the first Kind found from the err chain, Unknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Unknown
}

// Code returns numeric code of the err, 0 for nil.
func Code(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).Code()
}
