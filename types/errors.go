package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type ErrorKind string

const (
	// KindParseMalformed is never surfaced; malformed input degrades to text.
	KindParseMalformed ErrorKind = "parse_malformed"
	KindValidation     ErrorKind = "validation"
	KindNetwork        ErrorKind = "network"
	KindUnavailable    ErrorKind = "unavailable"
	KindRejected       ErrorKind = "rejected"
)

const (
	genericUnavailableMessage = "This service is temporarily unavailable. Please try again in a moment."
	genericRejectedMessage    = "We could not process this request. Please check your input and try again."
	maxSafeMessageLen         = 160
)

// ActionError is the failure of one block action. It is rendered inline on
// the failing instance only.
type ActionError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *ActionError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Endpoint != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Endpoint)
	}
	if e.Status != 0 {
		sb.WriteString(fmt.Sprintf(" (status %d)", e.Status))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown inside the block. Service failures get a
// generic message so they are never confused with input mistakes.
func (e *ActionError) UserMessage() string {
	switch e.Kind {
	case KindValidation:
		return e.Message
	case KindRejected:
		if IsSafeMessage(e.Message) {
			return e.Message
		}
		return genericRejectedMessage
	default:
		return genericUnavailableMessage
	}
}

func Validation(format string, args ...any) *ActionError {
	return &ActionError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ErrorKindOf(err error) (ErrorKind, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// UserMessageOf maps any action error to inline text.
func UserMessageOf(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	return genericUnavailableMessage
}

// IsSafeMessage reports whether a backend message can be shown verbatim.
func IsSafeMessage(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" || len(msg) > maxSafeMessageLen {
		return false
	}
	if strings.ContainsAny(msg, "{}<>\n") {
		return false
	}
	for _, r := range msg {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
