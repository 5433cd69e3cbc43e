package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure for one identity
type ErrorKind string

const (
	KindInput             ErrorKind = "input"              // Malformed identity reference
	KindRetrieval         ErrorKind = "retrieval"          // Fetching activity or account metadata failed
	KindEmptyEvidence     ErrorKind = "empty_evidence"     // Zero posts and zero comments (when fatal)
	KindGeneration        ErrorKind = "generation"         // Inference backend failure or empty response
	KindCitationViolation ErrorKind = "citation_violation" // Persona cites nothing or unknown ids
)

// Sentinels matched by errors.Is against *Error
var (
	ErrInput             = errors.New("invalid identity")
	ErrRetrieval         = errors.New("retrieval failed")
	ErrEmptyEvidence     = errors.New("no evidence retrieved")
	ErrGeneration        = errors.New("generation failed")
	ErrCitationViolation = errors.New("citation violation")
)

var kindSentinels = map[ErrorKind]error{
	KindInput:             ErrInput,
	KindRetrieval:         ErrRetrieval,
	KindEmptyEvidence:     ErrEmptyEvidence,
	KindGeneration:        ErrGeneration,
	KindCitationViolation: ErrCitationViolation,
}

// Error is a stage failure tagged with its kind and identity
type Error struct {
	Kind     ErrorKind
	Identity string
	Err      error
}

// NewError wraps err with a kind
func NewError(kind ErrorKind, identity string, err error) *Error {
	return &Error{Kind: kind, Identity: identity, Err: err}
}

func (e *Error) Error() string {
	prefix := kindSentinels[e.Kind]
	msg := string(e.Kind)
	if prefix != nil {
		msg = prefix.Error()
	}
	if e.Identity != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Identity)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
