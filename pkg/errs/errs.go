// Package errs defines the error kinds surfaced by the question answering core.
//
// Every failure leaving a component is an *Error carrying a closed Kind, so callers
// can tell "fix your input" apart from "try again later" and "the generated SQL was wrong"
// without inspecting message text.
package errs

import (
	"errors"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Validation
	DimensionMismatch
	EmbeddingService
	GenerationService
	EmptyGeneration
	SQLSyntax
	SQLRuntime
	Timeout
	NotFound
	Storage
)

var kindNames = map[Kind]string{
	Unknown:           "unknown",
	Validation:        "validation",
	DimensionMismatch: "dimension_mismatch",
	EmbeddingService:  "embedding_service",
	GenerationService: "generation_service",
	EmptyGeneration:   "empty_generation",
	SQLSyntax:         "sql_syntax",
	SQLRuntime:        "sql_runtime",
	Timeout:           "timeout",
	NotFound:          "not_found",
	Storage:           "storage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Unknown]
}

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrValidation        = &Error{Kind: Validation}
	ErrDimensionMismatch = &Error{Kind: DimensionMismatch}
	ErrEmbeddingService  = &Error{Kind: EmbeddingService}
	ErrGenerationService = &Error{Kind: GenerationService}
	ErrEmptyGeneration   = &Error{Kind: EmptyGeneration}
	ErrSQLSyntax         = &Error{Kind: SQLSyntax}
	ErrSQLRuntime        = &Error{Kind: SQLRuntime}
	ErrTimeout           = &Error{Kind: Timeout}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrStorage           = &Error{Kind: Storage}
)

// Error is the single error type of the core.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// SQL is the statement that failed, set for SQLSyntax and SQLRuntime errors.
	SQL string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func SQL(kind Kind, op, statement string, err error) *Error {
	return &Error{Kind: kind, Op: op, SQL: statement, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Retryable reports whether err is a transient external-service failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case EmbeddingService, GenerationService:
		return true
	default:
		return false
	}
}
