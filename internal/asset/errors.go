package asset

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a batch failure.
type Kind string

const (
	// KindValidation means the batch was rejected before any write.
	KindValidation Kind = "validation"

	// KindReference means an edge endpoint could not be resolved.
	KindReference Kind = "reference"

	// KindConflict means concurrent writers kept winning until retries ran out.
	KindConflict Kind = "conflict"

	// KindStorage covers everything else the database reported,
	// including cancellation and deadlines.
	KindStorage Kind = "storage"
)

// Sentinels for errors.Is. A *BatchError matches the sentinel of its Kind.
var (
	ErrValidation = errors.New("validation error")
	ErrReference  = errors.New("reference error")
	ErrConflict   = errors.New("conflict error")
	ErrStorage    = errors.New("storage error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindReference:
		return ErrReference
	case KindConflict:
		return ErrConflict
	case KindStorage:
		return ErrStorage
	default:
		return nil
	}
}

// BatchError is the only error type UpsertAssetsAndEdges returns.
// Nothing from the batch is persisted when it is returned.
type BatchError struct {
	// Kind identifies the failure category.
	Kind Kind

	// Index is the offending spec position, or -1 for batch-wide failures.
	Index int

	// Reason is a human-readable description.
	Reason string

	// Problems lists every validation problem (validation kind only).
	Problems []ValidationError

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at spec %d", e.Index)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if len(e.Problems) > 1 {
		fmt.Fprintf(&b, " (and %d more)", len(e.Problems)-1)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *BatchError) Unwrap() error { return e.Err }

// Is matches the Kind sentinel.
func (e *BatchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewValidationError wraps validator output. Index and Reason come from the
// first problem.
func NewValidationError(problems []ValidationError) *BatchError {
	be := &BatchError{Kind: KindValidation, Index: -1, Problems: problems}
	if len(problems) > 0 {
		be.Index = problems[0].Index
		be.Reason = problems[0].Error()
	} else {
		be.Reason = "invalid batch"
	}
	return be
}

// NewReferenceError reports an unresolvable edge target on spec index.
func NewReferenceError(index int, reason string, err error) *BatchError {
	return &BatchError{Kind: KindReference, Index: index, Reason: reason, Err: err}
}

// NewConflictError reports retry exhaustion.
func NewConflictError(attempts int, err error) *BatchError {
	return &BatchError{
		Kind:   KindConflict,
		Index:  -1,
		Reason: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:    err,
	}
}

// NewStorageError reports a non-retryable database failure.
func NewStorageError(index int, reason string, err error) *BatchError {
	return &BatchError{Kind: KindStorage, Index: index, Reason: reason, Err: err}
}

// KindOf returns the Kind of the first *BatchError in err's chain,
// or the empty Kind if there is none.
func KindOf(err error) Kind {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
