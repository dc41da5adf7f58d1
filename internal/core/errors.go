package core

import "errors"

var (
	// ErrUnsupportedOperation is returned when a model type's descriptor does
	// not resolve to the address an operation needs.
	ErrUnsupportedOperation = errors.New("operation not supported for model type")
	// ErrInvalidReference terminates a query issued against a type whose
	// collection cannot be resolved.
	ErrInvalidReference = errors.New("invalid collection reference")
	// ErrNoData is returned by one-shot reads that found nothing.
	ErrNoData = errors.New("no data")
	// ErrNoIdentifier is returned when a mutation needs a record identifier
	// and the record has none yet.
	ErrNoIdentifier = errors.New("record has no identifier")
)
