package strata

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrChainOrder indicates a second one-way transformation was attached to a field.
	ErrChainOrder = errors.New("chain order violation")

	// ErrDuplicateTransformation indicates a transformation ID is already attached to a field.
	ErrDuplicateTransformation = errors.New("duplicate transformation")

	// ErrDuplicateType indicates an entity type name is already registered.
	ErrDuplicateType = errors.New("duplicate entity type")

	// ErrFrozen indicates a chain was modified after the entity type was first used.
	ErrFrozen = errors.New("entity type frozen")

	// ErrUnknownType indicates an entity type name is not registered.
	ErrUnknownType = errors.New("unknown entity type")

	// ErrUnknownField indicates a field is not declared on the entity type.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidTag indicates a struct tag has an invalid format or value.
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidKey indicates an encryption key has invalid size or format.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidIVSize indicates an IV size the algorithm cannot use.
	ErrInvalidIVSize = errors.New("invalid iv size")

	// ErrInvalidAlgorithm indicates an unknown hash or encryption algorithm.
	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	// ErrLock indicates a transformation failed to lock a value.
	ErrLock = errors.New("lock failed")

	// ErrUnlock indicates a transformation failed to unlock a stored value.
	ErrUnlock = errors.New("unlock failed")

	// ErrEncrypt indicates encryption of a field failed.
	ErrEncrypt = errors.New("encrypt failed")

	// ErrDecrypt indicates decryption of a field failed.
	ErrDecrypt = errors.New("decrypt failed")

	// ErrHash indicates hashing of a field failed.
	ErrHash = errors.New("hash failed")

	// ErrEvent indicates a lifecycle handler failed.
	ErrEvent = errors.New("event handler failed")

	// ErrUnmarshal indicates the codec failed to unmarshal input data.
	ErrUnmarshal = errors.New("unmarshal failed")

	// ErrMarshal indicates the codec failed to marshal output data.
	ErrMarshal = errors.New("marshal failed")

	// ErrNotFound indicates a document does not exist in the store.
	ErrNotFound = errors.New("document not found")

	// ErrIndexNotFound indicates a lookup named an index the collection does not have.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexKeys indicates a lookup passed keys without an index, or more
	// keys than the index has fields.
	ErrIndexKeys = errors.New("index keys mismatch")

	// ErrPrimaryKeyMissing indicates an entity has no value for its primary key.
	ErrPrimaryKeyMissing = errors.New("primary key missing")
)

// ChainOrderError is returned when attaching a transformation would place
// two one-way transformations on the same field.
type ChainOrderError struct {
	Entity         string // Entity type name
	Field          string // Field the chain belongs to
	Existing       string // ID of the terminal one-way transformation
	Transformation string // ID of the rejected transformation
}

func (e *ChainOrderError) Error() string {
	return fmt.Sprintf("%s: field %s.%s already ends in one-way %q, cannot attach one-way %q",
		ErrChainOrder.Error(), e.Entity, e.Field, e.Existing, e.Transformation)
}

func (e *ChainOrderError) Unwrap() error {
	return ErrChainOrder
}

// ConfigError represents a registration or configuration error.
// It wraps a sentinel error with additional context about the field and algorithm.
type ConfigError struct {
	Err       error  // Underlying sentinel error (ErrFrozen, ErrInvalidKey, etc.)
	Entity    string // Entity type name, if known
	Field     string // Field name that triggered the error
	Algorithm string // Algorithm, tag or transformation that was invalid
}

func (e *ConfigError) Error() string {
	field := e.Field
	if e.Entity != "" && field != "" {
		field = e.Entity + "." + field
	} else if e.Entity != "" {
		field = e.Entity
	}
	switch {
	case field != "" && e.Algorithm != "":
		return fmt.Sprintf("%s for %q (field %s)", e.Err.Error(), e.Algorithm, field)
	case e.Algorithm != "":
		return fmt.Sprintf("%s for %q", e.Err.Error(), e.Algorithm)
	case field != "":
		return fmt.Sprintf("%s (field %s)", e.Err.Error(), field)
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TransformError represents a failure inside a transformation call.
// A decryption failure is a TransformError whose Err is ErrDecrypt.
type TransformError struct {
	Err            error  // Underlying sentinel error (ErrDecrypt, ErrHash, etc.)
	Entity         string // Entity type name
	Field          string // Field name that failed
	Transformation string // Transformation ID
	Operation      Operation
	Cause          error // Original error from the underlying operation
}

func (e *TransformError) Error() string {
	where := e.Field
	if e.Entity != "" {
		where = e.Entity + "." + e.Field
	}
	if e.Transformation != "" {
		where += " (" + e.Transformation + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s field %s: %v", e.Operation, where, e.Cause)
	}
	return fmt.Sprintf("%s field %s: %s", e.Operation, where, e.Err.Error())
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// PrimaryKeyMissingError is returned by the model layer when an entity
// without a primary key value is written back by key.
type PrimaryKeyMissingError struct {
	Entity string // Entity type name
	Key    string // Primary key field name
}

func (e *PrimaryKeyMissingError) Error() string {
	return fmt.Sprintf("%s: %s has no value for %q", ErrPrimaryKeyMissing.Error(), e.Entity, e.Key)
}

func (e *PrimaryKeyMissingError) Unwrap() error {
	return ErrPrimaryKeyMissing
}

// CodecError represents a marshal/unmarshal error.
type CodecError struct {
	Err   error // Underlying sentinel error (ErrMarshal, ErrUnmarshal)
	Cause error // Original error from the codec
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Err.Error(), e.Cause)
	}
	return e.Err.Error()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func newConfigError(sentinel error, entity, field, algorithm string) error {
	return &ConfigError{
		Err:       sentinel,
		Entity:    entity,
		Field:     field,
		Algorithm: algorithm,
	}
}

// transformFailure wraps a transformation's own error without context.
// The engine fills in entity, field and transformation when it sees one.
func transformFailure(sentinel error, cause error) error {
	return &TransformError{Err: sentinel, Cause: cause}
}

func newCodecError(sentinel error, cause error) error {
	return &CodecError{
		Err:   sentinel,
		Cause: cause,
	}
}
