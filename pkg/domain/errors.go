package domain

import (
	"errors"
	"fmt"
)

// ErrRollback aborts a transaction without reporting an error to the
// caller. Dry-run imports return it after accumulating their result.
var ErrRollback = errors.New("transaction rollback requested")

// NotFoundError is returned when an entity lookup fails.
type NotFoundError struct {
	Entity EntityType
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ReferentialIntegrityError reports a reference to an unknown track, part,
// lodgement, lodgement group or course inside an import payload.
type ReferentialIntegrityError struct {
	Entity EntityType
	ID     int64
	Where  string
}

func (e ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("unknown %s %d referenced by %s", e.Entity, e.ID, e.Where)
}

// VersionMismatchError rejects an import payload of an incompatible schema
// generation before any processing happens.
type VersionMismatchError struct {
	Payload SchemaVersion
	Server  SchemaVersion
}

func (e VersionMismatchError) Error() string {
	return fmt.Sprintf("schema version %d.%d incompatible with server %d.%d",
		e.Payload.Major, e.Payload.Minor, e.Server.Major, e.Server.Minor)
}

// StaleTokenError signals that the freshly computed transaction token does
// not match the caller's expectation. The caller should re-fetch state,
// recompute its delta and retry.
type StaleTokenError struct {
	Expected string
	Computed string
}

func (e StaleTokenError) Error() string {
	return fmt.Sprintf("stale import delta: token %s does not match computed %s", e.Expected, e.Computed)
}

// ConcurrencyError surfaces a store-level serialization failure. It is not
// retried internally; callers retry with a freshly computed delta.
type ConcurrencyError struct {
	Cause error
}

func (e ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent modification: %v", e.Cause)
}

func (e ConcurrencyError) Unwrap() error { return e.Cause }

// ConstraintViolationError reports a deletion blocked by dependent records
// for which no cascade was requested. Blocker names the blocking relation.
type ConstraintViolationError struct {
	Entity  EntityType
	ID      int64
	Blocker string
}

func (e ConstraintViolationError) Error() string {
	return fmt.Sprintf("cannot delete %s %d: blocked by %s", e.Entity, e.ID, e.Blocker)
}

// ValidationError reports a malformed payload or field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
