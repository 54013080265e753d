package stage

import (
	"errors"
	"fmt"

	"github.com/zeusync/stagehand/internal/core/models"
)

var (
	ErrNilSystem         = errors.New("nil system")
	ErrSystemNotFound    = errors.New("system not found")
	ErrComponentNotFound = errors.New("component not found")
	ErrInvalidBinding    = errors.New("invalid binding")
)

// DuplicateBindingError rejects a system whose id is taken, or a system that
// declares the same binding key twice. The stage is left unchanged.
type DuplicateBindingError struct {
	Stage  string
	System string
	Key    string
}

func (e *DuplicateBindingError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("stage %q: system %q declares binding %q twice", e.Stage, e.System, e.Key)
	}
	return fmt.Sprintf("stage %q: system %q already registered", e.Stage, e.System)
}

// DuplicateComponentError rejects a second component of the same type on one
// entity. The existing component is kept.
type DuplicateComponentError struct {
	Entity models.EntityID
	Type   string
}

func (e *DuplicateComponentError) Error() string {
	return fmt.Sprintf("entity %s already has a %q component", e.Entity, e.Type)
}

// MissingReferenceError reports a lookup of a model that does not exist (yet).
type MissingReferenceError struct {
	Entity models.EntityID
	Model  string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("entity %s has no %q model", e.Entity, e.Model)
}

// HookError wraps a failure returned by a system or model hook. Hook failures
// never interrupt reconciliation; they are joined and returned to the caller
// that triggered it.
type HookError struct {
	System string
	Hook   string
	Key    string
	Err    error
}

func (e *HookError) Error() string {
	if e.System == "" {
		return fmt.Sprintf("%s %s: %v", e.Hook, e.Key, e.Err)
	}
	return fmt.Sprintf("system %q %s(%s): %v", e.System, e.Hook, e.Key, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
