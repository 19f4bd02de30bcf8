package observable

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrMissingMember indicates a named member does not exist on the target,
	// or exists but cannot be written.
	ErrMissingMember = errors.New("observable: missing member")
	// ErrNullTarget indicates an operation against an absent wrapped value.
	ErrNullTarget = errors.New("observable: null target")
	// ErrConversion indicates no coercion path exists between two types.
	ErrConversion = errors.New("observable: conversion failed")
	// ErrDependencyConfiguration indicates an invalid dependency declaration.
	ErrDependencyConfiguration = errors.New("observable: dependency configuration")
	// ErrNoIndexer indicates the target has no indexer matching the supplied
	// arguments. It is always wrapped in a MissingMemberError.
	ErrNoIndexer = errors.New("observable: no matching indexer")
	// ErrIndexOutOfRange indicates an insert position outside the collection.
	ErrIndexOutOfRange = errors.New("observable: index out of range")
)

// MissingMemberError reports a member lookup that failed on Type.
type MissingMemberError struct {
	Type   reflect.Type
	Member string
	// Writable is set when the lookup asked for a writable member.
	Writable bool
	Err      error
}

func (e *MissingMemberError) Error() string {
	if e == nil {
		return "<nil>"
	}
	kind := "member"
	if e.Writable {
		kind = "writable member"
	}
	msg := fmt.Sprintf("observable: %s %q not found on %s", kind, e.Member, typeLabel(e.Type))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingMemberError) Is(target error) bool {
	return target == ErrMissingMember
}

func (e *MissingMemberError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NullTargetError reports an Op attempted while the wrapped value is nil.
type NullTargetError struct {
	Op     string
	Member string
	Type   reflect.Type
}

func (e *NullTargetError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Member == "" {
		return fmt.Sprintf("observable: %s on nil %s", e.Op, typeLabel(e.Type))
	}
	return fmt.Sprintf("observable: %s %q on nil %s", e.Op, e.Member, typeLabel(e.Type))
}

func (e *NullTargetError) Is(target error) bool {
	return target == ErrNullTarget
}

// ConversionError reports a value that could not be coerced into To.
type ConversionError struct {
	From  reflect.Type
	To    reflect.Type
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("observable: can't convert %s to %s", typeLabel(e.From), typeLabel(e.To))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DependencyConfigurationError is surfaced by Install when a rule cannot be
// honoured: its path does not resolve, or the declarations form a cycle.
type DependencyConfigurationError struct {
	Owner    reflect.Type
	Property string
	Path     string
	// Cycle lists the dependent properties forming a loop, first element
	// repeated at the end.
	Cycle []string
	Trace Trace
	Err   error
}

func (e *DependencyConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("observable: %s: cyclic dependency %s", typeLabel(e.Owner), strings.Join(e.Cycle, " -> "))
	}
	msg := fmt.Sprintf("observable: %s.%s depends on %q", typeLabel(e.Owner), e.Property, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyConfigurationError) Is(target error) bool {
	return target == ErrDependencyConfiguration
}

func (e *DependencyConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
