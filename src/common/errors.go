package common

import (
	"errors"
	"fmt"
)

// ValidationError is malformed input rejected before any side effect.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return e.Msg
}

// ConflictError means the requested slot is taken. The caller may retry with another slot.
type ConflictError struct {
	Msg       string
	BookingID uint
}

func (e ConflictError) Error() string {
	return e.Msg
}

// ConfigurationError needs an operator to fix pricing or settings; retrying will not help.
type ConfigurationError struct {
	Msg string
}

func (e ConfigurationError) Error() string {
	return e.Msg
}

type NotFoundError struct {
	Resource string
	ID       any
}

func (e NotFoundError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// TransitionError rejects a status change the state machine does not allow.
type TransitionError struct {
	Entity string
	Action Action
	From   string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Entity, e.From)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target ConfigurationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsTransition(err error) bool {
	var target TransitionError
	return errors.As(err, &target)
}
