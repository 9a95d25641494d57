package cg

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration       = errors.New("configuration error")
	ErrDuplicateDefinition = errors.New("duplicate definition")
	ErrCompilation         = errors.New("compilation error")
	ErrState               = errors.New("state error")
	ErrInternal            = errors.New("internal error")
)

// ConfigurationError reports a descriptor that cannot drive generation
type ConfigurationError struct {
	Msg string
}

func (self *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s", self.Msg)
}

func (self *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

type DuplicateDefinitionError struct {
	Name string
}

func (self *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("unit %s is already defined", self.Name)
}

func (self *DuplicateDefinitionError) Is(target error) bool { return target == ErrDuplicateDefinition }

// CompilationError is raised by the expression translator, Expr is the
// printed sub expression that could not be translated.
type CompilationError struct {
	Expr string
	Msg  string
}

func (self *CompilationError) Error() string {
	return fmt.Sprintf("compile %s: %s", self.Expr, self.Msg)
}

func (self *CompilationError) Is(target error) bool { return target == ErrCompilation }

type StateError struct {
	Msg string
}

func (self *StateError) Error() string {
	return fmt.Sprintf("state: %s", self.Msg)
}

func (self *StateError) Is(target error) bool { return target == ErrState }

// InternalError means a broken invariant inside the generator, ie the
// emitted tree could not be rendered.
type InternalError struct {
	Err error
}

func (self *InternalError) Error() string {
	return fmt.Sprintf("internal: %s", self.Err)
}

func (self *InternalError) Unwrap() error { return self.Err }

func (self *InternalError) Is(target error) bool { return target == ErrInternal }

func errFlushed(what string) error {
	return &StateError{Msg: fmt.Sprintf("%s after the unit is flushed", what)}
}
