package txbuilder

import (
	"errors"

	"github.com/bitcointm/txgraph/script"
)

var (
	// ErrUnknownVariable is returned when binding a name the builder has
	// not declared.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrTypeMismatch is returned when a bound value does not satisfy the
	// declared type of its variable. It is the same sentinel the script
	// package uses, so either can be matched with errors.Is.
	ErrTypeMismatch = script.ErrTypeMismatch

	// ErrScopeViolation is returned when a script template references a
	// variable that the builder does not declare with the same type.
	ErrScopeViolation = errors.New("script references undeclared " +
		"variable")

	// ErrNotReady is returned when resolving a transaction that has
	// unbound variables, no inputs, no outputs or a parent that is not
	// ready itself.
	ErrNotReady = errors.New("transaction not ready")

	// ErrUnresolvedSignature is returned when a script still holds
	// signature placeholders after the signature pass.
	ErrUnresolvedSignature = errors.New("unresolved signature")

	// ErrIndexOutOfRange is returned when an input or output index is
	// outside of the transaction it refers to.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCoinbaseNotAlone is returned when a coinbase input would share
	// the transaction with any other input.
	ErrCoinbaseNotAlone = errors.New("coinbase input must be the only " +
		"input")

	// ErrNoParent is returned when the null parent handle is resolved or
	// used as the parent of a regular input.
	ErrNoParent = errors.New("no parent transaction")

	// ErrInvalidValue is returned for output values outside of the valid
	// monetary range.
	ErrInvalidValue = errors.New("invalid output value")

	// ErrInvalidTemplate is returned when a nil or broken script template
	// is attached to the transaction.
	ErrInvalidTemplate = errors.New("invalid script template")
)
