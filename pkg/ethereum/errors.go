package ethereum

import (
	"errors"
	"fmt"
	"math/big"
)

// Sentinel errors for provider operations.
var (
	// ErrNotConnected indicates an operation was attempted before Connect succeeded.
	ErrNotConnected = errors.New("provider is not connected")

	// ErrNoTraceData indicates the node returned no trace data for a transaction.
	ErrNoTraceData = errors.New("no trace data available")

	// ErrEmptyTrace indicates the node answered a trace request with an empty or
	// invalid structure.
	ErrEmptyTrace = errors.New("empty trace result")
)

// ConnectionKind distinguishes the two transport-level failure classes callers
// care about: nothing listening on the endpoint vs. the endpoint being
// unreachable at the network/DNS level.
type ConnectionKind int

const (
	ConnRefused ConnectionKind = iota
	ConnUnreachable
)

func (k ConnectionKind) String() string {
	if k == ConnRefused {
		return "no process listening"
	}

	return "network unreachable"
}

// ConnectionError reports a failed connection attempt, naming the endpoint tried.
type ConnectionError struct {
	Endpoint string
	Kind     ConnectionKind
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s (%s): %v", e.Endpoint, e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ChainIDMismatchError is raised when the connected node reports a chain id
// different from the one the caller configured. It is fatal and never retried.
type ChainIDMismatchError struct {
	Expected *big.Int
	Actual   *big.Int
}

func (e *ChainIDMismatchError) Error() string {
	return fmt.Sprintf("node reports chain id %s but %s was expected", e.Actual, e.Expected)
}

// NotInstalledError indicates the node executable could not be located.
type NotInstalledError struct {
	Executable string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf(
		"%s is not installed and there is no local node running.\n"+
			"Things you can do:\n"+
			"\t1. Install %s and try again\n"+
			"\t2. Run a node separately and try again\n"+
			"\t3. Point the provider at a custom executable path",
		e.Executable, e.Executable,
	)
}

// NotImplementedError signals an operation the connected node or provider
// family does not support. Callers use it to drive trace-format fallback.
type NotImplementedError struct {
	Method string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented by this provider", e.Method)
}

// IsNotImplemented reports whether err carries a NotImplementedError anywhere
// in its chain.
func IsNotImplemented(err error) bool {
	var nie *NotImplementedError

	return errors.As(err, &nie)
}
