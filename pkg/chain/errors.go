package chain

import "errors"

var (
	// ErrNoProvider is returned immediately when no RPC provider is connected.
	ErrNoProvider = errors.New("no provider connected")
	// ErrNoSigner is returned by write calls when no signing key is configured.
	ErrNoSigner = errors.New("no signer configured")
	// ErrInvalidAddress is returned for syntactically invalid contract addresses.
	ErrInvalidAddress = errors.New("invalid contract address")
	// ErrReverted is returned when a submitted transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted")
	// ErrUnexpectedResult is returned when decoded outputs do not have the expected shape.
	ErrUnexpectedResult = errors.New("unexpected call result")
)
