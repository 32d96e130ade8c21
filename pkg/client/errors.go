package client

import (
	stderrors "errors"
)

// Common client errors
var (
	// ErrNotConnected indicates the client has no broker connection
	ErrNotConnected = stderrors.New("client not connected")

	// ErrClientClosed indicates the client was closed and cannot be reused
	ErrClientClosed = stderrors.New("client closed")

	// ErrNoTopics indicates a subscribe call without any topic
	ErrNoTopics = stderrors.New("no topics given")
)
