package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrServerFull       = errors.New("server is full")
	ErrServerError      = errors.New("server error")
)
