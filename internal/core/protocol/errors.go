package protocol

import "errors"

var ErrInvalidMessage = errors.New("invalid message")
