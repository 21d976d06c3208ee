package input

import "errors"

var ErrUnknownAction = errors.New("unknown input action")
