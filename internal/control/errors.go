package control

import "errors"

var ErrControl = errors.New("control request failed")
