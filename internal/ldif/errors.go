package ldif

import "errors"

var ErrInvalid = errors.New("invalid ldif")
