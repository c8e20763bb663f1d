package paths

import "errors"

var ErrEnvironment = errors.New("no OpenLDAP installation found")
