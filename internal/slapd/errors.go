package slapd

import "errors"

var (
	ErrSchema  = errors.New("schema not found")
	ErrStartup = errors.New("slapd startup failed")
	ErrTimeout = errors.New("timeout expired")
)
