package models

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist (yet).
	ErrNotFound = errors.New("not found")
	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("no active session")
)
