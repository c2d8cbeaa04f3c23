package core

import "errors"

// Authentication failures. Any of these terminates the connection; the hub
// never retries a handshake.
var (
	ErrAuthTimeout       = errors.New("authentication timed out")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrUnrecognizedToken = errors.New("unrecognized token")
	ErrBanned            = errors.New("user is banned")
	ErrConnClosed        = errors.New("connection closed")
)
