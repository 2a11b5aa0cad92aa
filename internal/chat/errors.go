package chat

import "errors"

var (
	ErrAlreadyExists      = errors.New("username already exists")
	ErrNotFound           = errors.New("user not found")
	ErrMismatch           = errors.New("password mismatch")
	ErrAlreadyBound       = errors.New("connection already logged in")
	ErrNotAuthenticated   = errors.New("you must log in first")
	ErrNotInRoom          = errors.New("not a member of this room")
	ErrUnknownConnection  = errors.New("unknown connection")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
