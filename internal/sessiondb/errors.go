package sessiondb

import "errors"

var (
	ErrGroupNotFound        = errors.New("sessiondb: group not found")
	ErrGroupAlreadyExists   = errors.New("sessiondb: group already exists")
	ErrSessionNotFound      = errors.New("sessiondb: session not found")
	ErrSessionAlreadyExists = errors.New("sessiondb: session already exists")
)
