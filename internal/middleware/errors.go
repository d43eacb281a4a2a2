package middleware

import "errors"

var errNotReplayable = errors.New("request body cannot be replayed")
