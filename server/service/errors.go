package service

import "errors"

// ErrInvalidColor is returned for vehicle colors that are not #rgb or #rrggbb.
var ErrInvalidColor = errors.New("invalid color")
