package errs

import "errors"

var (
	NotImplement   = errors.New("not implement")
	NotSupport     = errors.New("not support")
	StoreClosed    = errors.New("store connection closed")
	DriverNotFound = errors.New("store driver not found")
	ObjectNotFound = errors.New("object not found")
)
