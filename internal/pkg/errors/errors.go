package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid")
	ErrInternal     = errors.New("internal")
	ErrUnknownTool  = errors.New("unknown tool")
	ErrPlanRejected = errors.New("plan rejected")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
