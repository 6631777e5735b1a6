package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/finquery/finquery/internal/pkg/errcode"
	apperr "github.com/finquery/finquery/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// ErrorOf maps a domain error to its wire code and message. Wrapped
// and joined errors classify by their sentinel.
func ErrorOf(c *gin.Context, err error) {
	code, msg := Classify(err)
	Error(c, code, msg)
}

func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return errcode.ErrInvalid, "invalid request"
	case errors.Is(err, apperr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, apperr.ErrUnknownTool):
		return errcode.ErrUnknownTool, "unknown tool"
	default:
		return errcode.ErrComputeFailed, "computation failed"
	}
}
