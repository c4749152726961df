package diag

import (
	"fmt"
	"runtime/debug"
)

// InternalError reports a broken invariant between phases. It is never shown
// as a source diagnostic.
type InternalError struct {
	Msg   string
	Stack []byte
}

func (e *InternalError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "internal compiler error: " + e.Msg
}

// Internalf aborts the current build with an *InternalError.
func Internalf(format string, args ...any) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...), Stack: debug.Stack()})
}

// RecoverInternal converts an *InternalError panic into *errp. Other panics
// propagate unchanged. Use as `defer diag.RecoverInternal(&err)`.
func RecoverInternal(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InternalError)
	if !ok {
		panic(r)
	}
	if errp != nil {
		*errp = ie
	}
}
