// Package diag provides standardized fault reporting for the suballoc
// packages, in the same shape as the teacher's internal/errors package:
// a category, a stable code, a human message, free-form context, and
// the caller that raised it.
package diag

import (
	"fmt"
	"runtime"
)

// Category classifies a Fault for programmatic handling.
type Category string

const (
	CategoryArgument Category = "ARGUMENT"
	CategoryState    Category = "STATE"
	CategorySegment  Category = "SEGMENT"
	CategoryRegistry Category = "REGISTRY"
)

// Fault is a standardized, contextual error.
type Fault struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", f.Category, f.Code, f.Message, f.Caller)
}

// Is makes Fault comparable against a sentinel Fault by Code, so callers
// can use errors.Is(err, ErrUnknownSegment) even though each raised
// Fault carries its own Context and Caller.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}

	return f.Code == t.Code
}

// New creates a Fault, capturing the immediate caller.
func New(category Category, code, message string, context map[string]interface{}) *Fault {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"

	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Fault{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Sentinel creates a Fault meant to be compared against with errors.Is,
// without capturing a caller (there isn't a meaningful one at package
// init time).
func Sentinel(category Category, code, message string) *Fault {
	return &Fault{Category: category, Code: code, Message: message, Caller: "sentinel"}
}
