// Package topology decides whether a solid is acceptable as the output of a
// feature: exactly one connected solid that the kernel reports as well
// formed.
package topology

import (
	"errors"
	"fmt"

	"github.com/chazu/featsynth/pkg/kernel"
)

// ErrInvalid matches every blocking finding via errors.Is.
var ErrInvalid = errors.New("topology: invalid body")

// Severity indicates whether a finding rejects the body or is merely
// informational.
type Severity int

const (
	SeverityError   Severity = iota // rejects the body
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Code names a finding.
type Code string

const (
	CodeNull           Code = "null-body"
	CodeNoSolid        Code = "no-solid"
	CodeMultipleSolids Code = "multiple-solids"
	CodeNoFaces        Code = "no-faces"
	CodeMalformed      Code = "malformed"
	CodeThin           Code = "thin"
)

// ThinExtent is the bounding box extent below which a body is reported as
// thin.
const ThinExtent = 1e-3

// Error describes a single finding.
type Error struct {
	Code     Code
	Message  string
	Severity Severity
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

// Is reports blocking findings as ErrInvalid.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid && e.Severity == SeverityError
}

// Result bundles blocking errors and advisory warnings.
type Result struct {
	Errors   []*Error
	Warnings []*Error
}

// OK reports whether there are no blocking errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Err returns the first blocking error, or nil.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Validate checks, in order, that the body is exactly one solid and that
// it is well formed. It returns nil or the first *Error found.
func Validate(k kernel.Kernel, body kernel.Solid) error {
	if e := checkCount(k, body); e != nil {
		return e
	}
	if e := checkShape(k, body); e != nil {
		return e
	}
	return nil
}

// Check runs every check and collects all findings. It never stops early,
// so the result is suitable for reporting.
func Check(k kernel.Kernel, body kernel.Solid) Result {
	var r Result
	if e := checkCount(k, body); e != nil {
		r.Errors = append(r.Errors, e)
		if e.Code == CodeNull {
			return r
		}
	}
	if len(k.Faces(body)) == 0 {
		r.Errors = append(r.Errors, &Error{
			Code:     CodeNoFaces,
			Message:  "body has no faces",
			Severity: SeverityError,
		})
	}
	if e := checkShape(k, body); e != nil {
		r.Errors = append(r.Errors, e)
	}
	r.Warnings = append(r.Warnings, checkThin(body)...)
	return r
}

func checkCount(k kernel.Kernel, body kernel.Solid) *Error {
	if body == nil {
		return &Error{Code: CodeNull, Message: "no body", Severity: SeverityError}
	}
	switch n := k.SolidCount(body); {
	case n == 0:
		return &Error{Code: CodeNoSolid, Message: "body contains no solid", Severity: SeverityError}
	case n > 1:
		return &Error{
			Code:     CodeMultipleSolids,
			Message:  fmt.Sprintf("body contains %d disconnected solids", n),
			Severity: SeverityError,
		}
	}
	return nil
}

func checkShape(k kernel.Kernel, body kernel.Solid) *Error {
	if body == nil || !k.IsWellFormed(body) {
		return &Error{Code: CodeMalformed, Message: "kernel reports body is not well formed", Severity: SeverityError}
	}
	return nil
}

func checkThin(body kernel.Solid) []*Error {
	if body.Empty() {
		return nil
	}
	min, max := body.BoundingBox()
	var out []*Error
	for i, axis := range []string{"x", "y", "z"} {
		if ext := max[i] - min[i]; ext < ThinExtent {
			out = append(out, &Error{
				Code:     CodeThin,
				Message:  fmt.Sprintf("extent along %s is %.6f", axis, ext),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}
