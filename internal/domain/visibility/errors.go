package visibility

import "fmt"

// CodeInvalidVisibility is the stable code attached to every grammar
// format rejection.
const CodeInvalidVisibility = "INVALID_VISIBILITY"

// FormatError reports a malformed visibility string. It is never silently
// coerced; callers surface the code to the API boundary.
type FormatError struct {
	Code    string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newFormatError(format string, args ...any) *FormatError {
	return &FormatError{
		Code:    CodeInvalidVisibility,
		Message: fmt.Sprintf(format, args...),
	}
}
