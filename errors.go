package shapecover

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType = "invalid_type"
	CodeUnknownKey  = "unknown_key"
	CodeInvalidEnum = "invalid_enum"
	CodeParseError  = "parse_error"
)

// Severity expresses the severity level attached to issues. It is supplied by
// the caller for reporting purposes only and never changes the match verdict.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

func (s Severity) String() string {
	switch s {
	case Ignore:
		return "ignore"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Issue represents a single conformance mismatch.
type Issue struct {
	Path     string // Dotted schema path (for example: .sub.thing or .arr[0].a).
	Code     string // One of the codes listed above.
	Message  string
	Severity Severity
	// Params carries structured parameters (e.g., {"want":"number","got":"string"})
	// for observability.
	Params map[string]any
}

// Issues is a collection of conformance mismatches that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. invalid_type at .sub.thing
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// SchemaError reports a malformed schema. It is a configuration fault, kept on
// a separate channel from Issues so callers cannot conflate "this document is
// wrong" with "this schema is broken". Matching against the offending schema
// aborts without a verdict.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "shapecover: malformed schema: " + e.Message
	}
	return fmt.Sprintf("shapecover: malformed schema at %s: %s", e.Path, e.Message)
}

func schemaErrf(path, format string, args ...any) *SchemaError {
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}
