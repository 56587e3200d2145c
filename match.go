package shapecover

import (
	"context"
	"sort"
)

// Reserved schema directive keys. Their presence inside a schema mapping
// overrides ordinary closed-object semantics for that mapping.
const (
	DirectiveEnum = "$enum"
	DirectiveMap  = "$map"
)

// MatchOpt bundles matching options.
type MatchOpt struct {
	// FailFast stops at the first mismatch instead of collecting all of them.
	FailFast bool
	// Severity is stamped on every produced Issue. Defaults to Error.
	Severity Severity
	// Ledger, when non-nil, receives a MarkCovered call for every schema path
	// successfully traversed with a matching value. Marks stick even if an
	// enclosing container later mismatches.
	Ledger *Ledger
	// PathPrefix is prepended to every reported and covered path, for callers
	// matching a subtree of a larger schema.
	PathPrefix string
	// severitySet distinguishes an explicit Ignore from the zero value.
	severitySet bool
}

// WithSeverity returns a copy of the options with an explicit severity,
// including Ignore.
func (o MatchOpt) WithSeverity(s Severity) MatchOpt {
	o.Severity = s
	o.severitySet = true
	return o
}

// Match recursively compares a document tree against a schema tree and reports
// whether the document conforms, together with one Issue per structural
// disagreement. Schema mapping keys are optional in the document; unknown
// document keys mismatch unless an enclosing $map directive opens the object.
// Scalar schema values constrain only the coarse kind of the document value; a
// nil schema matches anything.
//
// The returned error is non-nil only for a malformed schema (*SchemaError);
// it is never produced by a bad document.
func Match(ctx context.Context, schema, doc any, opts ...MatchOpt) (bool, Issues, error) {
	var opt MatchOpt
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if opt.Severity == Ignore && !opt.severitySet {
		opt.Severity = Error
	}
	m := &matcher{opt: opt}
	ok, err := m.match(schema, doc, opt.PathPrefix)
	if err != nil {
		return false, nil, err
	}
	return ok, m.iss, nil
}

type matcher struct {
	opt MatchOpt
	iss Issues
}

func (m *matcher) issue(path, code, msg string, params map[string]any) {
	m.iss = AppendIssues(m.iss, Issue{
		Path:     path,
		Code:     code,
		Message:  msg,
		Severity: m.opt.Severity,
		Params:   params,
	})
}

func (m *matcher) cover(path string) {
	if m.opt.Ledger != nil {
		m.opt.Ledger.MarkCovered(path)
	}
}

// stop reports whether collection should end after a mismatch was recorded.
func (m *matcher) stop() bool { return m.opt.FailFast && len(m.iss) > 0 }

func (m *matcher) match(schema, doc any, path string) (bool, error) {
	if schema == nil {
		// nil schema is a wildcard
		return true, nil
	}
	switch s := schema.(type) {
	case map[string]any:
		if ev, ok := s[DirectiveEnum]; ok {
			return m.matchEnum(ev, doc, path)
		}
		if sub, ok := s[DirectiveMap]; ok {
			return m.matchMap(sub, doc, path)
		}
		return m.matchObject(s, doc, path)
	case []any:
		return m.matchArray(s, doc, path)
	default:
		want := KindOf(schema)
		switch want {
		case KindBool, KindNumber, KindString:
			if got := KindOf(doc); got != want {
				m.issue(path, CodeInvalidType, "expected "+want.String()+", got "+got.String(),
					map[string]any{"want": want.String(), "got": got.String()})
				return false, nil
			}
			return true, nil
		default:
			return false, schemaErrf(path, "unsupported schema value of type %T", schema)
		}
	}
}

func (m *matcher) matchObject(s map[string]any, doc any, path string) (bool, error) {
	dm, ok := doc.(map[string]any)
	if !ok {
		m.issue(path, CodeInvalidType, "expected object, got "+KindOf(doc).String(),
			map[string]any{"want": "object", "got": KindOf(doc).String()})
		return false, nil
	}
	allOK := true
	for _, k := range sortedKeys(dm) {
		sv, known := s[k]
		child := fieldPath(path, k)
		if !known {
			// closed object: declared keys only
			m.issue(child, CodeUnknownKey, "unexpected key "+k, map[string]any{"key": k})
			allOK = false
			if m.stop() {
				return false, nil
			}
			continue
		}
		childOK, err := m.match(sv, dm[k], child)
		if err != nil {
			return false, err
		}
		if childOK {
			m.cover(child)
		} else {
			allOK = false
			if m.stop() {
				return false, nil
			}
		}
	}
	return allOK, nil
}

func (m *matcher) matchEnum(ev, doc any, path string) (bool, error) {
	members, err := enumMembers(ev, path)
	if err != nil {
		return false, err
	}
	str, ok := doc.(string)
	if !ok {
		m.issue(path, CodeInvalidType, "expected enum string, got "+KindOf(doc).String(),
			map[string]any{"want": "string", "got": KindOf(doc).String()})
		return false, nil
	}
	for _, member := range members {
		if str == member {
			m.cover(enumPath(path, member))
			return true, nil
		}
	}
	m.issue(path, CodeInvalidEnum, "value "+str+" is not a declared enum member",
		map[string]any{"got": str, "members": members})
	return false, nil
}

func (m *matcher) matchMap(sub, doc any, path string) (bool, error) {
	dm, ok := doc.(map[string]any)
	if !ok {
		// conformance mismatch, not a schema fault: the directive is well
		// formed, the document just isn't an object here
		m.issue(path, CodeInvalidType, "expected object, got "+KindOf(doc).String(),
			map[string]any{"want": "object", "got": KindOf(doc).String()})
		return false, nil
	}
	allOK := true
	for _, k := range sortedKeys(dm) {
		// every value shares the same path so coverage is key-name independent
		childOK, err := m.match(sub, dm[k], path)
		if err != nil {
			return false, err
		}
		if !childOK {
			allOK = false
			if m.stop() {
				return false, nil
			}
		}
	}
	return allOK, nil
}

func (m *matcher) matchArray(s []any, doc any, path string) (bool, error) {
	if len(s) != 1 {
		return false, schemaErrf(path, "array schema must hold exactly one representative element, got %d", len(s))
	}
	da, ok := doc.([]any)
	if !ok {
		m.issue(path, CodeInvalidType, "expected array, got "+KindOf(doc).String(),
			map[string]any{"want": "array", "got": KindOf(doc).String()})
		return false, nil
	}
	elem := elemPath(path)
	allOK := true
	for _, dv := range da {
		elemOK, err := m.match(s[0], dv, elem)
		if err != nil {
			return false, err
		}
		if !elemOK {
			allOK = false
			if m.stop() {
				return false, nil
			}
		}
	}
	return allOK, nil
}

// enumMembers validates and extracts a $enum member list.
func enumMembers(ev any, path string) ([]string, error) {
	list, ok := ev.([]any)
	if !ok {
		return nil, schemaErrf(path, "$enum value must be an array of strings, got %s", KindOf(ev))
	}
	members := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, schemaErrf(path, "$enum member must be a string, got %s", KindOf(item))
		}
		members = append(members, s)
	}
	return members, nil
}

// sortedKeys returns map keys in ascending order for deterministic issue and
// coverage ordering.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
