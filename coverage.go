package shapecover

import (
	"sort"
	"sync"
)

// Path construction rules shared by the matcher and the ledger: object key
// traversal joins with ".", array-element traversal appends "[0]" (schema
// arrays hold a single representative element), enum-member traversal appends
// ".$enum.<member>". $map traversal keeps the prefix unchanged so a map's
// value shape has one stable path no matter how many dynamic keys occur.

func fieldPath(prefix, key string) string { return prefix + "." + key }

func elemPath(prefix string) string { return prefix + "[0]" }

func enumPath(prefix, member string) string { return prefix + ".$enum." + member }

// Ledger is the process-wide coverage registry mapping schema paths to a
// covered flag. It is an explicit object rather than package state: construct
// one at suite start, share it by reference across every validation call, and
// inspect it at suite end. Coverage only accumulates; a flag transitions
// false->true exactly once and is never reset mid-run.
//
// All methods are safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	covered map[string]bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{covered: make(map[string]bool)}
}

// RegisterRequirements walks the schema (no document involved) and registers
// every path the matcher could ever produce for it, defaulting to uncovered.
// Registration is idempotent: paths already present keep their coverage state,
// so re-loading a schema never clobbers coverage observed earlier. A malformed
// schema yields a *SchemaError and registers nothing further.
func (l *Ledger) RegisterRequirements(schema any) error {
	return requirementWalk(schema, "", l.Register)
}

// Register inserts a single path as required, uncovered. Existing entries are
// left untouched.
func (l *Ledger) Register(path string) {
	l.mu.Lock()
	if _, ok := l.covered[path]; !ok {
		l.covered[path] = false
	}
	l.mu.Unlock()
}

// MarkCovered flips a path to covered. Unregistered paths are recorded too so
// the mark survives a later registration of the same schema; marking is never
// an error.
func (l *Ledger) MarkCovered(path string) {
	l.mu.Lock()
	l.covered[path] = true
	l.mu.Unlock()
}

// Covered reports whether the path has been seen. Unregistered paths are
// simply "not required" and report false.
func (l *Ledger) Covered(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.covered[path]
}

// AllCovered reports whether every registered path has been covered.
func (l *Ledger) AllCovered() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seen := range l.covered {
		if !seen {
			return false
		}
	}
	return true
}

// Uncovered returns the sorted set of registered paths no matching document
// has exercised yet.
func (l *Ledger) Uncovered() []string {
	l.mu.Lock()
	var out []string
	for path, seen := range l.covered {
		if !seen {
			out = append(out, path)
		}
	}
	l.mu.Unlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered paths.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.covered)
}

// requirementWalk mirrors the matcher's path construction over the schema
// alone, calling visit for every reachable coverage path.
func requirementWalk(schema any, prefix string, visit func(path string)) error {
	switch s := schema.(type) {
	case map[string]any:
		if ev, ok := s[DirectiveEnum]; ok {
			members, err := enumMembers(ev, prefix)
			if err != nil {
				return err
			}
			for _, member := range members {
				visit(enumPath(prefix, member))
			}
			return nil
		}
		if sub, ok := s[DirectiveMap]; ok {
			// same prefix: map value shape is key-name independent
			return requirementWalk(sub, prefix, visit)
		}
		for _, k := range sortedKeys(s) {
			child := fieldPath(prefix, k)
			visit(child)
			if err := requirementWalk(s[k], child, visit); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(s) != 1 {
			return schemaErrf(prefix, "array schema must hold exactly one representative element, got %d", len(s))
		}
		return requirementWalk(s[0], elemPath(prefix), visit)
	case nil:
		return nil
	default:
		if k := KindOf(schema); k == KindInvalid {
			return schemaErrf(prefix, "unsupported schema value of type %T", schema)
		}
		// scalars contribute no paths of their own
		return nil
	}
}

// RequiredPaths returns the sorted coverage paths a schema declares, without
// touching any ledger. Useful for reporting and tooling.
func RequiredPaths(schema any) ([]string, error) {
	var out []string
	if err := requirementWalk(schema, "", func(p string) { out = append(out, p) }); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
