package shapecover_test

import (
	"context"
	"errors"
	"testing"

	shapecover "github.com/reoring/shapecover"
	"github.com/reoring/shapecover/codec"
)

const statusSchemaJSON = `{
	"apple": 3,
	"banana": "foo",
	"sub": {"thing": true},
	"arr": [{"a": 1, "b": 2}],
	"en": {"$enum": ["foo", "bar"]},
	"mapped": {"$map": {"x": true}}
}`

func mustSchema(t *testing.T, src string) any {
	t.Helper()
	s, err := codec.DecodeSchema([]byte(src))
	if err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	return s
}

func mustDoc(t *testing.T, src string) any {
	t.Helper()
	d, err := codec.DecodeDocument([]byte(src))
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return d
}

func TestMatch_StatusSchemaScenarios(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)

	cases := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"empty object", `{}`, true},
		{"number value irrelevant", `{"apple":4}`, true},
		{"kind mismatch", `{"apple":"wrongtype"}`, false},
		{"unknown key closed object", `{"extrathingy":1}`, false},
		{"nested match", `{"banana":"b","sub":{"thing":false}}`, true},
		{"unknown key nested", `{"banana":"b","sub":{"thing":false,"x":0}}`, false},
		{"array elements optional fields", `{"arr":[{},{"a":0}]}`, true},
		{"array element unknown key", `{"arr":[{"a":0},{"c":0}]}`, false},
		{"enum member", `{"en":"bar"}`, true},
		{"enum non-member", `{"en":"baz"}`, false},
		{"map arbitrary keys", `{"mapped":{"item1":{"x":false},"item2":{}}}`, true},
		{"map value unknown key", `{"mapped":{"item1":{"x":false},"item2":{"y":1}}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, iss, err := shapecover.Match(ctx, schema, mustDoc(t, tc.doc))
			if err != nil {
				t.Fatalf("unexpected schema error: %v", err)
			}
			if ok != tc.ok {
				t.Fatalf("Match = %v, want %v (issues: %v)", ok, tc.ok, iss)
			}
			if !ok && len(iss) == 0 {
				t.Fatalf("mismatch reported no issues")
			}
			if ok && len(iss) != 0 {
				t.Fatalf("match produced issues: %v", iss)
			}
		})
	}
}

func TestMatch_IssuePathsAndCodes(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)

	cases := []struct {
		doc      string
		wantCode string
		wantPath string
	}{
		{`{"apple":"wrongtype"}`, shapecover.CodeInvalidType, ".apple"},
		{`{"extrathingy":1}`, shapecover.CodeUnknownKey, ".extrathingy"},
		{`{"sub":{"thing":false,"x":0}}`, shapecover.CodeUnknownKey, ".sub.x"},
		{`{"arr":[{"c":0}]}`, shapecover.CodeUnknownKey, ".arr[0].c"},
		{`{"arr":"notanarray"}`, shapecover.CodeInvalidType, ".arr"},
		{`{"en":"baz"}`, shapecover.CodeInvalidEnum, ".en"},
		{`{"en":7}`, shapecover.CodeInvalidType, ".en"},
		{`{"mapped":"notanobject"}`, shapecover.CodeInvalidType, ".mapped"},
		{`{"mapped":{"k":{"y":1}}}`, shapecover.CodeUnknownKey, ".mapped.y"},
	}
	for _, tc := range cases {
		ok, iss, err := shapecover.Match(ctx, schema, mustDoc(t, tc.doc))
		if err != nil {
			t.Fatalf("doc %s: unexpected schema error: %v", tc.doc, err)
		}
		if ok {
			t.Fatalf("doc %s: expected mismatch", tc.doc)
		}
		if len(iss) != 1 {
			t.Fatalf("doc %s: expected one issue, got %v", tc.doc, iss)
		}
		if iss[0].Code != tc.wantCode || iss[0].Path != tc.wantPath {
			t.Fatalf("doc %s: got issue %s at %s, want %s at %s",
				tc.doc, iss[0].Code, iss[0].Path, tc.wantCode, tc.wantPath)
		}
	}
}

func TestMatch_CollectVsFailFast(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)
	doc := mustDoc(t, `{"apple":"wrongtype","banana":7,"extrathingy":1}`)

	ok, iss, err := shapecover.Match(ctx, schema, doc)
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}
	if ok || len(iss) != 3 {
		t.Fatalf("collect mode: ok=%v issues=%v, want three issues", ok, iss)
	}

	ok, iss, err = shapecover.Match(ctx, schema, doc, shapecover.MatchOpt{FailFast: true})
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}
	if ok || len(iss) != 1 {
		t.Fatalf("fail-fast mode: ok=%v issues=%v, want exactly one issue", ok, iss)
	}
}

func TestMatch_SeverityStampedNotControlFlow(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)
	doc := mustDoc(t, `{"apple":"wrongtype"}`)

	ok, iss, err := shapecover.Match(ctx, schema, doc, shapecover.MatchOpt{}.WithSeverity(shapecover.Warn))
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}
	if ok {
		t.Fatalf("severity must not change the verdict")
	}
	if iss[0].Severity != shapecover.Warn {
		t.Fatalf("issue severity = %v, want Warn", iss[0].Severity)
	}

	// default severity is Error
	_, iss, _ = shapecover.Match(ctx, schema, doc)
	if iss[0].Severity != shapecover.Error {
		t.Fatalf("default issue severity = %v, want Error", iss[0].Severity)
	}
}

func TestMatch_PathPrefix(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)
	_, iss, err := shapecover.Match(ctx, schema, mustDoc(t, `{"apple":"wrongtype"}`),
		shapecover.MatchOpt{PathPrefix: ".cluster"})
	if err != nil {
		t.Fatalf("unexpected schema error: %v", err)
	}
	if len(iss) != 1 || iss[0].Path != ".cluster.apple" {
		t.Fatalf("issues = %v, want one at .cluster.apple", iss)
	}
}

func TestMatch_NilSchemaIsWildcard(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, `{"anything": null}`)
	for _, doc := range []string{`{"anything":1}`, `{"anything":"s"}`, `{"anything":[1,2]}`, `{"anything":{"k":true}}`, `{"anything":null}`} {
		ok, iss, err := shapecover.Match(ctx, schema, mustDoc(t, doc))
		if err != nil || !ok {
			t.Fatalf("doc %s: ok=%v iss=%v err=%v, want wildcard match", doc, ok, iss, err)
		}
	}
}

func TestMatch_EmptyArrayVacuouslyTrue(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, statusSchemaJSON)
	ok, _, err := shapecover.Match(ctx, schema, mustDoc(t, `{"arr":[]}`))
	if err != nil || !ok {
		t.Fatalf("empty document array must match, got ok=%v err=%v", ok, err)
	}
}

func TestMatch_MalformedSchema(t *testing.T) {
	ctx := context.Background()
	doc := mustDoc(t, `{"arr":[{"a":1}]}`)

	cases := []struct {
		name   string
		schema string
		doc    any
	}{
		{"array schema empty", `{"arr":[]}`, doc},
		{"array schema two elements", `{"arr":[{"a":1},{"a":2}]}`, doc},
		{"enum not an array", `{"en":{"$enum":"foo"}}`, mustDoc(t, `{"en":"foo"}`)},
		{"enum member not a string", `{"en":{"$enum":["foo",3]}}`, mustDoc(t, `{"en":"foo"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schema := mustSchema(t, tc.schema)
			_, _, err := shapecover.Match(ctx, schema, tc.doc)
			var se *shapecover.SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SchemaError, got %v", err)
			}
		})
	}
}

// Malformed branches not reached by the document still register their fault
// only once traversal gets there; an absent field leaves the schema fault
// undetected for that document, matching the requirements walk being the
// place schema health is asserted up front.
func TestMatch_MalformedBranchNotTraversed(t *testing.T) {
	ctx := context.Background()
	schema := mustSchema(t, `{"arr":[],"apple":3}`)
	ok, _, err := shapecover.Match(ctx, schema, mustDoc(t, `{"apple":1}`))
	if err != nil || !ok {
		t.Fatalf("untouched malformed branch: ok=%v err=%v", ok, err)
	}

	ledger := shapecover.NewLedger()
	if err := ledger.RegisterRequirements(schema); err == nil {
		t.Fatalf("requirements walk must reject the malformed branch")
	}
}

func TestMatch_NumberFormsAreOneKind(t *testing.T) {
	ctx := context.Background()
	// yaml.v3 yields plain ints, JSON yields json.Number; both are number-kinded
	schema, err := codec.DecodeSchemaYAML([]byte("apple: 3\nbanana: foo\n"))
	if err != nil {
		t.Fatalf("decode yaml schema: %v", err)
	}
	ok, iss, err := shapecover.Match(ctx, schema, mustDoc(t, `{"apple":4.5}`))
	if err != nil || !ok {
		t.Fatalf("number kinds must unify: ok=%v iss=%v err=%v", ok, iss, err)
	}
}
