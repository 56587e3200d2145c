package shapecover

// Package shapecover provides:
//
// - Permissive shape conformance checking of decoded JSON-like trees against
//   sample-valued schemas with $enum/$map directives (Match)
// - A stable mismatch model via Issues (dotted path, code, message, severity)
// - Process-lifetime branch coverage accounting via Ledger, so a long soak run
//   can assert that real data exercised every declared schema branch at least once
//
// Design policy:
// - Keep only public APIs in the root package; decoding lives under codec/,
//   the soak harness under soak/, and the CLI under cmd/shapecover.
// - Schema malformation is a distinct error channel (*SchemaError); document
//   mismatches are plain Issues and never abort a run.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	ledger := shapecover.NewLedger()
//	if err := ledger.RegisterRequirements(schema); err != nil { ... }
//	ok, iss, err := shapecover.Match(ctx, schema, doc, shapecover.MatchOpt{Ledger: ledger})
//	...
//	if !ledger.AllCovered() { report(ledger.Uncovered()) }
