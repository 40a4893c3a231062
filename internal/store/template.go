package store

import (
	"urban-mobility/internal/validation"
)

// Template is a fixed, parameterized statement skeleton bound to one
// operation. The SQL text is written at startup and never varies at runtime;
// only positional bind values vary. Identifiers that must differ per request
// (a sort column) are expressed as pre-written variants selected by an
// enumerated key, never interpolated.
type Template struct {
	Op  string
	SQL string

	// SortVariants maps a validated sort key to an alternative statement.
	// The keys form a closed enumeration; the validator checks request sort
	// fields against the same enumeration before they reach the gateway.
	SortVariants map[string]string
}

// Bind is one positional statement parameter.
//
// The two constructors are the only ways to build one: Validated wraps a
// value the validator produced, and System wraps a value this process
// generated (a uuid, a timestamp, ciphertext derived from a validated
// value). There is no constructor for raw request text.
type Bind struct {
	name      string
	value     any
	sensitive bool
}

// Validated binds a validator-produced value.
func Validated(v validation.Value) Bind {
	return Bind{name: v.Name(), value: v.Arg(), sensitive: v.Sensitive()}
}

// System binds a process-generated value. Never pass request input here;
// request-derived values go through the validator and Validated.
func System(name string, value any) Bind {
	return Bind{name: name, value: value}
}

// SystemSensitive is System for values that must be redacted in audit
// details (password hashes, encrypted PII).
func SystemSensitive(name string, value any) Bind {
	return Bind{name: name, value: value, sensitive: true}
}

func args(binds []Bind) []any {
	out := make([]any, len(binds))
	for i, b := range binds {
		out[i] = b.value
	}
	return out
}
