package validation

import "time"

// Value is one normalized, typed field produced by the validator.
//
// The fields are unexported and there is no public constructor: the only way
// a Value exists is by passing validation. The store layer accepts Values for
// request-derived binds, which makes handing it a raw request string a
// compile error rather than a code-review finding.
type Value struct {
	name      string
	kind      Kind
	sensitive bool

	str     string
	num     int64
	fnum    float64
	day     time.Time
	boolean bool
}

func (v Value) Name() string    { return v.name }
func (v Value) Kind() Kind      { return v.kind }
func (v Value) Sensitive() bool { return v.sensitive }

// Str returns the normalized string form. Only meaningful for string kinds.
func (v Value) Str() string { return v.str }

func (v Value) Int() int64       { return v.num }
func (v Value) Float() float64   { return v.fnum }
func (v Value) Date() time.Time  { return v.day }
func (v Value) Bool() bool       { return v.boolean }

// Arg returns the driver-ready bind value.
func (v Value) Arg() any {
	switch v.kind {
	case KindInt:
		return v.num
	case KindCoordinate:
		return v.fnum
	case KindDate:
		return v.day
	case KindBool:
		return v.boolean
	default:
		return v.str
	}
}

// Record is a fully validated input record. A Record is only ever produced
// whole: if any field fails, no Record exists for the request.
type Record struct {
	values map[string]Value
	order  []string
}

// Get returns a validated field by name.
func (r Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// MustGet returns a validated field and panics if absent. For use after the
// schema guarantees presence (required fields).
func (r Record) MustGet(name string) Value {
	v, ok := r.values[name]
	if !ok {
		panic("validation: field not in record: " + name)
	}
	return v
}

// Has reports whether an optional field was present and validated.
func (r Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Fields returns field names in schema order.
func (r Record) Fields() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func newRecord() Record {
	return Record{values: make(map[string]Value)}
}

func (r *Record) put(v Value) {
	r.values[v.name] = v
	r.order = append(r.order, v.name)
}
