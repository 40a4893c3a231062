package validation

import "regexp"

// Kind is the closed set of semantic field types the application accepts.
// Every kind has an explicit allow-list check in the validator; there is no
// generic passthrough kind.
type Kind int

const (
	KindIdentifier Kind = iota // UUID produced by this system
	KindUsername
	KindPassword
	KindName // personal name
	KindText // bounded free text (brand, model, street)
	KindEmail
	KindZipCode // Dutch DDDDXX
	KindCity    // closed city list
	KindPhone   // 8-digit mobile suffix
	KindLicence // driving licence XXDDDDDDD or XDDDDDDDD
	KindSerial  // scooter serial, 10-17 alphanumeric
	KindInt
	KindCoordinate // latitude/longitude with 5 decimals
	KindDate       // ISO 8601 date
	KindEnum
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindUsername:
		return "username"
	case KindPassword:
		return "password"
	case KindName:
		return "name"
	case KindText:
		return "text"
	case KindEmail:
		return "email"
	case KindZipCode:
		return "zip_code"
	case KindCity:
		return "city"
	case KindPhone:
		return "phone"
	case KindLicence:
		return "licence"
	case KindSerial:
		return "serial"
	case KindInt:
		return "int"
	case KindCoordinate:
		return "coordinate"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// FieldSchema describes one input field. Schemas are built once at startup
// and are read-only afterwards; they are configuration, not request state.
type FieldSchema struct {
	Name     string
	Kind     Kind
	Required bool

	// Length bounds for string kinds. Zero means the kind default applies.
	MinLen int
	MaxLen int

	// Numeric bounds for KindInt.
	Min int64
	Max int64

	// Float bounds for KindCoordinate.
	FMin float64
	FMax float64

	// Enum lists the accepted values for KindEnum (compared case-folded).
	Enum []string

	// Pattern optionally narrows KindText beyond the default allow-list.
	Pattern *regexp.Regexp

	// NoFuture rejects KindDate values after the validation day.
	NoFuture bool

	// Sensitive marks fields that must be redacted in query audit events
	// (passwords, PII destined for encrypted columns).
	Sensitive bool
}

// Reason is a stable machine-readable rejection code. Codes are safe to
// return to callers and to log; raw offending input never is.
type Reason string

const (
	ReasonRequiredMissing Reason = "REQUIRED_MISSING"
	ReasonTooShort        Reason = "TOO_SHORT"
	ReasonTooLong         Reason = "TOO_LONG"
	ReasonPatternMismatch Reason = "PATTERN_MISMATCH"
	ReasonOutOfRange      Reason = "OUT_OF_RANGE"
	ReasonNotInSet        Reason = "NOT_IN_SET"
	ReasonBadFormat       Reason = "BAD_FORMAT"
	ReasonForbiddenValue  Reason = "FORBIDDEN_VALUE"
	ReasonControlChars    Reason = "CONTROL_CHARS"
	ReasonWeakPassword    Reason = "WEAK_PASSWORD"
	ReasonInconsistent    Reason = "INCONSISTENT"
)

// Result is the whole-record outcome. Either OK with a complete Record, or
// rejected with the first failing field and its reason. Never both.
type Result struct {
	OK     bool
	Record Record

	Field  string
	Reason Reason
}

func accepted(rec Record) Result {
	return Result{OK: true, Record: rec}
}

func rejected(field string, reason Reason) Result {
	return Result{Field: field, Reason: reason}
}

// CrossCheck is a consistency rule over already-validated fields. Cross
// checks run only after every individual field has passed, and see only
// normalized values.
type CrossCheck struct {
	// Name identifies the rule in rejections and audit events.
	Name string
	// OK reports whether the record satisfies the rule.
	OK func(r Record) bool
}
