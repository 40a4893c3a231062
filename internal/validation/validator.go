package validation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"urban-mobility/internal/audit"

	"github.com/google/uuid"
)

// Validator classifies and normalizes every untrusted value before it can
// reach the store layer. It is stateless with respect to request data; given
// the same raw record and schema the result is always identical.
type Validator struct {
	rec   audit.Recorder
	clock func() time.Time

	// onReject is called once per rejection with the reason code (metrics).
	onReject func(Reason)
}

type Option func(*Validator)

func WithClock(clock func() time.Time) Option {
	return func(v *Validator) { v.clock = clock }
}

func WithRejectHook(fn func(Reason)) Option {
	return func(v *Validator) { v.onReject = fn }
}

func New(rec audit.Recorder, opts ...Option) *Validator {
	v := &Validator{rec: rec, clock: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks raw against schema in schema order and short-circuits on
// the first failure. Cross checks run only once every field has passed, on
// normalized values. Exactly one audit event is emitted per rejection; it
// carries the field name and reason code, never the raw input.
func (v *Validator) Validate(ctx context.Context, actor, operation string, raw map[string]string, schema []FieldSchema, checks ...CrossCheck) Result {
	rec := newRecord()

	for _, fs := range schema {
		rawVal, present := raw[fs.Name]
		if !present || strings.TrimSpace(rawVal) == "" {
			if fs.Required {
				return v.reject(ctx, actor, operation, fs.Name, ReasonRequiredMissing, "")
			}
			continue
		}

		val, reason := v.validateField(fs, rawVal)
		if reason != "" {
			return v.reject(ctx, actor, operation, fs.Name, reason, rawVal)
		}
		rec.put(val)
	}

	for _, check := range checks {
		if !check.OK(rec) {
			return v.reject(ctx, actor, operation, check.Name, ReasonInconsistent, "")
		}
	}

	return accepted(rec)
}

func (v *Validator) reject(ctx context.Context, actor, operation, field string, reason Reason, rawVal string) Result {
	if v.onReject != nil {
		v.onReject(reason)
	}
	if v.rec != nil {
		v.rec.Log(ctx, audit.Event{
			Actor:    actor,
			Category: audit.CategoryValidationFailure,
			Details: map[string]string{
				"operation": operation,
				"field":     field,
				"reason":    string(reason),
			},
			Suspicious: looksSuspicious(rawVal),
		})
	}
	return rejected(field, reason)
}

// validateField normalizes one raw value and applies the kind's allow-list.
// Returns the typed value, or a non-empty reason on rejection.
func (v *Validator) validateField(fs FieldSchema, raw string) (Value, Reason) {
	out := Value{name: fs.Name, kind: fs.Kind, sensitive: fs.Sensitive}

	// Passwords keep their exact bytes; everything else is trimmed.
	s := raw
	if fs.Kind != KindPassword {
		s = strings.TrimSpace(raw)
	}

	if hasControlChars(s) {
		return Value{}, ReasonControlChars
	}

	switch fs.Kind {
	case KindIdentifier:
		id, err := uuid.Parse(s)
		if err != nil {
			return Value{}, ReasonBadFormat
		}
		out.str = id.String()

	case KindUsername:
		s = strings.ToLower(s)
		if r := checkLength(s, fs, 3, 30); r != "" {
			return Value{}, r
		}
		if !usernamePattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		if _, forbidden := forbiddenUsernames[s]; forbidden {
			return Value{}, ReasonForbiddenValue
		}
		out.str = s

	case KindPassword:
		if r := checkLength(s, fs, 8, 128); r != "" {
			return Value{}, r
		}
		if !strings.ContainsFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) ||
			!strings.ContainsFunc(s, func(r rune) bool { return r >= 'a' && r <= 'z' }) ||
			!strings.ContainsFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) ||
			!passwordSpecial.MatchString(s) {
			return Value{}, ReasonWeakPassword
		}
		if hasRepeatedRun(s) {
			return Value{}, ReasonWeakPassword
		}
		out.str = s
		out.sensitive = true

	case KindName:
		if r := checkLength(s, fs, 1, 50); r != "" {
			return Value{}, r
		}
		if !namePattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindText:
		if r := checkLength(s, fs, 1, 100); r != "" {
			return Value{}, r
		}
		pattern := textPattern
		if fs.Pattern != nil {
			pattern = fs.Pattern
		}
		if !pattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindEmail:
		s = strings.ToLower(s)
		if r := checkLength(s, fs, 5, 254); r != "" {
			return Value{}, r
		}
		if !emailPattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindZipCode:
		s = strings.ToUpper(s)
		if !zipCodePattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindCity:
		found := false
		for _, city := range Cities {
			if s == city {
				found = true
				break
			}
		}
		if !found {
			return Value{}, ReasonNotInSet
		}
		out.str = s

	case KindPhone:
		if !phonePattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindLicence:
		s = strings.ToUpper(s)
		if !licencePattern9.MatchString(s) && !licencePattern10.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindSerial:
		if !serialPattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		out.str = s

	case KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, ReasonBadFormat
		}
		if (fs.Min != 0 || fs.Max != 0) && (n < fs.Min || n > fs.Max) {
			return Value{}, ReasonOutOfRange
		}
		out.num = n

	case KindCoordinate:
		if !coordinatePattern.MatchString(s) {
			return Value{}, ReasonPatternMismatch
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, ReasonBadFormat
		}
		if (fs.FMin != 0 || fs.FMax != 0) && (f < fs.FMin || f > fs.FMax) {
			return Value{}, ReasonOutOfRange
		}
		out.fnum = f
		out.str = s

	case KindDate:
		if !isoDatePattern.MatchString(s) {
			return Value{}, ReasonBadFormat
		}
		day, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return Value{}, ReasonBadFormat
		}
		if fs.NoFuture {
			today := v.clock().UTC().Truncate(24 * time.Hour)
			if day.After(today) {
				return Value{}, ReasonOutOfRange
			}
		}
		out.day = day
		out.str = s

	case KindEnum:
		s = strings.ToLower(s)
		found := false
		for _, allowed := range fs.Enum {
			if s == strings.ToLower(allowed) {
				found = true
				break
			}
		}
		if !found {
			return Value{}, ReasonNotInSet
		}
		out.str = s

	case KindBool:
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			out.boolean = true
		case "false", "0", "no":
			out.boolean = false
		default:
			return Value{}, ReasonBadFormat
		}

	default:
		// Unknown kinds never validate; the set above is the whole contract.
		return Value{}, ReasonBadFormat
	}

	return out, ""
}

func checkLength(s string, fs FieldSchema, defMin, defMax int) Reason {
	min, max := fs.MinLen, fs.MaxLen
	if min == 0 {
		min = defMin
	}
	if max == 0 {
		max = defMax
	}
	if len(s) < min {
		return ReasonTooShort
	}
	if len(s) > max {
		return ReasonTooLong
	}
	return ""
}
