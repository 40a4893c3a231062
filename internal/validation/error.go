package validation

// Error is the rejection carried back to transport as an error value. It
// holds only the field name and the machine reason code; offending input is
// never attached.
type Error struct {
	Field  string
	Reason Reason
}

func (e *Error) Error() string {
	return "validation: " + e.Field + ": " + string(e.Reason)
}

// Err converts a rejected Result into an *Error, or nil when the result
// is accepted.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Field: r.Field, Reason: r.Reason}
}
