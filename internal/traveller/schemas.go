package traveller

import (
	"regexp"

	"urban-mobility/internal/validation"
)

// House numbers: digits with an optional letter suffix ("12", "12a").
var houseNumberPattern = regexp.MustCompile(`^\d{1,5}[A-Za-z]?$`)

var createSchema = []validation.FieldSchema{
	{Name: "first_name", Kind: validation.KindName, Required: true, Sensitive: true},
	{Name: "last_name", Kind: validation.KindName, Required: true, Sensitive: true},
	{Name: "birthday", Kind: validation.KindDate, Required: true, NoFuture: true, Sensitive: true},
	{Name: "gender", Kind: validation.KindEnum, Required: true, Enum: []string{"male", "female"}},
	{Name: "street_name", Kind: validation.KindText, Required: true, Sensitive: true},
	{Name: "house_number", Kind: validation.KindText, Required: true, MaxLen: 6, Pattern: houseNumberPattern, Sensitive: true},
	{Name: "zip_code", Kind: validation.KindZipCode, Required: true, Sensitive: true},
	{Name: "city", Kind: validation.KindCity, Required: true},
	{Name: "email", Kind: validation.KindEmail, Required: true, Sensitive: true},
	{Name: "mobile_phone", Kind: validation.KindPhone, Required: true, Sensitive: true},
	{Name: "driving_licence", Kind: validation.KindLicence, Required: true, Sensitive: true},
}

// updateSchema accepts any subset of the create fields.
var updateSchema = func() []validation.FieldSchema {
	out := make([]validation.FieldSchema, len(createSchema))
	copy(out, createSchema)
	for i := range out {
		out[i].Required = false
	}
	return out
}()

var updateNotEmpty = validation.CrossCheck{
	Name: "at_least_one_field",
	OK: func(r validation.Record) bool {
		return len(r.Fields()) > 0
	},
}

var idSchema = []validation.FieldSchema{
	{Name: "id", Kind: validation.KindIdentifier, Required: true},
}

// Search terms are bounded free text; the match itself happens against
// decrypted values in memory, never inside a statement.
var searchSchema = []validation.FieldSchema{
	{Name: "query", Kind: validation.KindText, Required: true, MinLen: 1, MaxLen: 50},
}
