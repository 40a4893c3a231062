package user

import "urban-mobility/internal/validation"

// Input schemas. Built once, read-only afterwards.
//
// Passwords only ever meet the hash verifier, so the current password on a
// password change is passed through opaque; only new material is
// strength-checked.

var createSchema = []validation.FieldSchema{
	{Name: "username", Kind: validation.KindUsername, Required: true},
	{Name: "password", Kind: validation.KindPassword, Required: true, Sensitive: true},
	{Name: "first_name", Kind: validation.KindName, Required: true, Sensitive: true},
	{Name: "last_name", Kind: validation.KindName, Required: true, Sensitive: true},
}

var updateSchema = []validation.FieldSchema{
	{Name: "username", Kind: validation.KindUsername},
	{Name: "first_name", Kind: validation.KindName, Sensitive: true},
	{Name: "last_name", Kind: validation.KindName, Sensitive: true},
}

var updateNotEmpty = validation.CrossCheck{
	Name: "at_least_one_field",
	OK: func(r validation.Record) bool {
		return len(r.Fields()) > 0
	},
}

var passwordSchema = []validation.FieldSchema{
	{Name: "password", Kind: validation.KindPassword, Required: true, Sensitive: true},
}

var idSchema = []validation.FieldSchema{
	{Name: "id", Kind: validation.KindIdentifier, Required: true},
}

var listSchema = []validation.FieldSchema{
	{Name: "sort", Kind: validation.KindEnum, Enum: []string{"registered_at", "role"}},
}
