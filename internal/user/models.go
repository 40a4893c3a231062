package user

import (
	"time"

	"urban-mobility/internal/authz"
)

// User is a staff account. FirstName, LastName and Username live in
// encrypted columns; the struct always carries the decrypted values.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Role         authz.Role `json:"role"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	RegisteredAt time.Time  `json:"registered_at"`
}

// row is the stored shape: ciphertext columns plus the password hash, which
// never leaves this package.
type row struct {
	ID           string
	UsernameEnc  string
	Role         string
	FirstNameEnc string
	LastNameEnc  string
	PasswordHash string
	RegisteredAt time.Time
}
