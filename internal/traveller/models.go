package traveller

import "time"

// Traveller is a registered customer. Everything that identifies the person
// is stored in encrypted columns; the struct carries decrypted values and
// never leaves the service layer except through the API serializers.
type Traveller struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Birthday       string    `json:"birthday"`
	Gender         string    `json:"gender"`
	StreetName     string    `json:"street_name"`
	HouseNumber    string    `json:"house_number"`
	ZipCode        string    `json:"zip_code"`
	City           string    `json:"city"`
	Email          string    `json:"email"`
	MobilePhone    string    `json:"mobile_phone"`
	DrivingLicence string    `json:"driving_licence"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// row is the stored shape: ciphertext plus the digests that make equality
// constraints possible.
type row struct {
	ID           string
	FirstNameEnc string
	LastNameEnc  string
	BirthdayEnc  string
	Gender       string
	StreetEnc    string
	HouseEnc     string
	ZipEnc       string
	City         string
	EmailEnc     string
	PhoneEnc     string
	LicenceEnc   string
	RegisteredAt time.Time
}
