package tracking

import (
	"github.com/JakeFAU/hvac-leadsite/internal/hash/sha256"
)

// UserData carries the identity fragments a visitor disclosed. The PII
// fields hold raw values here and are hashed by Hashed before any of them
// leaves the process.
type UserData struct {
	Email     string `json:"em,omitempty" validate:"max=320"`
	Phone     string `json:"ph,omitempty" validate:"max=32"`
	FirstName string `json:"fn,omitempty" validate:"max=100"`
	LastName  string `json:"ln,omitempty" validate:"max=100"`
	City      string `json:"ct,omitempty" validate:"max=100"`
	State     string `json:"st,omitempty" validate:"max=50"`
	Zip       string `json:"zp,omitempty" validate:"max=20"`

	ClientIP  string `json:"client_ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent string `json:"client_user_agent,omitempty" validate:"max=512"`
	FBC       string `json:"fbc,omitempty" validate:"max=500"`
	FBP       string `json:"fbp,omitempty" validate:"max=500"`
	// ClientID is the analytics client id (the _ga cookie value).
	ClientID string `json:"client_id,omitempty" validate:"max=100"`
}

var hasher = sha256.New()

// Hashed returns the user data in the conversions API shape: PII fields as
// SHA-256 hex digests of their normalized values, technical fields verbatim.
// Empty fields are omitted.
func (u UserData) Hashed() map[string]string {
	out := make(map[string]string, 11)
	pii := map[string]string{
		sha256.FieldEmail:     u.Email,
		sha256.FieldPhone:     u.Phone,
		sha256.FieldFirstName: u.FirstName,
		sha256.FieldLastName:  u.LastName,
		sha256.FieldCity:      u.City,
		sha256.FieldState:     u.State,
		sha256.FieldZip:       u.Zip,
	}
	for field, value := range pii {
		if digest := hasher.HashPII(field, value); digest != "" {
			out[field] = digest
		}
	}
	for field, value := range map[string]string{
		"client_ip_address": u.ClientIP,
		"client_user_agent": u.UserAgent,
		"fbc":               u.FBC,
		"fbp":               u.FBP,
	} {
		if value != "" {
			out[field] = value
		}
	}
	return out
}

// Empty reports whether no identity fragment is set.
func (u UserData) Empty() bool {
	return u == UserData{}
}
