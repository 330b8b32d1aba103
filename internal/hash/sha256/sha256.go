// Package sha256 computes hex SHA-256 digests for content fingerprints and
// for the normalized personal data ad platforms match on.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Personal data fields in the short form the conversions APIs use.
const (
	FieldEmail     = "em"
	FieldPhone     = "ph"
	FieldFirstName = "fn"
	FieldLastName  = "ln"
	FieldCity      = "ct"
	FieldState     = "st"
	FieldZip       = "zp"
)

// PIIFields lists every field that must never leave the process unhashed.
var PIIFields = []string{FieldEmail, FieldPhone, FieldFirstName, FieldLastName, FieldCity, FieldState, FieldZip}

// IsPIIField reports whether field names a personal data field.
func IsPIIField(field string) bool {
	for _, f := range PIIFields {
		if f == field {
			return true
		}
	}
	return false
}

// Normalize trims and lowercases value. Phone numbers keep digits only.
func Normalize(field, value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if field == FieldPhone {
		value = strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, value)
	}
	return value
}

// HashPII returns the digest of the normalized value, or "" when nothing is
// left after normalization. A value that already is a hex SHA-256 digest is
// returned lowercased rather than hashed twice.
func (h *Hasher) HashPII(field, value string) string {
	if IsDigest(value) {
		return strings.ToLower(value)
	}
	normalized := Normalize(field, value)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// IsDigest reports whether s looks like a hex SHA-256 digest.
func IsDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
