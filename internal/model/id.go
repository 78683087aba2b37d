package model

import (
	"encoding/base32"
	"regexp"

	"github.com/google/uuid"
)

// Survey and response IDs are UUIDv4s encoded with a z-base-32 alphabet and
// no padding, which yields 26 lowercase alphanumeric characters.
var idEncoding = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").WithPadding(base32.NoPadding)

var idPattern = regexp.MustCompile(`^[a-z0-9]{26}$`)

// NewID returns a globally unique 26-character identifier.
func NewID() string {
	u := uuid.New()
	return idEncoding.EncodeToString(u[:])
}

// IsValidID reports whether s has the canonical survey ID format.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}
