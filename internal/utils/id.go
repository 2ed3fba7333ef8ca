// Package utils provides identifier helpers shared by trail components.
//
// Batch, asset and payment identifiers are random UUIDs so that documents
// created on different trail nodes never collide when they meet on-chain.
// Short forms are used for log lines and CLI tables only; the full value is
// always what gets persisted and submitted.
package utils

import (
	"strings"

	"github.com/google/uuid"
)

// ShortIDLength is the number of characters kept by TruncateID.
const ShortIDLength = 12

// GenerateID returns a new random identifier in canonical UUID form.
func GenerateID() string {
	return uuid.NewString()
}

// IsValidID reports whether id parses as a UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// TruncateID shortens an identifier for display. Dashes are dropped first so
// UUIDs and hex hashes produce the same Docker-like short form.
func TruncateID(id string) string {
	compact := strings.TrimPrefix(strings.ReplaceAll(id, "-", ""), "0x")
	if len(compact) <= ShortIDLength {
		return compact
	}
	return compact[:ShortIDLength]
}
