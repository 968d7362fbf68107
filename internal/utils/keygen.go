package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// APIKeyPrefix marks keys issued for the public search API.
const APIKeyPrefix = "df_live"

// GenerateAPIKey generates a random API key with the given prefix.
// Format: prefix_randomhex
// Example: df_live_a1b2c3d4e5f6...
func GenerateAPIKey(prefix string) (string, error) {
	b := make([]byte, 32) // 64 char hex
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b)), nil
}
