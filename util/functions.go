package util

import (
	"crypto/sha256"
	"encoding/base64"
)

// B64Encode encodes bytes in the protocol's unpadded url-safe alphabet.
func B64Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func B64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Sha256B64 is the content-address form used for envelope ids and
// owner addresses.
func Sha256B64(data []byte) string {
	sum := sha256.Sum256(data)
	return B64Encode(sum[:])
}
