package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestB64RoundTrip(t *testing.T) {
	data := []byte{0xff, 0xfe, 0x00, 0x01, 0x7f}
	encoded := B64Encode(data)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	decoded, err := B64Decode(encoded)
	assert.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestSha256B64(t *testing.T) {
	// 32-byte digest is always 43 characters unpadded.
	assert.Len(t, Sha256B64([]byte("hello")), 43)
	assert.Equal(t, Sha256B64([]byte("a")), Sha256B64([]byte("a")))
	assert.NotEqual(t, Sha256B64([]byte("a")), Sha256B64([]byte("b")))
}
