package core

import (
	"crypto/sha512"
	"strconv"

	"golang.org/x/crypto/sha3"
)

// DeepHashChunk hashes a single byte chunk into the protocol's SHA-384
// hash tree: H(H("blob" || len) || H(data)).
func DeepHashChunk(data []byte) [48]byte {
	tag := append([]byte("blob"), []byte(strconv.Itoa(len(data)))...)
	tagHash := sha512.Sum384(tag)
	dataHash := sha512.Sum384(data)
	return sha512.Sum384(append(tagHash[:], dataHash[:]...))
}

// DeepHash folds an ordered list of byte chunks into a single SHA-384
// digest. The accumulator starts at H("list" || count) and absorbs each
// chunk's DeepHashChunk in order, so both content and position are
// covered.
func DeepHash(chunks ...[]byte) [48]byte {
	tag := append([]byte("list"), []byte(strconv.Itoa(len(chunks)))...)
	acc := sha512.Sum384(tag)
	for _, chunk := range chunks {
		chunkHash := DeepHashChunk(chunk)
		acc = sha512.Sum384(append(acc[:], chunkHash[:]...))
	}
	return acc
}

func Keccak256(chunks ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		hash.Write(chunk)
	}
	return hash.Sum(nil)
}
