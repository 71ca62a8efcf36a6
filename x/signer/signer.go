// Package signer provides the signing identities shared by the
// envelope signer and the HTTP request signer. Identities are
// read-only after construction and safe for concurrent use.
package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/util"
)

// Signer produces protocol signatures over a message. Sign receives
// the raw message (the envelope deep-hash or the HTTP signature base)
// and applies the scheme's own digesting.
type Signer interface {
	Type() core.SignatureType
	Owner() []byte
	Address() string
	Sign(message []byte) ([]byte, error)
}

var pssOpts = &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}

// ArweaveSigner signs with a 4096-bit RSA key using PSS over SHA-256.
// The owner field is the big-endian public modulus.
type ArweaveSigner struct {
	key   *rsa.PrivateKey
	owner []byte
}

func NewArweaveSigner(key *rsa.PrivateKey) (*ArweaveSigner, error) {
	if key == nil {
		return nil, core.NewSigningError("rsa key is nil", nil)
	}
	meta, _ := core.SigTypeArweave.Meta()
	owner := key.N.Bytes()
	if len(owner) != meta.OwnerLen {
		return nil, core.NewSigningError(fmt.Sprintf("rsa modulus must be %d bytes, got %d", meta.OwnerLen, len(owner)), nil)
	}
	return &ArweaveSigner{key: key, owner: owner}, nil
}

func (s *ArweaveSigner) Type() core.SignatureType {
	return core.SigTypeArweave
}

func (s *ArweaveSigner) Owner() []byte {
	return s.owner
}

func (s *ArweaveSigner) Address() string {
	return util.Sha256B64(s.owner)
}

func (s *ArweaveSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	signature, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], pssOpts)
	if err != nil {
		return nil, core.NewSigningError("rsa-pss signature failed", err)
	}
	return signature, nil
}

// EthereumSigner signs with a secp256k1 key over the keccak256 of the
// personal-message-prefixed payload. Signatures are deterministic.
type EthereumSigner struct {
	key   *ecdsa.PrivateKey
	owner []byte
}

func NewEthereumSigner(hexkey string) (*EthereumSigner, error) {
	key, err := ethcrypto.HexToECDSA(hexkey)
	if err != nil {
		return nil, core.NewSigningError("failed to parse secp256k1 key", err)
	}
	return &EthereumSigner{
		key:   key,
		owner: ethcrypto.FromECDSAPub(&key.PublicKey),
	}, nil
}

func (s *EthereumSigner) Type() core.SignatureType {
	return core.SigTypeEthereum
}

func (s *EthereumSigner) Owner() []byte {
	return s.owner
}

func (s *EthereumSigner) Address() string {
	return ethcrypto.PubkeyToAddress(s.key.PublicKey).Hex()
}

func (s *EthereumSigner) Sign(message []byte) ([]byte, error) {
	signature, err := ethcrypto.Sign(personalHash(message), s.key)
	if err != nil {
		return nil, core.NewSigningError("secp256k1 signature failed", err)
	}
	return signature, nil
}

func personalHash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return core.Keccak256([]byte(prefix), message)
}

// Verify checks a signature against the embedded owner key of the
// given scheme.
func Verify(sigType core.SignatureType, owner, message, signature []byte) error {
	meta, ok := sigType.Meta()
	if !ok {
		return core.NewSigningError(fmt.Sprintf("unknown signature type %d", sigType), nil)
	}
	if len(owner) != meta.OwnerLen {
		return core.NewSigningError("owner key has wrong length", nil)
	}
	if len(signature) != meta.SigLen {
		return core.NewSigningError("signature has wrong length", nil)
	}

	switch sigType {
	case core.SigTypeArweave:
		pub := &rsa.PublicKey{N: new(big.Int).SetBytes(owner), E: 65537}
		digest := sha256.Sum256(message)
		if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, pssOpts); err != nil {
			return core.NewSigningError("rsa-pss verification failed", err)
		}
		return nil
	case core.SigTypeEthereum:
		// The trailing recovery byte is not part of the ECDSA check.
		if !ethcrypto.VerifySignature(owner, personalHash(message), signature[:64]) {
			return core.NewSigningError("secp256k1 verification failed", nil)
		}
		return nil
	default:
		return core.NewSigningError("unsupported signature type", nil)
	}
}
