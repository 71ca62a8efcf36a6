package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/permagate/aogo"
	"github.com/permagate/aogo/x/signer"
)

type Config struct {
	Network Network `yaml:"network"`
	Wallet  Wallet  `yaml:"wallet"`
	Trace   Trace   `yaml:"trace"`
}

type Network struct {
	GatewayURL     string `yaml:"gatewayUrl"`
	MUURL          string `yaml:"muUrl"`
	CUURL          string `yaml:"cuUrl"`
	MaxRetries     int    `yaml:"maxRetries"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type Wallet struct {
	// EthereumKey is a secp256k1 private key in hex, with or without
	// the 0x prefix.
	EthereumKey string `yaml:"ethereumKey"`
	// ArweaveKeyPath points to a PEM-encoded RSA-4096 private key.
	ArweaveKeyPath string `yaml:"arweaveKeyPath"`
}

type Trace struct {
	Enable   bool   `yaml:"enable"`
	Endpoint string `yaml:"endpoint"`
}

// Load reads config from the given path. Unknown fields are an error
// so a typo never silently falls back to a default.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// EngineConfig maps the file onto the engine configuration.
func (c *Config) EngineConfig() (aogo.Config, error) {
	sg, err := c.Signer()
	if err != nil {
		return aogo.Config{}, err
	}
	return aogo.Config{
		GatewayURL: c.Network.GatewayURL,
		MUURL:      c.Network.MUURL,
		CUURL:      c.Network.CUURL,
		Signer:     sg,
		MaxRetries: c.Network.MaxRetries,
		Timeout:    time.Duration(c.Network.TimeoutSeconds) * time.Second,
	}, nil
}

// Signer builds the wallet identity, or nil when no wallet is
// configured. Read-only commands work without one.
func (c *Config) Signer() (signer.Signer, error) {
	switch {
	case c.Wallet.EthereumKey != "":
		return signer.NewEthereumSigner(strings.TrimPrefix(c.Wallet.EthereumKey, "0x"))
	case c.Wallet.ArweaveKeyPath != "":
		key, err := loadRSAKey(c.Wallet.ArweaveKeyPath)
		if err != nil {
			return nil, err
		}
		return signer.NewArweaveSigner(key)
	default:
		return nil, nil
	}
}

func loadRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("wallet file is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("wallet key is not RSA")
	}
	return key, nil
}
