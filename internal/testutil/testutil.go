package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// EthereumKeyHex is a throwaway secp256k1 key for tests.
const EthereumKeyHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

var (
	arweaveKey     *rsa.PrivateKey
	arweaveKeyOnce sync.Once
)

// ArweaveKey returns a shared 4096-bit RSA test key. Generation is
// expensive, so all tests in a binary share one.
func ArweaveKey() *rsa.PrivateKey {
	arweaveKeyOnce.Do(func() {
		var err error
		for {
			arweaveKey, err = rsa.GenerateKey(rand.Reader, 4096)
			if err != nil {
				panic(err)
			}
			// The owner field is the raw modulus; retry in the
			// astronomically unlikely case it is short.
			if len(arweaveKey.N.Bytes()) == 512 {
				return
			}
		}
	})
	return arweaveKey
}

func SetupMockTraceProvider() *tracetest.InMemoryExporter {
	spanChecker := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanChecker))
	otel.SetTracerProvider(provider)

	return spanChecker
}
