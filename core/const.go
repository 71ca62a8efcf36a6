package core

import "time"

const (
	// Protocol identity tags stamped on every envelope.
	DataProtocol = "ao"
	Variant      = "ao.TN.1"
	SDKName      = "aogo"
)

const (
	TagDataProtocol = "Data-Protocol"
	TagVariant      = "Variant"
	TagType         = "Type"
	TagModule       = "Module"
	TagScheduler    = "Scheduler"
	TagSDK          = "SDK"
)

const (
	TypeProcess           = "Process"
	TypeMessage           = "Message"
	TypeSchedulerLocation = "Scheduler-Location"
)

// Tag ceilings enforced by the codec. Totals are measured on the
// avro-encoded wire form, not the in-memory representation.
const (
	MaxTagCount       = 128
	MaxTagNameLen     = 1024
	MaxTagValueLen    = 3072
	MaxTagsEncodedLen = 4096
)

const (
	MaxDataLen = 10 * 1024 * 1024
	AnchorLen  = 32
	TargetLen  = 32
)

type SignatureType int

const (
	SigTypeArweave  SignatureType = 1
	SigTypeEthereum SignatureType = 3
)

// SignatureMeta fixes the wire widths of a signature scheme.
type SignatureMeta struct {
	Name     string
	SigLen   int
	OwnerLen int
}

var signatureMetas = map[SignatureType]SignatureMeta{
	SigTypeArweave:  {Name: "arweave", SigLen: 512, OwnerLen: 512},
	SigTypeEthereum: {Name: "ethereum", SigLen: 65, OwnerLen: 65},
}

func (t SignatureType) Meta() (SignatureMeta, bool) {
	meta, ok := signatureMetas[t]
	return meta, ok
}

func (t SignatureType) String() string {
	if meta, ok := signatureMetas[t]; ok {
		return meta.Name
	}
	return "unknown"
}

const (
	DefaultGatewayURL = "https://arweave.net"
	DefaultCUURL      = "https://cu.ao-testnet.xyz"
)

const (
	DefaultMaxRetries      = 3
	DefaultTimeout         = 30 * time.Second
	DefaultLocationTTL     = 30 * time.Minute
	DefaultPollInterval    = 2 * time.Second
	DefaultPollWindow      = 2 * time.Minute
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultBackoffFactor   = 2.0
	DefaultJitter          = 0.5
)
