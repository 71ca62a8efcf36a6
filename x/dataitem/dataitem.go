// Package dataitem builds, signs and verifies the binary envelopes the
// network accepts. An envelope is content-addressed: its id derives
// from the signature, which in turn covers a deep-hash of every field,
// so identical inputs re-sign to the same logical identity.
package dataitem

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/util"
	"github.com/permagate/aogo/x/signer"
	"github.com/permagate/aogo/x/tags"
)

// DataItem is a signed (or to-be-signed) protocol envelope.
type DataItem struct {
	SigType   core.SignatureType
	Signature []byte
	Owner     []byte
	Target    string // base64url-encoded 32-byte address, or empty
	Anchor    []byte // nil or exactly 32 bytes
	Tags      []core.Tag
	Data      []byte

	raw []byte // wire form, cached at sign/decode time
}

// New builds an unsigned envelope, validating field shapes up front so
// nothing is dispatched half-formed.
func New(target string, anchor []byte, tagSet []core.Tag, data []byte) (*DataItem, error) {
	if target != "" {
		raw, err := util.B64Decode(target)
		if err != nil || len(raw) != core.TargetLen {
			return nil, core.NewSigningError("target is not a 32-byte address", err)
		}
	}
	if anchor != nil && len(anchor) != core.AnchorLen {
		return nil, core.NewSigningError(fmt.Sprintf("anchor must be %d bytes, got %d", core.AnchorLen, len(anchor)), nil)
	}
	if len(data) > core.MaxDataLen {
		return nil, core.NewSigningError("payload exceeds maximum size", nil)
	}

	return &DataItem{
		Target: target,
		Anchor: anchor,
		Tags:   tagSet,
		Data:   data,
	}, nil
}

// SignatureData is the deterministic digest the signature covers: a
// SHA-384 deep-hash over the protocol's fixed field order.
func (d *DataItem) SignatureData(sigType core.SignatureType, owner []byte) []byte {
	targetRaw, _ := util.B64Decode(d.Target)
	digest := core.DeepHash(
		[]byte("dataitem"),
		[]byte("1"),
		[]byte(strconv.Itoa(int(sigType))),
		owner,
		targetRaw,
		d.Anchor,
		tags.Encode(d.Tags),
		d.Data,
	)
	return digest[:]
}

// Sign fills in the signature fields from the given identity and
// caches the wire encoding so retries re-send identical bytes.
func Sign(d *DataItem, s signer.Signer) error {
	meta, ok := s.Type().Meta()
	if !ok {
		return core.NewSigningError("signer has unknown signature type", nil)
	}

	signature, err := s.Sign(d.SignatureData(s.Type(), s.Owner()))
	if err != nil {
		return err
	}
	if len(signature) != meta.SigLen {
		return core.NewSigningError("signer produced wrong-length signature", nil)
	}

	d.SigType = s.Type()
	d.Owner = s.Owner()
	d.Signature = signature
	d.raw = nil

	raw, err := d.Encode()
	if err != nil {
		return err
	}
	d.raw = raw
	return nil
}

// ID is the envelope's content address: base64url(sha256(signature)).
func (d *DataItem) ID() string {
	if d.Signature == nil {
		return ""
	}
	return util.Sha256B64(d.Signature)
}

// Encode serializes the signed envelope into its binary wire form.
func (d *DataItem) Encode() ([]byte, error) {
	if d.raw != nil {
		return d.raw, nil
	}
	if d.Signature == nil {
		return nil, core.NewSigningError("cannot encode unsigned envelope", nil)
	}
	meta, ok := d.SigType.Meta()
	if !ok {
		return nil, core.NewSigningError("unknown signature type", nil)
	}
	if len(d.Signature) != meta.SigLen || len(d.Owner) != meta.OwnerLen {
		return nil, core.NewSigningError("signature or owner has wrong length", nil)
	}

	var buf bytes.Buffer
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(d.SigType))
	buf.Write(u16[:])
	buf.Write(d.Signature)
	buf.Write(d.Owner)

	if d.Target != "" {
		targetRaw, err := util.B64Decode(d.Target)
		if err != nil || len(targetRaw) != core.TargetLen {
			return nil, core.NewSigningError("target is not a 32-byte address", err)
		}
		buf.WriteByte(1)
		buf.Write(targetRaw)
	} else {
		buf.WriteByte(0)
	}

	if d.Anchor != nil {
		buf.WriteByte(1)
		buf.Write(d.Anchor)
	} else {
		buf.WriteByte(0)
	}

	tagBytes := tags.Encode(d.Tags)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(d.Tags)))
	buf.Write(u64[:])
	binary.LittleEndian.PutUint64(u64[:], uint64(len(tagBytes)))
	buf.Write(u64[:])
	buf.Write(tagBytes)

	buf.Write(d.Data)
	return buf.Bytes(), nil
}

// Decode parses a binary envelope back into its fields.
func Decode(raw []byte) (*DataItem, error) {
	r := bytes.NewReader(raw)

	var u16 [2]byte
	if _, err := readFull(r, u16[:]); err != nil {
		return nil, errors.Wrap(err, "truncated signature type")
	}
	sigType := core.SignatureType(binary.LittleEndian.Uint16(u16[:]))
	meta, ok := sigType.Meta()
	if !ok {
		return nil, core.NewProtocolViolationError(fmt.Sprintf("unknown signature type %d", sigType), nil)
	}

	item := &DataItem{SigType: sigType}

	item.Signature = make([]byte, meta.SigLen)
	if _, err := readFull(r, item.Signature); err != nil {
		return nil, errors.Wrap(err, "truncated signature")
	}
	item.Owner = make([]byte, meta.OwnerLen)
	if _, err := readFull(r, item.Owner); err != nil {
		return nil, errors.Wrap(err, "truncated owner")
	}

	present, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "truncated target flag")
	}
	if present == 1 {
		targetRaw := make([]byte, core.TargetLen)
		if _, err := readFull(r, targetRaw); err != nil {
			return nil, errors.Wrap(err, "truncated target")
		}
		item.Target = util.B64Encode(targetRaw)
	}

	present, err = r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "truncated anchor flag")
	}
	if present == 1 {
		item.Anchor = make([]byte, core.AnchorLen)
		if _, err := readFull(r, item.Anchor); err != nil {
			return nil, errors.Wrap(err, "truncated anchor")
		}
	}

	var u64 [8]byte
	if _, err := readFull(r, u64[:]); err != nil {
		return nil, errors.Wrap(err, "truncated tag count")
	}
	tagCount := binary.LittleEndian.Uint64(u64[:])
	if _, err := readFull(r, u64[:]); err != nil {
		return nil, errors.Wrap(err, "truncated tag byte length")
	}
	tagByteLen := binary.LittleEndian.Uint64(u64[:])
	if tagByteLen > uint64(r.Len()) {
		return nil, core.NewProtocolViolationError("tag block longer than envelope", nil)
	}

	tagBytes := make([]byte, tagByteLen)
	if _, err := readFull(r, tagBytes); err != nil {
		return nil, errors.Wrap(err, "truncated tag block")
	}
	item.Tags, err = tags.Decode(tagBytes)
	if err != nil {
		return nil, err
	}
	if uint64(len(item.Tags)) != tagCount {
		return nil, core.NewProtocolViolationError("tag count does not match tag block", nil)
	}

	item.Data = make([]byte, r.Len())
	readFull(r, item.Data)

	item.raw = raw
	return item, nil
}

// Verify recomputes the signature data and checks it against the
// embedded owner key.
func Verify(d *DataItem) error {
	return signer.Verify(d.SigType, d.Owner, d.SignatureData(d.SigType, d.Owner), d.Signature)
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := r.Read(buf)
	if err == nil && n < len(buf) {
		return n, errors.New("unexpected end of envelope")
	}
	return n, err
}
