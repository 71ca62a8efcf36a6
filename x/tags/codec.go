// Package tags builds and encodes the ordered protocol tag set carried
// by every envelope. The wire form is the avro binary array layout the
// network expects: a zigzag-varint block count, length-prefixed
// name/value pairs, and a zero terminator.
package tags

import (
	"bytes"

	"github.com/permagate/aogo/core"
)

var reserved = map[string]bool{
	core.TagDataProtocol: true,
	core.TagVariant:      true,
	core.TagType:         true,
	core.TagModule:       true,
	core.TagScheduler:    true,
	core.TagSDK:          true,
}

// Build validates a caller-supplied tag set, preserving input order.
// Reserved protocol names are rejected so a caller cannot forge the
// envelope's identity tags.
func Build(pairs []core.Tag) ([]core.Tag, error) {
	return build(pairs, false)
}

// BuildAllowReserved is the dispatcher-side variant that admits the
// protocol's own identity tags.
func BuildAllowReserved(pairs []core.Tag) ([]core.Tag, error) {
	return build(pairs, true)
}

func build(pairs []core.Tag, allowReserved bool) ([]core.Tag, error) {
	if len(pairs) > core.MaxTagCount {
		return nil, core.NewInvalidTagError("", "tag count exceeds limit")
	}

	out := make([]core.Tag, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Name == "" {
			return nil, core.NewInvalidTagError("", "tag name must not be empty")
		}
		if pair.Value == "" {
			return nil, core.NewInvalidTagError(pair.Name, "tag value must not be empty")
		}
		if len(pair.Name) > core.MaxTagNameLen {
			return nil, core.NewInvalidTagError(pair.Name, "tag name exceeds limit")
		}
		if len(pair.Value) > core.MaxTagValueLen {
			return nil, core.NewInvalidTagError(pair.Name, "tag value exceeds limit")
		}
		if !allowReserved && reserved[pair.Name] {
			return nil, core.NewInvalidTagError(pair.Name, "tag name is reserved for the protocol")
		}
		out = append(out, pair)
	}

	if len(Encode(out)) > core.MaxTagsEncodedLen {
		return nil, core.NewInvalidTagError("", "encoded tag set exceeds size ceiling")
	}

	return out, nil
}

// Encode serializes a tag set to its avro wire form.
func Encode(tags []core.Tag) []byte {
	if len(tags) == 0 {
		return []byte{}
	}

	var buf bytes.Buffer
	writeZigZag(&buf, int64(len(tags)))
	for _, tag := range tags {
		writeZigZag(&buf, int64(len(tag.Name)))
		buf.WriteString(tag.Name)
		writeZigZag(&buf, int64(len(tag.Value)))
		buf.WriteString(tag.Value)
	}
	writeZigZag(&buf, 0)
	return buf.Bytes()
}

// Decode parses the avro wire form back into an ordered tag set. A
// negative block count is followed by the block's byte size, per the
// avro array framing.
func Decode(data []byte) ([]core.Tag, error) {
	if len(data) == 0 {
		return []core.Tag{}, nil
	}

	r := bytes.NewReader(data)
	var out []core.Tag
	for {
		count, err := readZigZag(r)
		if err != nil {
			return nil, core.NewInvalidTagError("", "truncated tag block")
		}
		if count == 0 {
			break
		}
		if count < 0 {
			count = -count
			if _, err := readZigZag(r); err != nil {
				return nil, core.NewInvalidTagError("", "truncated tag block size")
			}
		}
		for i := int64(0); i < count; i++ {
			name, err := readString(r)
			if err != nil {
				return nil, core.NewInvalidTagError("", "truncated tag name")
			}
			value, err := readString(r)
			if err != nil {
				return nil, core.NewInvalidTagError(name, "truncated tag value")
			}
			out = append(out, core.Tag{Name: name, Value: value})
		}
	}

	if out == nil {
		out = []core.Tag{}
	}
	return out, nil
}

func writeZigZag(buf *bytes.Buffer, n int64) {
	u := uint64((n << 1) ^ (n >> 63))
	for u >= 0x80 {
		buf.WriteByte(byte(u) | 0x80)
		u >>= 7
	}
	buf.WriteByte(byte(u))
}

func readZigZag(r *bytes.Reader) (int64, error) {
	var u uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, core.NewInvalidTagError("", "varint overflow")
		}
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func readString(r *bytes.Reader) (string, error) {
	length, err := readZigZag(r)
	if err != nil {
		return "", err
	}
	if length < 0 || length > int64(r.Len()) {
		return "", core.NewInvalidTagError("", "invalid string length")
	}
	buf := make([]byte, length)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
