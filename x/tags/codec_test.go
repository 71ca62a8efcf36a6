package tags

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/permagate/aogo/core"
)

func TestBuildPreservesOrder(t *testing.T) {
	in := []core.Tag{
		{Name: "App-Name", Value: "Test"},
		{Name: "Action", Value: "Eval"},
		{Name: "App-Version", Value: "0.1.0"},
	}

	out, err := Build(in)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBuildRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		in   []core.Tag
	}{
		{"empty name", []core.Tag{{Name: "", Value: "x"}}},
		{"empty value", []core.Tag{{Name: "x", Value: ""}}},
		{"oversize name", []core.Tag{{Name: strings.Repeat("n", core.MaxTagNameLen+1), Value: "x"}}},
		{"oversize value", []core.Tag{{Name: "x", Value: strings.Repeat("v", core.MaxTagValueLen+1)}}},
		{"reserved name", []core.Tag{{Name: "Data-Protocol", Value: "ao"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.in)
			var tagErr core.InvalidTagError
			assert.True(t, errors.As(err, &tagErr), "expected InvalidTagError, got %v", err)
		})
	}
}

func TestBuildRejectsOversizeTotal(t *testing.T) {
	var in []core.Tag
	for i := 0; i < 2; i++ {
		in = append(in, core.Tag{Name: "big", Value: strings.Repeat("v", core.MaxTagValueLen)})
	}

	_, err := Build(in)
	var tagErr core.InvalidTagError
	assert.True(t, errors.As(err, &tagErr))
	assert.Contains(t, err.Error(), "ceiling")
}

func TestBuildRejectsTooManyTags(t *testing.T) {
	in := make([]core.Tag, core.MaxTagCount+1)
	for i := range in {
		in[i] = core.Tag{Name: "n", Value: "v"}
	}

	_, err := Build(in)
	assert.Error(t, err)
}

func TestBuildAllowReserved(t *testing.T) {
	in := []core.Tag{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Type", Value: "Message"},
	}

	out, err := BuildAllowReserved(in)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []core.Tag{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Variant", Value: "ao.TN.1"},
		{Name: "Type", Value: "Message"},
		{Name: "Action", Value: "Ping"},
	}

	out, err := Decode(Encode(in))
	assert.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("tag round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeEmpty(t *testing.T) {
	assert.Empty(t, Encode(nil))

	out, err := Decode(nil)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeTruncated(t *testing.T) {
	encoded := Encode([]core.Tag{{Name: "Action", Value: "Ping"}})

	_, err := Decode(encoded[:len(encoded)-3])
	var tagErr core.InvalidTagError
	assert.True(t, errors.As(err, &tagErr))
}
