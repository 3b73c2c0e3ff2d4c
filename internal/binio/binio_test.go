package binio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarUintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 249, 250, 251, 255, 256, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, 0xFFFFFFFFFFFFFFFF}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		w.WriteVarUint(v)
	}
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	for _, want := range values {
		got := r.ReadVarUint()
		assert.NoError(t, r.Err())
		assert.Equal(t, want, got)
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 249, -249, 250, -250, 1 << 40, -(1 << 40)}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, v := range values {
		w.WriteVarInt(v)
	}
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	for _, want := range values {
		got := r.ReadVarInt()
		assert.NoError(t, r.Err())
		assert.Equal(t, want, got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteString("")
	w.WriteString("hello, nes")
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	assert.Equal(t, "", r.ReadString())
	assert.Equal(t, "hello, nes", r.ReadString())
	assert.NoError(t, r.Err())
}

func TestVectorRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	WriteVector(w, []string{"a", "bb", "ccc"}, (*Writer).WriteString)
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	got := ReadVector(r, (*Reader).ReadString)
	assert.Equal(t, []string{"a", "bb", "ccc"}, got)
}

func TestReservedSentinelIsError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(251)
	r := NewReader(&buf)
	r.ReadVarUint()
	assert.Error(t, r.Err())
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteFixedUint64(0x8781A90AFDE1F317)
	w.WriteFixedUint32(0x00000101)
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	assert.Equal(t, uint64(0x8781A90AFDE1F317), r.ReadFixedUint64())
	assert.Equal(t, uint32(0x00000101), r.ReadFixedUint32())
	assert.NoError(t, r.Err())
}

func TestSectionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Section(7, "PRJ", func(w *Writer) {
		w.WriteString("payload")
	})
	require.NoError(t, w.Flush())

	r := NewReader(&buf)
	id, abbrev := r.ReadSectionTag()
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "PRJ", abbrev)
	assert.Equal(t, "payload", r.ReadString())
}
