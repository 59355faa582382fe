package rw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(0xffff)
	w.WriteInt64(-3)
	w.WriteFloat32(float32(math.Pi))
	w.WriteBool(true)
	w.WriteLen(3)
	w.WriteUint16s([]uint16{1, 300, 65000})
	w.WriteUint8s([]uint8{7, 8})
	w.WriteString("navmesh")
	w.WriteFloat32(float32(math.Inf(-1)))

	r := NewReader(w.GetWriteBytes())
	assert.Equal(t, uint16(0xffff), r.ReadUint16())
	assert.Equal(t, int64(-3), r.ReadInt64())
	assert.Equal(t, float32(math.Pi), r.ReadFloat32())
	assert.True(t, r.ReadBool())
	n := r.ReadLen(1)
	require.Equal(t, 3, n)
	vals := make([]uint16, n)
	r.ReadUint16s(vals)
	assert.Equal(t, []uint16{1, 300, 65000}, vals)
	bytes := make([]uint8, 2)
	r.ReadUint8s(bytes)
	assert.Equal(t, []uint8{7, 8}, bytes)
	assert.Equal(t, "navmesh", r.ReadString())
	assert.True(t, math.IsInf(float64(r.ReadFloat32()), -1))
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestSmallValuesAreCompact(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(5)
	w.WriteInt64(-1)
	assert.Len(t, w.GetWriteBytes(), 2)
}

func TestShortBufferIsSticky(t *testing.T) {
	r := NewReader([]byte{0x80})
	assert.Zero(t, r.ReadUint64())
	require.Error(t, r.Err())
	assert.Zero(t, r.ReadFloat32())
	assert.Zero(t, r.ReadUint8())
	assert.Error(t, r.Err())
}

func TestReadLenBoundedByInput(t *testing.T) {
	w := NewWriter()
	w.WriteLen(1 << 40)
	r := NewReader(w.GetWriteBytes())
	assert.Zero(t, r.ReadLen(1))
	assert.ErrorIs(t, r.Err(), ErrShortBuffer)
}

func TestUint16Overflow(t *testing.T) {
	w := NewWriter()
	w.WriteUint64(70000)
	r := NewReader(w.GetWriteBytes())
	r.ReadUint16()
	assert.Error(t, r.Err())
}

func TestInvalidBool(t *testing.T) {
	r := NewReader([]byte{2})
	r.ReadBool()
	assert.Error(t, r.Err())
}
