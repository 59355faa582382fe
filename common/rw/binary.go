package rw

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("rw: unexpected end of data")

// ReaderWriter is a compact binary codec. Unsigned integers are varints,
// signed integers are zig-zag varints, floats are little-endian IEEE-754
// and sequences carry a varint length prefix written by the caller.
//
// Reads never panic: the first failure is kept and returned by Err, and
// every later read returns the zero value.
type ReaderWriter struct {
	buf []byte
	err error
}

func NewWriter() *ReaderWriter {
	return &ReaderWriter{}
}

func NewReader(data []byte) *ReaderWriter {
	return &ReaderWriter{buf: data}
}

func (w *ReaderWriter) GetWriteBytes() []byte {
	return w.buf
}

// Remaining returns the number of unread bytes.
func (w *ReaderWriter) Remaining() int {
	return len(w.buf)
}

func (w *ReaderWriter) Err() error {
	return w.err
}

func (w *ReaderWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
	w.buf = nil
}

func (w *ReaderWriter) WriteUint64(v uint64) {
	w.buf = protowire.AppendVarint(w.buf, v)
}

func (w *ReaderWriter) WriteInt64(v int64) {
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeZigZag(v))
}

func (w *ReaderWriter) WriteUint16(v uint16) {
	w.WriteUint64(uint64(v))
}

func (w *ReaderWriter) WriteUint16s(value []uint16) {
	for _, v := range value {
		w.WriteUint16(v)
	}
}

func (w *ReaderWriter) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *ReaderWriter) WriteUint8s(value []uint8) {
	w.buf = append(w.buf, value...)
}

func (w *ReaderWriter) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

func (w *ReaderWriter) WriteFloat32(v float32) {
	w.buf = protowire.AppendFixed32(w.buf, math.Float32bits(v))
}

func (w *ReaderWriter) WriteFloat32s(value []float32) {
	for _, v := range value {
		w.WriteFloat32(v)
	}
}

// WriteLen writes a sequence length prefix.
func (w *ReaderWriter) WriteLen(n int) {
	w.WriteUint64(uint64(n))
}

func (w *ReaderWriter) WriteString(s string) {
	w.buf = protowire.AppendString(w.buf, s)
}

func (w *ReaderWriter) ReadUint64() uint64 {
	if w.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(w.buf)
	if n < 0 {
		w.fail(fmt.Errorf("rw: read varint: %w", protowire.ParseError(n)))
		return 0
	}
	w.buf = w.buf[n:]
	return v
}

func (w *ReaderWriter) ReadInt64() int64 {
	return protowire.DecodeZigZag(w.ReadUint64())
}

func (w *ReaderWriter) ReadUint16() uint16 {
	v := w.ReadUint64()
	if v > math.MaxUint16 {
		w.fail(fmt.Errorf("rw: value %d overflows uint16", v))
		return 0
	}
	return uint16(v)
}

func (w *ReaderWriter) ReadUint16s(value []uint16) {
	for i := range value {
		value[i] = w.ReadUint16()
	}
}

func (w *ReaderWriter) ReadUint8() uint8 {
	if w.err != nil {
		return 0
	}
	if len(w.buf) < 1 {
		w.fail(ErrShortBuffer)
		return 0
	}
	v := w.buf[0]
	w.buf = w.buf[1:]
	return v
}

func (w *ReaderWriter) ReadUint8s(value []uint8) {
	if w.err != nil {
		return
	}
	if len(w.buf) < len(value) {
		w.fail(ErrShortBuffer)
		return
	}
	copy(value, w.buf)
	w.buf = w.buf[len(value):]
}

func (w *ReaderWriter) ReadBool() bool {
	switch b := w.ReadUint8(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		w.fail(fmt.Errorf("rw: invalid bool byte %d", b))
		return false
	}
}

func (w *ReaderWriter) ReadFloat32() float32 {
	if w.err != nil {
		return 0
	}
	v, n := protowire.ConsumeFixed32(w.buf)
	if n < 0 {
		w.fail(fmt.Errorf("rw: read float: %w", protowire.ParseError(n)))
		return 0
	}
	w.buf = w.buf[n:]
	return math.Float32frombits(v)
}

func (w *ReaderWriter) ReadFloat32s(value []float32) {
	for i := range value {
		value[i] = w.ReadFloat32()
	}
}

// ReadLen reads a sequence length prefix. elemSize is the minimum encoded
// size of one element and bounds the length by the bytes left, so corrupt
// input cannot trigger a huge allocation.
func (w *ReaderWriter) ReadLen(elemSize int) int {
	v := w.ReadUint64()
	if w.err != nil {
		return 0
	}
	if elemSize < 1 {
		elemSize = 1
	}
	if v > uint64(len(w.buf)/elemSize) {
		w.fail(fmt.Errorf("rw: length %d exceeds remaining %d bytes: %w", v, len(w.buf), ErrShortBuffer))
		return 0
	}
	return int(v)
}

func (w *ReaderWriter) ReadString() string {
	if w.err != nil {
		return ""
	}
	v, n := protowire.ConsumeString(w.buf)
	if n < 0 {
		w.fail(fmt.Errorf("rw: read string: %w", protowire.ParseError(n)))
		return ""
	}
	w.buf = w.buf[n:]
	return v
}
