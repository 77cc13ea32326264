package binary

import (
	"bytes"
	"encoding/binary"
)

// Wasm binary format constants used by the image encoder.
const (
	Magic   uint32 = 0x6D736100 // "\0asm"
	Version uint32 = 0x01

	SectionMemory byte = 5
	SectionGlobal byte = 6
	SectionExport byte = 7
	SectionData   byte = 11

	ExportGlobal byte = 0x03
	ExportMemory byte = 0x02

	ValI32     byte = 0x7F
	OpI32Const byte = 0x41
	OpEnd      byte = 0x0B
)

// Writer provides buffered writing utilities for wasm binary encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// WriteS32 writes a signed LEB128 encoded int32.
func (w *Writer) WriteS32(v int32) {
	x := int64(v)
	more := true
	for more {
		b := byte(x & 0x7f)
		x >>= 7
		if (x == 0 && (b&0x40) == 0) || (x == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

// WriteName writes a length-prefixed UTF-8 name.
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteI32Const writes the constant expression (i32.const v) end.
func (w *Writer) WriteI32Const(v uint32) {
	w.Byte(OpI32Const)
	w.WriteS32(int32(v))
	w.Byte(OpEnd)
}

// Section writes a section with its id and size prefix.
func (w *Writer) Section(id byte, body *Writer) {
	w.Byte(id)
	w.WriteU32(uint32(body.Len()))
	w.WriteBytes(body.Bytes())
}
