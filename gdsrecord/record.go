// Package gdsrecord decodes the primitive binary building blocks of a GDSII
// stream file: the length-prefixed typed record header, big-endian integers,
// the 8-byte GDSII real representation, and the twelve-uint16 date sextet.
//
// Everything here is a pure decode: no state, no I/O beyond reading from a
// byte slice already in memory. The record-level state machine lives in
// gdsparse.
package gdsrecord

import (
	"encoding/binary"
	"fmt"

	"github.com/0mhu/gds-render-go/gdserrors"
)

// Type is the one-byte GDSII record type tag (BGNLIB, LIBNAME, XY, ...).
type Type byte

// Data is the one-byte GDSII data-type tag (no-data, bit-array, i16, i32,
// real4 (unsupported per spec Non-goals), real8, ascii-string).
type Data byte

// Closed enumeration of the record types this reader understands. GDSII
// defines more (text, node, property, ...); records outside this set are
// skipped by the parser, per spec §4.1.
const (
	RecHeader   Type = 0x00
	RecBgnLib   Type = 0x01
	RecLibName  Type = 0x02
	RecUnits    Type = 0x03
	RecEndLib   Type = 0x04
	RecBgnStr   Type = 0x05
	RecStrName  Type = 0x06
	RecEndStr   Type = 0x07
	RecBoundary Type = 0x08
	RecPath     Type = 0x09
	RecSRef     Type = 0x0A
	RecARef     Type = 0x0B
	RecText     Type = 0x0C
	RecLayer    Type = 0x0D
	RecDataType Type = 0x0E
	RecWidth    Type = 0x0F
	RecXY       Type = 0x10
	RecEndEl    Type = 0x11
	RecSName    Type = 0x12
	RecColRow   Type = 0x13
	RecNode     Type = 0x15
	RecStrans   Type = 0x1A
	RecMag      Type = 0x1B
	RecAngle    Type = 0x1C
	RecPathType Type = 0x21
	RecBox      Type = 0x2D
	RecProperty Type = 0x2B
)

var recordNames = map[Type]string{
	RecHeader:   "HEADER",
	RecBgnLib:   "BGNLIB",
	RecLibName:  "LIBNAME",
	RecUnits:    "UNITS",
	RecEndLib:   "ENDLIB",
	RecBgnStr:   "BGNSTR",
	RecStrName:  "STRNAME",
	RecEndStr:   "ENDSTR",
	RecBoundary: "BOUNDARY",
	RecPath:     "PATH",
	RecSRef:     "SREF",
	RecARef:     "AREF",
	RecText:     "TEXT",
	RecLayer:    "LAYER",
	RecDataType: "DATATYPE",
	RecWidth:    "WIDTH",
	RecXY:       "XY",
	RecEndEl:    "ENDEL",
	RecSName:    "SNAME",
	RecColRow:   "COLROW",
	RecNode:     "NODE",
	RecStrans:   "STRANS",
	RecMag:      "MAG",
	RecAngle:    "ANGLE",
	RecPathType: "PATHTYPE",
	RecBox:      "BOX",
	RecProperty: "PROPERTY",
}

// String returns the record's GDSII mnemonic, or a hex fallback for record
// types outside the closed enumeration understood by this reader.
func (t Type) String() string {
	if name, ok := recordNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
}

// Record is one decoded GDSII record header plus its raw payload. Payload
// length is byte_length-4, per spec §4.1.
type Record struct {
	Type    Type
	Data    Data
	Payload []byte
}

// headerLen is the fixed 4-byte record header: uint16 byte_length, uint8
// rec_type, uint8 data_type.
const headerLen = 4

// ReadAt reads one record starting at byte offset off in buf.
// Returns the record, the offset of the next record, and an error.
//
// A byte_length of 0 at the given offset is reported via ok=false with a
// nil error so the caller (gdsparse) can apply the "tolerated only at top
// level" rule from spec §4.1 — that's a parser-state decision, not this
// package's.
func ReadAt(buf []byte, off int) (rec Record, next int, ok bool, err error) {
	if off < 0 || off > len(buf)-2 {
		return Record{}, 0, false, gdserrors.Malformed("gdsrecord.ReadAt",
			fmt.Errorf("record header at %d: need %d bytes, have %d", off, headerLen, len(buf)-off))
	}
	byteLength := binary.BigEndian.Uint16(buf[off : off+2])
	if byteLength == 0 {
		return Record{}, off + 2, false, nil
	}
	if off > len(buf)-headerLen {
		return Record{}, 0, false, gdserrors.Malformed("gdsrecord.ReadAt",
			fmt.Errorf("record header at %d: need %d bytes, have %d", off, headerLen, len(buf)-off))
	}
	if byteLength < headerLen {
		return Record{}, 0, false, gdserrors.Malformed("gdsrecord.ReadAt",
			fmt.Errorf("record at %d: byte_length %d shorter than header", off, byteLength))
	}
	end := off + int(byteLength)
	if end > len(buf) {
		return Record{}, 0, false, gdserrors.Malformed("gdsrecord.ReadAt",
			fmt.Errorf("record at %d: byte_length %d overflows buffer of %d", off, byteLength, len(buf)))
	}
	rec = Record{
		Type:    Type(buf[off+2]),
		Data:    Data(buf[off+3]),
		Payload: buf[off+headerLen : end],
	}
	return rec, end, true, nil
}

// U16 decodes a big-endian uint16 at the start of b.
func U16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, gdserrors.Malformed("gdsrecord.U16", fmt.Errorf("need 2 bytes, got %d", len(b)))
	}
	return binary.BigEndian.Uint16(b[:2]), nil
}

// I16 decodes a big-endian signed int16 at the start of b.
func I16(b []byte) (int16, error) {
	v, err := U16(b)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

// I32 decodes a big-endian signed int32 at the start of b.
func I32(b []byte) (int32, error) {
	if len(b) < 4 {
		return 0, gdserrors.Malformed("gdsrecord.I32", fmt.Errorf("need 4 bytes, got %d", len(b)))
	}
	return int32(binary.BigEndian.Uint32(b[:4])), nil
}

// Real8 decodes the GDSII 8-byte real representation: 1 sign bit, 7-bit
// excess-64 base-16 exponent, 56-bit unsigned fraction. value = (-1)^s *
// fraction * 16^(exp-64), fraction bit 8 worth 2^-1 ... bit 63 worth 2^-56.
// An all-zero field decodes to 0.0 without touching the exponent, per spec.
func Real8(b []byte) (float64, error) {
	if len(b) < 8 {
		return 0, gdserrors.Malformed("gdsrecord.Real8", fmt.Errorf("need 8 bytes, got %d", len(b)))
	}
	allZero := true
	for _, c := range b[:8] {
		if c != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return 0.0, nil
	}

	sign := b[0]&0x80 != 0
	exponent := int(b[0]&0x7F) - 64

	var fraction float64
	for i := 8; i < 64; i++ {
		byteIdx := i / 8
		bitIdx := i % 8
		if b[byteIdx]&(0x80>>uint(bitIdx)) != 0 {
			fraction += exp2(-(i - 7))
		}
	}

	value := fraction * pow16(exponent)
	if sign {
		value = -value
	}
	return value, nil
}

// exp2 returns 2^n for integer n without importing math, mirroring the
// bit-weight accumulation gds-utils/gds-parser.c performs directly in fixed
// point.
func exp2(n int) float64 {
	v := 1.0
	if n >= 0 {
		for i := 0; i < n; i++ {
			v *= 2
		}
		return v
	}
	for i := 0; i < -n; i++ {
		v /= 2
	}
	return v
}

func pow16(n int) float64 {
	v := 1.0
	if n >= 0 {
		for i := 0; i < n; i++ {
			v *= 16
		}
		return v
	}
	for i := 0; i < -n; i++ {
		v /= 16
	}
	return v
}

// DateSextet is the (year, month, day, hour, minute, second) tuple GDSII
// packs as six big-endian uint16s. BGNLIB/BGNSTR carry two of these back to
// back: modification time then last-access time.
type DateSextet struct {
	Year, Month, Day, Hour, Minute, Second int
}

// DecodeDates decodes the 12-uint16 (24-byte) BGNLIB/BGNSTR payload into
// (modified, accessed). A payload shorter than 24 bytes returns an error;
// bytes past the first 24 are ignored. gdsparse logs a warning when a BGNLIB
// payload is shorter than 24 bytes; a short BGNSTR payload leaves the cell's
// dates at zero without a warning.
func DecodeDates(b []byte) (modified, accessed DateSextet, err error) {
	if len(b) < 24 {
		return DateSextet{}, DateSextet{}, fmt.Errorf("date sextet pair: need 24 bytes, got %d", len(b))
	}
	vals := make([]int, 12)
	for i := 0; i < 12; i++ {
		v, _ := U16(b[i*2 : i*2+2])
		vals[i] = int(v)
	}
	modified = DateSextet{vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]}
	accessed = DateSextet{vals[6], vals[7], vals[8], vals[9], vals[10], vals[11]}
	return modified, accessed, nil
}
