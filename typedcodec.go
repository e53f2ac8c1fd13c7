// Copyright 2024 The govcf Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package govcf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// RtType is the low-nibble element-type tag of a typed-value descriptor
// byte. The numbering matches the packed BCF-style wire format this
// package's binary Record uses internally.
type RtType uint8

const (
	RtInt8  RtType = 1
	RtInt16 RtType = 2
	RtInt32 RtType = 3
	RtFloat RtType = 5
	RtChar  RtType = 7
	RtCStr  RtType = 8
)

// missingInt32 is the canonical in-memory "missing" sentinel for integer
// values, independent of the width eventually chosen on the wire.
const missingInt32 = math.MinInt32

// missingFloatBits is the IEEE-754 bit pattern used as the missing-value
// sentinel for FLOAT32: a signalling NaN with only the first mantissa bit
// set.
const missingFloatBits uint32 = 0x7F800001

func missingFloat32() float32 {
	return math.Float32frombits(missingFloatBits)
}

func isMissingFloatBits(bits uint32) bool {
	return bits == missingFloatBits
}

func elemSize(rt RtType) int {
	switch rt {
	case RtInt8, RtChar:
		return 1
	case RtInt16:
		return 2
	case RtInt32, RtFloat:
		return 4
	default:
		return 0 // CSTR: variable, terminated by NUL
	}
}

// EncSize writes a 1-byte type/count descriptor: the low 4 bits hold rt,
// the high 4 bits hold min(count, 15). If count >= 15 a nested typed
// integer carrying the true count immediately follows.
func EncSize(w io.Writer, count int, rt RtType) error {
	if elemSizeUnknown(rt) {
		return fmt.Errorf("%w: %d", errUnknownRtType, rt)
	}
	n := count
	if n > 15 {
		n = 15
	}
	if _, err := w.Write([]byte{byte(n)<<4 | byte(rt)}); err != nil {
		return err
	}
	if count >= 15 {
		return EncInt1(w, int32(count))
	}
	return nil
}

func elemSizeUnknown(rt RtType) bool {
	switch rt {
	case RtInt8, RtInt16, RtInt32, RtFloat, RtChar, RtCStr:
		return false
	default:
		return true
	}
}

// EncInt1 encodes a single signed integer value, choosing the narrowest
// width that represents it (or the width's sentinel, if the value is
// missingInt32).
func EncInt1(w io.Writer, v int32) error {
	return EncInt(w, []int32{v}, 0)
}

// EncInt encodes values as a typed integer vector, choosing the narrowest
// signed width that represents every non-missing element. Missing
// elements (missingInt32) are mapped to that width's own sentinel.
//
// descCount, if positive, overrides the element count recorded in the
// descriptor byte; this supports encoding a FORMAT column's full
// per-sample matrix in one call while recording only the per-sample
// stride in the descriptor (see RecordParser).
func EncInt(w io.Writer, values []int32, descCount int) error {
	n := len(values)
	if descCount <= 0 {
		descCount = n
	}
	if n == 0 {
		return EncSize(w, 0, RtInt8)
	}

	max, min := int32(math.MinInt32+1), int32(math.MaxInt32)
	for _, v := range values {
		if v == missingInt32 {
			continue
		}
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}

	switch {
	case max <= math.MaxInt8 && min > math.MinInt8:
		if err := EncSize(w, descCount, RtInt8); err != nil {
			return err
		}
		buf := make([]byte, n)
		for i, v := range values {
			if v == missingInt32 {
				buf[i] = byte(int8(math.MinInt8))
			} else {
				buf[i] = byte(int8(v))
			}
		}
		_, err := w.Write(buf)
		return err
	case max <= math.MaxInt16 && min > math.MinInt16:
		if err := EncSize(w, descCount, RtInt16); err != nil {
			return err
		}
		buf := make([]byte, 2*n)
		for i, v := range values {
			x := int16(v)
			if v == missingInt32 {
				x = math.MinInt16
			}
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(x))
		}
		_, err := w.Write(buf)
		return err
	default:
		if err := EncSize(w, descCount, RtInt32); err != nil {
			return err
		}
		buf := make([]byte, 4*n)
		for i, v := range values {
			x := v
			if v == missingInt32 {
				x = math.MinInt32
			}
			binary.LittleEndian.PutUint32(buf[4*i:], uint32(x))
		}
		_, err := w.Write(buf)
		return err
	}
}

// EncFloat encodes values as a typed FLOAT32 vector. descCount, if
// positive, overrides the element count recorded in the descriptor byte
// (see EncInt) — used when encoding a FORMAT column's full per-sample
// matrix while recording only the per-sample stride in the descriptor.
func EncFloat(w io.Writer, values []float32, descCount int) error {
	if descCount <= 0 {
		descCount = len(values)
	}
	if err := EncSize(w, descCount, RtFloat); err != nil {
		return err
	}
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// DecSize reads a type/count descriptor starting at src[pos] and returns
// the decoded count, element type, and the cursor following it.
func DecSize(src []byte, pos int) (count int, rt RtType, next int, err error) {
	if pos >= len(src) {
		return 0, 0, pos, io.ErrUnexpectedEOF
	}
	b := src[pos]
	rt = RtType(b & 0xf)
	n := int(b >> 4)
	pos++
	if n == 15 {
		v, p, err := decodeNestedInt(src, pos)
		if err != nil {
			return 0, 0, pos, err
		}
		return int(v), rt, p, nil
	}
	return n, rt, pos, nil
}

func decodeNestedInt(src []byte, pos int) (int32, int, error) {
	count, rt, pos, err := DecSize(src, pos)
	if err != nil {
		return 0, pos, err
	}
	if count == 0 {
		return 0, pos, nil
	}
	return DecInt1(src, pos, rt)
}

// DecInt1 reads a single raw element of the given type at src[pos],
// mapping the width's missing sentinel to missingInt32, and returns the
// cursor following it.
func DecInt1(src []byte, pos int, rt RtType) (value int32, next int, err error) {
	size := elemSize(rt)
	if size == 0 || pos+size > len(src) {
		return 0, pos, io.ErrUnexpectedEOF
	}
	switch rt {
	case RtInt8:
		x := int8(src[pos])
		if x == math.MinInt8 {
			return missingInt32, pos + 1, nil
		}
		return int32(x), pos + 1, nil
	case RtInt16:
		x := int16(binary.LittleEndian.Uint16(src[pos:]))
		if x == math.MinInt16 {
			return missingInt32, pos + 2, nil
		}
		return int32(x), pos + 2, nil
	case RtInt32:
		x := int32(binary.LittleEndian.Uint32(src[pos:]))
		return x, pos + 4, nil
	default:
		return 0, pos, fmt.Errorf("%w: %d", errUnknownRtType, rt)
	}
}

// DecTypedInt1 decodes a descriptor followed by exactly one integer
// element — the layout EncInt1 produces. It is used to decode solitary
// kid references (a FILTER element, an INFO or FORMAT key).
func DecTypedInt1(src []byte, pos int) (value int32, next int, err error) {
	_, rt, pos, err := DecSize(src, pos)
	if err != nil {
		return 0, pos, err
	}
	return DecInt1(src, pos, rt)
}

// FmtArray writes the canonical comma-separated text form of a typed
// array to w: it stops at the first missing element (or NUL, for
// strings), and writes "." if the array is empty or every element is
// missing.
func FmtArray(w io.Writer, count int, rt RtType, payload []byte) error {
	wrote := 0
	var err error
	switch rt {
	case RtInt8, RtInt16, RtInt32:
		size := elemSize(rt)
		for j := 0; j < count; j++ {
			v, _, derr := DecInt1(payload, j*size, rt)
			if derr != nil {
				return derr
			}
			if v == missingInt32 {
				break
			}
			if j > 0 {
				if _, err = io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err = fmt.Fprintf(w, "%d", v); err != nil {
				return err
			}
			wrote++
		}
	case RtFloat:
		for j := 0; j < count; j++ {
			bits := binary.LittleEndian.Uint32(payload[4*j:])
			if isMissingFloatBits(bits) {
				break
			}
			if j > 0 {
				if _, err = io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err = fmt.Fprintf(w, "%g", math.Float32frombits(bits)); err != nil {
				return err
			}
			wrote++
		}
	case RtChar:
		for j := 0; j < count && payload[j] != 0; j++ {
			if _, err = w.Write(payload[j : j+1]); err != nil {
				return err
			}
			wrote++
		}
	default:
		return fmt.Errorf("%w: %d", errUnknownRtType, rt)
	}
	if wrote == 0 {
		_, err = io.WriteString(w, ".")
		return err
	}
	return nil
}
