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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// RecordFormatter is the inverse of RecordParser: it renders a binary
// Record back to canonical VCF text using the same Dictionary it was
// parsed with. A single emit path (this one) guarantees round-trip
// equality for records whose encoding preserves all source information
// (spec.md §4.5).
type RecordFormatter struct {
	Dict *Dictionary
}

// NewRecordFormatter returns a RecordFormatter over dict.
func NewRecordFormatter(dict *Dictionary) *RecordFormatter {
	return &RecordFormatter{Dict: dict}
}

// Format writes the canonical tab-delimited text of rec to w, without a
// trailing newline.
func (f *RecordFormatter) Format(w io.Writer, rec *Record) error {
	var err error
	write := func(s string) {
		if err != nil {
			return
		}
		_, err = io.WriteString(w, s)
	}

	write(f.Dict.Key(f.Dict.RIDToKey(rec.RID)))
	write("\t")
	write(fmt.Sprintf("%d", rec.Pos+1))
	write("\t")

	id, _ := cStringAt(rec.str, 0)
	if id == "" {
		write(".")
	} else {
		write(id)
	}
	write("\t")

	ref, _ := cStringAt(rec.str, rec.oRef)
	if ref == "" {
		write(".")
	} else {
		write(ref)
	}
	write("\t")

	if rec.NAlt == 0 {
		write(".")
	} else {
		pos := rec.oAlt + 2
		for i := uint16(0); i < rec.NAlt; i++ {
			if i > 0 {
				write(",")
			}
			var a string
			a, pos = cStringAt(rec.str, pos)
			write(a)
		}
	}
	write("\t")

	if isMissingFloatBits(math.Float32bits(rec.Qual)) {
		write(".")
	} else {
		write(fmt.Sprintf("%g", rec.Qual))
	}
	write("\t")

	if err != nil {
		return err
	}
	if err := f.formatFilter(w, rec); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\t"); err != nil {
		return err
	}
	if err := f.formatInfo(w, rec); err != nil {
		return err
	}

	if f.Dict.NSample() > 0 {
		if _, err := io.WriteString(w, "\t"); err != nil {
			return err
		}
		if err := f.formatFormatAndSamples(w, rec); err != nil {
			return err
		}
	}

	return nil
}

// cStringAt reads a NUL-terminated string starting at offset and returns
// it along with the offset immediately following the NUL.
func cStringAt(str []byte, offset int) (string, int) {
	end := bytes.IndexByte(str[offset:], 0)
	if end < 0 {
		return string(str[offset:]), len(str)
	}
	return string(str[offset : offset+end]), offset + end + 1
}

func (f *RecordFormatter) formatFilter(w io.Writer, rec *Record) error {
	count, rt, pos, err := DecSize(rec.str, rec.oFlt)
	if err != nil {
		return err
	}
	if count == 0 {
		_, err := io.WriteString(w, ".")
		return err
	}
	for i := 0; i < count; i++ {
		var kid int32
		kid, pos, err = DecInt1(rec.str, pos, rt)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, ";"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, f.Dict.Key(uint32(kid))); err != nil {
			return err
		}
	}
	return nil
}

func (f *RecordFormatter) formatInfo(w io.Writer, rec *Record) error {
	nInfo := binary.LittleEndian.Uint16(rec.str[rec.oInfo:])
	if nInfo == 0 {
		_, err := io.WriteString(w, ".")
		return err
	}
	pos := rec.oInfo + 2
	for i := uint16(0); i < nInfo; i++ {
		var kid int32
		var err error
		kid, pos, err = DecTypedInt1(rec.str, pos)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, ";"); err != nil {
				return err
			}
		}
		name := f.Dict.Key(uint32(kid))
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}

		ki := f.Dict.KeyInfoByKID(uint32(kid))
		desc, _ := ki.Descriptor(KindInfo)
		if desc != nil && desc.Element == ElementFlag {
			continue
		}
		if _, err := io.WriteString(w, "="); err != nil {
			return err
		}
		if desc != nil && desc.Element == ElementStr {
			_, _, next, err := DecSize(rec.str, pos)
			if err != nil {
				return err
			}
			var s string
			s, pos = cStringAt(rec.str, next)
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
			continue
		}

		count, rt, next, err := DecSize(rec.str, pos)
		if err != nil {
			return err
		}
		if err := FmtArray(w, count, rt, rec.str[next:]); err != nil {
			return err
		}
		pos = next + elemSize(rt)*count
	}
	return nil
}

func (f *RecordFormatter) formatFormatAndSamples(w io.Writer, rec *Record) error {
	if rec.NFmt == 0 {
		_, err := io.WriteString(w, ".")
		return err
	}

	type col struct {
		kid  uint32
		rt   RtType
		n    int
		size int
		data []byte
	}
	nFmt := binary.LittleEndian.Uint16(rec.str[rec.oFmt:])
	cols := make([]col, nFmt)
	pos := rec.oFmt + 2
	for i := 0; i < int(nFmt); i++ {
		kid32, p, err := DecTypedInt1(rec.str, pos)
		if err != nil {
			return err
		}
		n, rt, p2, err := DecSize(rec.str, p)
		if err != nil {
			return err
		}
		size := elemSize(rt) * n
		cols[i] = col{kid: uint32(kid32), rt: rt, n: n, size: size, data: rec.str[p2 : p2+size*f.Dict.NSample()]}
		pos = p2 + size*f.Dict.NSample()

		if i > 0 {
			if _, err := io.WriteString(w, ":"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, f.Dict.Key(cols[i].kid)); err != nil {
			return err
		}
	}

	for j := 0; j < f.Dict.NSample(); j++ {
		if _, err := io.WriteString(w, "\t"); err != nil {
			return err
		}
		for i, c := range cols {
			if i > 0 {
				if _, err := io.WriteString(w, ":"); err != nil {
					return err
				}
			}
			if err := FmtArray(w, c.n, c.rt, c.data[j*c.size:(j+1)*c.size]); err != nil {
				return err
			}
		}
	}
	return nil
}
