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
	"strconv"
)

// Record is the binary decoding of one VCF record line. It owns its str
// buffer; consumers should treat values returned from its accessors as
// borrowed and not retained past the next call to RecordParser.Parse that
// reuses the parser's scratch state.
type Record struct {
	RID  int32
	Pos  int64 // 0-based
	Qual float32
	NAlt uint16
	NFmt uint16

	str []byte

	oRef, oAlt, oFlt, oInfo, oFmt int
}

// recBuf is a growable byte buffer that additionally supports patching
// already-written bytes in place, even across later growth — unlike a
// bytes.Buffer, whose Bytes() slices are invalidated by reallocation on
// the next Write. This mirrors the teacher's "resolve a reference, then
// act on the latest state" idiom (see container.go's Resolve) applied to
// a byte buffer instead of an object graph: callers record an offset, not
// a slice, and patch through the buffer's current backing array.
type recBuf struct {
	b []byte
}

func (r *recBuf) Write(p []byte) (int, error) {
	r.b = append(r.b, p...)
	return len(p), nil
}

func (r *recBuf) WriteByte(c byte) error {
	r.b = append(r.b, c)
	return nil
}

func (r *recBuf) len() int { return len(r.b) }

func (r *recBuf) patchUint16(offset int, v uint16) {
	binary.LittleEndian.PutUint16(r.b[offset:], v)
}

// fmtColumn is per-FORMAT-column scratch state used during RecordParser's
// two-pass sample decode.
type fmtColumn struct {
	kid     uint32
	element Element
	maxM    int // max element count across samples
	maxL    int // max raw byte length across samples
	stride  int // bytes (Str) or elements (Int/Real) per sample

	strBuf  []byte
	intBuf  []int32
	realBuf []float32
}

// RecordParser decodes VCF record lines into binary Records using a
// finalized Dictionary. One RecordParser should be reused across many
// calls to Parse: its field list, FILTER kid list and FORMAT column list
// are reset and reused, not reallocated, across calls. INFO value
// vectors, the per-sample token lists and the FORMAT column matrices are
// not reused; they are allocated afresh on every call.
type RecordParser struct {
	Dict *Dictionary
	Diag Diagnostics

	fieldScratch [][]byte
	filterKids   []int32
	columns      []fmtColumn
}

// NewRecordParser returns a RecordParser over dict, which must already be
// finalized with Dictionary.Sync.
func NewRecordParser(dict *Dictionary, diag Diagnostics) *RecordParser {
	if diag == nil {
		diag = Discard
	}
	return &RecordParser{Dict: dict, Diag: diag}
}

// Parse decodes one tab-delimited record line. If CHROM is not present in
// the dictionary, Parse returns (nil, ErrSkipped): the stream should
// advance to the next line as usual. Other malformed input returns a
// wrapped *ParseError; a Flag declared inside FORMAT returns a wrapped
// *FatalError.
func (p *RecordParser) Parse(line []byte) (*Record, error) {
	if len(line) == 0 {
		return nil, &ParseError{Err: errEmptyLine}
	}
	if !p.Dict.Synced() {
		return nil, &FatalError{Err: errDictionaryNotSynced}
	}

	fields := p.splitFields(line)
	nSample := p.Dict.NSample()
	minFields := 8
	if nSample > 0 {
		minFields = 9 + nSample
	}
	if len(fields) < minFields {
		return nil, &ParseError{Line: string(line), Err: errTruncatedFields}
	}

	rec := &Record{}
	buf := &recBuf{}

	ki, ok := p.Dict.Resolve(string(fields[0]))
	if !ok {
		return nil, ErrSkipped
	}
	rid, isContig := ki.ContigRID()
	if !isContig {
		return nil, ErrSkipped
	}
	rec.RID = rid

	pos, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return nil, &ParseError{Line: string(fields[1]), Err: err}
	}
	rec.Pos = pos - 1 // canonical 0-based storage; Formatter adds 1 back.

	// ID
	if !isDot(fields[2]) {
		buf.Write(fields[2])
	}
	buf.WriteByte(0)

	// REF
	rec.oRef = buf.len()
	buf.Write(fields[3])
	buf.WriteByte(0)

	// ALT
	rec.oAlt = buf.len()
	if isDot(fields[4]) {
		rec.NAlt = 0
		writeUint16(buf, 0)
	} else {
		alts := bytes.Split(fields[4], []byte{','})
		rec.NAlt = uint16(len(alts))
		writeUint16(buf, rec.NAlt)
		for _, a := range alts {
			buf.Write(a)
			buf.WriteByte(0)
		}
	}

	// QUAL
	if isDot(fields[5]) {
		rec.Qual = missingFloat32()
	} else {
		q, err := strconv.ParseFloat(string(fields[5]), 32)
		if err != nil {
			return nil, &ParseError{Line: string(fields[5]), Err: err}
		}
		rec.Qual = float32(q)
	}

	// FILTER
	rec.oFlt = buf.len()
	if err := p.parseFilter(buf, fields[6]); err != nil {
		return nil, err
	}

	// INFO
	rec.oInfo = buf.len()
	if err := p.parseInfo(buf, fields[7]); err != nil {
		return nil, err
	}

	// FORMAT + samples
	if nSample > 0 {
		rec.oFmt = buf.len()
		nFmt, err := p.parseFormat(buf, fields[8], fields[9:9+nSample])
		if err != nil {
			return nil, err
		}
		rec.NFmt = nFmt
	}

	rec.str = buf.b
	return rec, nil
}

func (p *RecordParser) splitFields(line []byte) [][]byte {
	p.fieldScratch = p.fieldScratch[:0]
	start := 0
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == '\t' {
			p.fieldScratch = append(p.fieldScratch, line[start:i])
			start = i + 1
		}
	}
	return p.fieldScratch
}

func isDot(field []byte) bool {
	return len(field) == 1 && field[0] == '.'
}

func writeUint16(w *recBuf, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (p *RecordParser) parseFilter(buf *recBuf, field []byte) error {
	if isDot(field) {
		return EncInt(buf, nil, 0)
	}
	field = bytes.TrimSuffix(field, []byte{';'})
	p.filterKids = p.filterKids[:0]
	for _, tok := range bytes.Split(field, []byte{';'}) {
		name := string(tok)
		ki, ok := p.Dict.Resolve(name)
		if !ok {
			p.Diag.Log(LevelWarning, "undefined FILTER %q", name)
			continue
		}
		p.filterKids = append(p.filterKids, int32(ki.KID))
	}
	return EncInt(buf, p.filterKids, 0)
}

func (p *RecordParser) parseInfo(buf *recBuf, field []byte) error {
	placeholder := buf.len()
	writeUint16(buf, 0)
	if isDot(field) {
		return nil
	}

	field = bytes.TrimSuffix(field, []byte{';'})
	nInfo := 0
	for _, entry := range bytes.Split(field, []byte{';'}) {
		if len(entry) == 0 {
			continue
		}
		var key, val []byte
		hasVal := false
		if i := bytes.IndexByte(entry, '='); i >= 0 {
			key, val, hasVal = entry[:i], entry[i+1:], true
			if len(val) == 0 {
				hasVal = false // "KEY=" is a missing singleton, per spec.md §4.4
			}
		} else {
			key = entry
		}

		ki, ok := p.Dict.Resolve(string(key))
		var desc *Descriptor
		if ok {
			desc, ok = ki.Descriptor(KindInfo)
		}
		if !ok {
			p.Diag.Log(LevelWarning, "undefined INFO %q", string(key))
			continue
		}

		switch {
		case desc.Element == ElementFlag:
			if err := EncInt1(buf, int32(ki.KID)); err != nil {
				return err
			}
			nInfo++
			if hasVal {
				p.Diag.Log(LevelWarning, "INFO %q is a Flag but has value %q, value skipped", string(key), string(val))
			}
		case !hasVal:
			// Declared non-Flag key given without a value ("KEY" or "KEY=")
			// is a missing singleton of the declared type, not a bare kid:
			// the str buffer must stay self-describing so the formatter
			// never has to guess whether a payload follows (see format.go's
			// INFO decode, which always expects one for non-Flag entries).
			p.Diag.Log(LevelWarning, "INFO %q requires a value, none found", string(key))
			if err := EncInt1(buf, int32(ki.KID)); err != nil {
				return err
			}
			switch desc.Element {
			case ElementStr:
				if err := EncSize(buf, 1, RtCStr); err != nil {
					return err
				}
				buf.WriteByte(0)
			case ElementReal:
				if err := EncFloat(buf, []float32{missingFloat32()}, 0); err != nil {
					return err
				}
			default:
				if err := EncInt(buf, []int32{missingInt32}, 0); err != nil {
					return err
				}
			}
			nInfo++
		case desc.Element == ElementStr:
			if err := EncInt1(buf, int32(ki.KID)); err != nil {
				return err
			}
			if err := EncSize(buf, 1, RtCStr); err != nil {
				return err
			}
			buf.Write(val)
			buf.WriteByte(0)
			nInfo++
		case desc.Element == ElementInt:
			if err := EncInt1(buf, int32(ki.KID)); err != nil {
				return err
			}
			vals, err := parseIntList(val)
			if err != nil {
				p.Diag.Log(LevelWarning, "INFO %q: %v", string(key), err)
				vals = []int32{missingInt32}
			}
			if err := EncInt(buf, vals, 0); err != nil {
				return err
			}
			nInfo++
		case desc.Element == ElementReal:
			if err := EncInt1(buf, int32(ki.KID)); err != nil {
				return err
			}
			vals, err := parseFloatList(val)
			if err != nil {
				p.Diag.Log(LevelWarning, "INFO %q: %v", string(key), err)
				vals = []float32{missingFloat32()}
			}
			if err := EncFloat(buf, vals, 0); err != nil {
				return err
			}
			nInfo++
		}
	}
	buf.patchUint16(placeholder, uint16(nInfo))
	return nil
}

func parseIntList(val []byte) ([]int32, error) {
	toks := bytes.Split(val, []byte{','})
	out := make([]int32, len(toks))
	for i, t := range toks {
		if isDot(t) {
			out[i] = missingInt32
			continue
		}
		n, err := strconv.ParseInt(string(t), 10, 32)
		if err != nil {
			return nil, &SchemaError{Value: string(t), Err: err}
		}
		out[i] = int32(n)
	}
	return out, nil
}

func parseFloatList(val []byte) ([]float32, error) {
	toks := bytes.Split(val, []byte{','})
	out := make([]float32, len(toks))
	for i, t := range toks {
		if isDot(t) {
			out[i] = missingFloat32()
			continue
		}
		f, err := strconv.ParseFloat(string(t), 32)
		if err != nil {
			return nil, &SchemaError{Value: string(t), Err: err}
		}
		out[i] = float32(f)
	}
	return out, nil
}

// parseFormat implements spec.md §4.4's two-pass FORMAT/sample decode. It
// returns the number of FORMAT columns actually written (0 if any column
// name is undeclared, per spec.md's "drop the whole column set" rule).
func (p *RecordParser) parseFormat(buf *recBuf, formatField []byte, samples [][]byte) (uint16, error) {
	names := bytes.Split(formatField, []byte{':'})
	p.columns = p.columns[:0]
	for _, name := range names {
		ki, ok := p.Dict.Resolve(string(name))
		var desc *Descriptor
		if ok {
			desc, ok = ki.Descriptor(KindFormat)
		}
		if !ok {
			p.Diag.Log(LevelWarning, "FORMAT %q is not defined in the header", string(name))
			return 0, nil
		}
		if desc.Element == ElementFlag {
			return 0, &FatalError{Err: errFlagInFormat}
		}
		p.columns = append(p.columns, fmtColumn{kid: ki.KID, element: desc.Element})
	}

	nCols := len(p.columns)
	nSample := len(samples)

	// Pass 1: compute max element count and max raw byte length per column.
	sampleToks := make([][][]byte, nSample)
	for i, s := range samples {
		toks := bytes.Split(s, []byte{':'})
		sampleToks[i] = toks
		for j := 0; j < nCols && j < len(toks); j++ {
			col := &p.columns[j]
			l := len(toks[j])
			if l > col.maxL {
				col.maxL = l
			}
			m := 1 + bytes.Count(toks[j], []byte{','})
			if m > col.maxM {
				col.maxM = m
			}
		}
	}

	// Allocate per-column matrices and set stride.
	for j := range p.columns {
		col := &p.columns[j]
		switch col.element {
		case ElementStr:
			col.stride = col.maxL
			col.strBuf = make([]byte, nSample*col.stride)
		case ElementInt:
			col.stride = col.maxM
			col.intBuf = make([]int32, nSample*col.stride)
			for i := range col.intBuf {
				col.intBuf[i] = missingInt32
			}
		case ElementReal:
			col.stride = col.maxM
			col.realBuf = make([]float32, nSample*col.stride)
			for i := range col.realBuf {
				col.realBuf[i] = missingFloat32()
			}
		}
	}

	// Pass 2: decode each sample into its column's matrix.
	for i := 0; i < nSample; i++ {
		toks := sampleToks[i]
		for j := 0; j < nCols; j++ {
			col := &p.columns[j]
			if j >= len(toks) {
				continue
			}
			tok := toks[j]
			switch col.element {
			case ElementStr:
				copy(col.strBuf[i*col.stride:], tok)
			case ElementInt:
				for k, t := range bytes.Split(tok, []byte{','}) {
					if k >= col.stride {
						break
					}
					if isDot(t) {
						continue // already missingInt32
					}
					n, err := strconv.ParseInt(string(t), 10, 32)
					if err == nil {
						col.intBuf[i*col.stride+k] = int32(n)
					}
				}
			case ElementReal:
				for k, t := range bytes.Split(tok, []byte{','}) {
					if k >= col.stride {
						break
					}
					if isDot(t) {
						continue // already the missing sentinel
					}
					f, err := strconv.ParseFloat(string(t), 32)
					if err == nil {
						col.realBuf[i*col.stride+k] = float32(f)
					}
				}
			}
		}
	}

	// Emit: n_fmt, then per column {kid, typed array}.
	writeUint16(buf, uint16(nCols))
	for j := range p.columns {
		col := &p.columns[j]
		if err := EncInt1(buf, int32(col.kid)); err != nil {
			return 0, err
		}
		switch col.element {
		case ElementStr:
			if err := EncSize(buf, col.stride, RtChar); err != nil {
				return 0, err
			}
			buf.Write(col.strBuf)
		case ElementInt:
			if err := EncInt(buf, col.intBuf, col.stride); err != nil {
				return 0, err
			}
		case ElementReal:
			if err := EncFloat(buf, col.realBuf, col.stride); err != nil {
				return 0, err
			}
		}
	}

	return uint16(nCols), nil
}
