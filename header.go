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
	"strconv"
	"strings"
)

// HeaderParser parses VCF meta-lines (##INFO=..., ##FILTER=...,
// ##FORMAT=..., ##contig=...) and the #CHROM sample line, populating a
// Dictionary. One HeaderParser is used for the whole header of one
// stream; it carries no per-line state between calls.
type HeaderParser struct {
	Diag Diagnostics

	// StrictOrder, when true, turns a non-first ##fileformat line from a
	// silent pass into a LevelWarning diagnostic. It never aborts parsing
	// (see SPEC_FULL.md §5).
	StrictOrder bool

	sawFileformat bool
	lineNo        int
	sawSampleLine bool
}

// NewHeaderParser returns a HeaderParser that reports problems to diag.
func NewHeaderParser(diag Diagnostics) *HeaderParser {
	if diag == nil {
		diag = Discard
	}
	return &HeaderParser{Diag: diag}
}

// metaAttrs holds the raw (quote-stripped, backslash-unescaped) attribute
// values from one ##KIND=<...> meta-line, in the order they appeared.
type metaAttrs struct {
	kind  string
	order []string
	vals  map[string]string
}

func (a *metaAttrs) get(name string) (string, bool) {
	v, ok := a.vals[name]
	return v, ok
}

// parseMetaAttrs tokenizes one ##KIND=<attr=val,attr=val,...> line.
func parseMetaAttrs(line []byte) (*metaAttrs, error) {
	if !bytes.HasPrefix(line, []byte("##")) {
		return nil, &ParseError{Line: string(line), Err: errNotMetaLine}
	}
	rest := line[2:]
	eq := bytes.IndexByte(rest, '=')
	if eq < 0 {
		return nil, &ParseError{Line: string(line), Err: errMissingEquals}
	}
	kind := string(rest[:eq])
	rest = rest[eq+1:]

	lt := bytes.IndexByte(rest, '<')
	if lt < 0 {
		// Not a structured declaration (e.g. ##fileformat=VCFv4.2);
		// callers that care about this value should inspect the raw
		// line themselves. Return an empty attribute set so structured
		// KINDs still fail clearly below.
		return &metaAttrs{kind: kind, vals: map[string]string{}}, nil
	}
	rest = rest[lt+1:]

	gt := bytes.LastIndexByte(rest, '>')
	if gt < 0 {
		return nil, &ParseError{Line: string(line), Err: errMissingCloseAngle}
	}
	rest = rest[:gt]

	attrs := &metaAttrs{kind: kind, vals: map[string]string{}}
	for len(rest) > 0 {
		eq := bytes.IndexByte(rest, '=')
		if eq < 0 {
			break
		}
		name := string(bytes.TrimSpace(rest[:eq]))
		rest = rest[eq+1:]

		var val string
		if len(rest) > 0 && rest[0] == '"' {
			end := -1
			for i := 1; i < len(rest); i++ {
				if rest[i] == '\\' && i+1 < len(rest) {
					i++
					continue
				}
				if rest[i] == '"' {
					end = i
					break
				}
			}
			if end < 0 {
				return nil, &ParseError{Line: string(line), Err: errUnterminatedQuote}
			}
			val = unescapeQuoted(string(rest[1:end]))
			rest = rest[end+1:]
			if len(rest) > 0 && rest[0] == ',' {
				rest = rest[1:]
			}
		} else {
			comma := bytes.IndexByte(rest, ',')
			if comma < 0 {
				val = string(rest)
				rest = nil
			} else {
				val = string(rest[:comma])
				rest = rest[comma+1:]
			}
		}

		if _, seen := attrs.vals[name]; !seen {
			attrs.order = append(attrs.order, name)
		}
		attrs.vals[name] = val
	}
	return attrs, nil
}

func unescapeQuoted(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseLine parses one ##-prefixed header meta-line and interns its
// declaration into dict. Unknown KINDs and malformed lines are reported
// to hp.Diag as warnings and otherwise ignored (header parsing always
// continues), matching spec.md §4.3.
func (hp *HeaderParser) ParseLine(dict *Dictionary, line []byte) {
	hp.lineNo++

	if !bytes.HasPrefix(line, []byte("##")) {
		hp.Diag.Log(LevelWarning, "line %d: not a meta-line, ignored", hp.lineNo)
		return
	}

	attrs, err := parseMetaAttrs(line)
	if err != nil {
		hp.Diag.Log(LevelWarning, "line %d: %v", hp.lineNo, err)
		return
	}

	if attrs.kind == "fileformat" {
		if hp.lineNo != 1 && hp.StrictOrder {
			hp.Diag.Log(LevelWarning, "line %d: ##fileformat is not the first header line", hp.lineNo)
		}
		hp.sawFileformat = true
		return
	}

	var kind Kind
	switch attrs.kind {
	case "INFO":
		kind = KindInfo
	case "FILTER":
		kind = KindFilter
	case "FORMAT":
		kind = KindFormat
	case "contig":
		hp.parseContigLine(dict, line, attrs)
		return
	default:
		hp.Diag.Log(LevelWarning, "line %d: unrecognized meta-line kind %q, skipped", hp.lineNo, attrs.kind)
		return
	}

	id, ok := attrs.get("ID")
	if !ok || id == "" {
		hp.Diag.Log(LevelWarning, "line %d: %s declaration missing ID, skipped", hp.lineNo, kind)
		return
	}

	desc, err := descriptorFromAttrs(kind, attrs, hp.Diag, hp.lineNo)
	if err != nil {
		hp.Diag.Log(LevelWarning, "line %d: %v", hp.lineNo, err)
		return
	}

	dict.InternDecl(id, kind, desc)
}

func (hp *HeaderParser) parseContigLine(dict *Dictionary, line []byte, attrs *metaAttrs) {
	id, ok := attrs.get("ID")
	if !ok || id == "" {
		hp.Diag.Log(LevelWarning, "line %d: contig declaration missing ID, skipped", hp.lineNo)
		return
	}
	lengthStr, hasLength := attrs.get("length")
	var length int64
	if hasLength {
		n, err := strconv.ParseInt(lengthStr, 10, 64)
		if err != nil {
			hp.Diag.Log(LevelWarning, "line %d: contig %q has non-integer length %q, treating as absent", hp.lineNo, id, lengthStr)
			hasLength = false
		} else {
			length = n
		}
	}
	// A ##contig line without a length is tolerated (see
	// original_source/vcf.c's vcf_hdr_parse_line2, and SPEC_FULL.md §5)
	// rather than rejected outright.
	if !hasLength {
		hp.Diag.Log(LevelWarning, "line %d: contig %q declared without a length", hp.lineNo, id)
	}
	dict.InternContig(hp.Diag, id, length, hasLength)
}

func descriptorFromAttrs(kind Kind, attrs *metaAttrs, diag Diagnostics, lineNo int) (Descriptor, error) {
	var desc Descriptor

	if idxStr, ok := attrs.get("IDX"); ok {
		if n, err := strconv.Atoi(idxStr); err == nil {
			desc.DeclaredIndex = n
			desc.HasDeclaredIndex = true
		}
	}

	var element Element
	var hasType bool
	if kind == KindFilter {
		element = ElementFlag
		hasType = true
	} else if typeStr, ok := attrs.get("Type"); ok {
		hasType = true
		switch typeStr {
		case "Integer":
			element = ElementInt
		case "Float":
			element = ElementReal
		case "String":
			element = ElementStr
		default:
			return desc, &ParseError{Err: errUnknownType}
		}
	}

	var card Cardinality
	var hasNumber bool
	if kind == KindFilter {
		card = Cardinality{Tag: CardFixed, Fixed: 0}
		hasNumber = true
	} else if numStr, ok := attrs.get("Number"); ok {
		hasNumber = true
		switch {
		case numStr == "A":
			card = Cardinality{Tag: CardPerAlt}
		case numStr == "G":
			card = Cardinality{Tag: CardPerGenotype}
		default:
			if n, err := strconv.ParseUint(numStr, 10, 32); err == nil {
				card = Cardinality{Tag: CardFixed, Fixed: uint32(n)}
			} else {
				card = Cardinality{Tag: CardVariable}
			}
		}
	}

	if !hasType || !hasNumber {
		return desc, &ParseError{Err: errMissingTypeOrNumber}
	}

	// Number==0 forces Flag; Type==Flag forces Number=0 (spec.md §4.3).
	if card.Tag == CardFixed && card.Fixed == 0 {
		if element != ElementFlag {
			diag.Log(LevelDebug, "line %d: Number=0 forces Type=Flag (was %v)", lineNo, element)
		}
		element = ElementFlag
		card = Cardinality{Tag: CardFixed, Fixed: 0}
	} else if element == ElementFlag {
		if !(card.Tag == CardFixed && card.Fixed == 0) {
			diag.Log(LevelWarning, "line %d: Number ignored for a Flag declaration", lineNo)
		}
		card = Cardinality{Tag: CardFixed, Fixed: 0}
	}

	desc.Element = element
	desc.Cardinality = card
	return desc, nil
}

// ParseSampleLine parses the #CHROM...FORMAT<TAB>sample... line, interning
// every column from index 9 onward as a sample name. It is an error for
// this line to be missing entirely (spec.md §4.3); callers detect that by
// checking SawSampleLine themselves, or by using Ingest (see io.go),
// which returns a *FatalError when no #CHROM line precedes the records.
func (hp *HeaderParser) ParseSampleLine(dict *Dictionary, line []byte) error {
	if !bytes.HasPrefix(line, []byte("#CHROM")) {
		return &ParseError{Line: string(line), Err: errNotSampleLine}
	}
	cols := bytes.Split(line, []byte{'\t'})
	for i := 9; i < len(cols); i++ {
		dict.InternSample(hp.Diag, string(cols[i]))
	}
	hp.sawSampleLine = true
	return nil
}

// SawSampleLine reports whether ParseSampleLine has succeeded.
func (hp *HeaderParser) SawSampleLine() bool { return hp.sawSampleLine }
