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

// Package govcf provides a parser and in-memory codec for the Variant
// Call Format (VCF).
//
// This package treats a VCF stream as a header (building a [Dictionary] of
// every declared contig, INFO/FILTER/FORMAT key, and sample name) followed
// by a sequence of tab-delimited record lines, each decoded into a compact
// binary [Record].
//
// A header is built by feeding meta-lines and the sample line to a
// [HeaderParser], then finalizing the dictionary:
//
//	hp := govcf.NewHeaderParser(diag)
//	for each ## meta-line:
//	    hp.ParseLine(dict, line)
//	hp.ParseSampleLine(dict, chromLine)
//	dict.Sync()
//
// Records are then decoded and re-emitted using the finalized dictionary:
//
//	rp := govcf.NewRecordParser(dict, diag)
//	rec, err := rp.Parse(line)
//	...
//	rf := govcf.NewRecordFormatter(dict)
//	err = rf.Format(sink, rec)
//
// Decompression (gzip, BGZF) is not this package's concern; see the
// sibling package vcfio for [LineSource] implementations that handle it.
// [BufioLineSource] splits an uncompressed stream into lines.
package govcf
