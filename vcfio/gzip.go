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

// Package vcfio provides optional govcf.LineSource implementations over
// compressed streams. The core package treats decompression as an
// external collaborator; these constructors are the ready-made
// collaborators for the two compression forms VCF files commonly use.
package vcfio

import (
	"compress/gzip"
	"io"

	"github.com/dxsbiocc/govcf"
)

// gzipLineSource adapts a gzip.Reader to govcf.LineSource.
type gzipLineSource struct {
	gz   *gzip.Reader
	line *govcf.BufioLineSource
}

// NewGzipLineSource opens r as a gzip stream and returns a LineSource
// over its decompressed contents. The caller remains responsible for
// closing the underlying r; Close on the returned io.Closer additionally
// releases the gzip.Reader's internal state.
func NewGzipLineSource(r io.Reader) (govcf.LineSource, io.Closer, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	src := &gzipLineSource{gz: gz, line: govcf.NewBufioLineSource(gz)}
	return src, gz, nil
}

// NextLine implements govcf.LineSource.
func (s *gzipLineSource) NextLine() ([]byte, error) {
	return s.line.NextLine()
}
