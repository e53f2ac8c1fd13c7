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

package vcfio

import (
	"io"

	"github.com/biogo/hts/bgzf"

	"github.com/dxsbiocc/govcf"
)

// bgzfLineSource adapts a bgzf.Reader to govcf.LineSource. BGZF is a
// block-gzip format: a concatenation of independently-compressed gzip
// blocks, each carrying an "extra field" that records its compressed
// size, so that tools can seek to block boundaries without
// decompressing the whole file. govcf itself never seeks; it only reads
// the decompressed byte stream sequentially.
type bgzfLineSource struct {
	bg   *bgzf.Reader
	line *govcf.BufioLineSource
}

// NewBGZFLineSource opens r as a BGZF stream (the compression form
// produced by `bgzip`, commonly used for indexed VCF files) and returns
// a LineSource over its decompressed contents.
func NewBGZFLineSource(r io.Reader) (govcf.LineSource, io.Closer, error) {
	bg, err := bgzf.NewReader(r, 1)
	if err != nil {
		return nil, nil, err
	}
	src := &bgzfLineSource{bg: bg, line: govcf.NewBufioLineSource(bg)}
	return src, bg, nil
}

// NextLine implements govcf.LineSource.
func (s *bgzfLineSource) NextLine() ([]byte, error) {
	return s.line.NextLine()
}
