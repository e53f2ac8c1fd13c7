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

// Command vcfcat reads a VCF file, decodes every record through govcf,
// and re-emits it as canonical VCF text. It exists to exercise the
// whole header-parse / record-parse / record-format pipeline end to
// end, and as a round-trip smoke test a user can point at a real file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dxsbiocc/govcf"
	"github.com/dxsbiocc/govcf/vcfio"
)

func main() {
	gzipped := flag.Bool("gzip", false, "input is gzip-compressed")
	bgzipped := flag.Bool("bgzf", false, "input is BGZF-compressed")
	verbose := flag.Bool("v", false, "log warnings to stderr")
	strictOrder := flag.Bool("strict-order", false, "warn when ##fileformat is not the first header line")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.vcf\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *gzipped, *bgzipped, *verbose, *strictOrder); err != nil {
		fmt.Fprintln(os.Stderr, "vcfcat:", err)
		os.Exit(1)
	}
}

func run(path string, gzipped, bgzipped, verbose, strictOrder bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var src govcf.LineSource
	switch {
	case gzipped:
		gzSrc, closer, err := vcfio.NewGzipLineSource(f)
		if err != nil {
			return err
		}
		defer closer.Close()
		src = gzSrc
	case bgzipped:
		bgSrc, closer, err := vcfio.NewBGZFLineSource(f)
		if err != nil {
			return err
		}
		defer closer.Close()
		src = bgSrc
	default:
		src = govcf.NewBufioLineSource(f)
	}

	diag := govcf.Discard
	if verbose {
		diag = &govcf.WriterDiagnostics{
			W:     os.Stderr,
			Min:   govcf.LevelWarning,
			Color: term.IsTerminal(int(os.Stderr.Fd())),
		}
	}

	dict := govcf.NewDictionary()
	hp := govcf.NewHeaderParser(diag)
	hp.StrictOrder = strictOrder

	firstLine, err := govcf.Ingest(src, hp, dict)
	if err != nil {
		return err
	}
	if err := dict.Sync(); err != nil {
		return err
	}

	out := bufio.NewWriterSize(os.Stdout, 64*1024)
	defer out.Flush()
	sink := govcf.NewWriterByteSink(out)
	formatter := govcf.NewRecordFormatter(dict)
	parser := govcf.NewRecordParser(dict, diag)

	emit := func(line []byte) error {
		rec, err := parser.Parse(line)
		if err == govcf.ErrSkipped {
			diag.Log(govcf.LevelWarning, "skipped record with unknown CHROM")
			return nil
		}
		if err != nil {
			return err
		}
		if err := formatter.Format(sink, rec); err != nil {
			return err
		}
		_, err = io.WriteString(sink, "\n")
		return err
	}

	if firstLine != nil {
		if err := emit(firstLine); err != nil {
			return err
		}
	}
	for {
		line, err := src.NextLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}
		if err := emit(line); err != nil {
			return err
		}
	}
}
