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

package govcf_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dxsbiocc/govcf"
)

func TestFormatOmitsEqualsForFlag(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##INFO=<ID=DB,Number=0,Type=Integer,Description="in dbSNP"># forces Flag`,
	}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	rec, err := parser.Parse([]byte("chr1\t100\t.\tA\tT\t.\t.\tDB"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	want := "chr1\t100\t.\tA\tT\t.\t.\tDB"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatAltMissing(t *testing.T) {
	dict := newTestDict(t, []string{`##contig=<ID=chr1,length=1000>`}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	rec, err := parser.Parse([]byte("chr1\t100\t.\tA\t.\t.\t.\t."))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	want := "chr1\t100\t.\tA\t.\t.\t.\t."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIdempotentDeclaration(t *testing.T) {
	once := govcf.NewDictionary()
	once.InternDecl("DP", govcf.KindInfo, govcf.Descriptor{
		Element:     govcf.ElementInt,
		Cardinality: govcf.Cardinality{Tag: govcf.CardFixed, Fixed: 1},
	})

	twice := govcf.NewDictionary()
	twice.InternDecl("DP", govcf.KindInfo, govcf.Descriptor{
		Element:     govcf.ElementInt,
		Cardinality: govcf.Cardinality{Tag: govcf.CardFixed, Fixed: 1},
	})
	twice.InternDecl("DP", govcf.KindInfo, govcf.Descriptor{
		Element:     govcf.ElementInt,
		Cardinality: govcf.Cardinality{Tag: govcf.CardFixed, Fixed: 1},
	})

	onceInfo, _ := once.Resolve("DP")
	twiceInfo, _ := twice.Resolve("DP")
	onceDesc, _ := onceInfo.Descriptor(govcf.KindInfo)
	twiceDesc, _ := twiceInfo.Descriptor(govcf.KindInfo)

	if diff := cmp.Diff(onceDesc, twiceDesc); diff != "" {
		t.Errorf("descriptor differs after redundant re-declaration (-once +twice):\n%s", diff)
	}
}

func TestUndeclaredFormatColumnDropsWholeSet(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="gt">`,
	}, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA001")

	var diag recordingDiagnostics
	parser := govcf.NewRecordParser(dict, &diag)
	rec, err := parser.Parse([]byte("chr1\t100\t.\tA\tT\t.\t.\t.\tGT:XX\t0/1:9"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(diag.messages) == 0 {
		t.Error("expected a warning for the undeclared FORMAT column XX")
	}
	got := formatRecord(t, dict, rec)
	want := "chr1\t100\t.\tA\tT\t.\t.\t.\t."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFlagDeclaredInFormatIsFatal(t *testing.T) {
	dict := govcf.NewDictionary()
	dict.InternContig(govcf.Discard, "chr1", 1000, true)
	dict.InternDecl("XX", govcf.KindFormat, govcf.Descriptor{
		Element:     govcf.ElementFlag,
		Cardinality: govcf.Cardinality{Tag: govcf.CardFixed, Fixed: 0},
	})
	hp := govcf.NewHeaderParser(govcf.Discard)
	if err := hp.ParseSampleLine(dict, []byte("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA001")); err != nil {
		t.Fatalf("ParseSampleLine: %v", err)
	}
	if err := dict.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	parser := govcf.NewRecordParser(dict, govcf.Discard)
	_, err := parser.Parse([]byte("chr1\t100\t.\tA\tT\t.\t.\t.\tXX\t1"))
	var fatal *govcf.FatalError
	if !asFatalError(err, &fatal) {
		t.Fatalf("err = %v, want *FatalError", err)
	}
}

func asFatalError(err error, target **govcf.FatalError) bool {
	fe, ok := err.(*govcf.FatalError)
	if ok {
		*target = fe
	}
	return ok
}
