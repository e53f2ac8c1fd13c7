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
	"bytes"
	"testing"

	"github.com/dxsbiocc/govcf"
)

func newTestDict(t *testing.T, headerLines []string, sampleLine string) *govcf.Dictionary {
	t.Helper()
	dict := govcf.NewDictionary()
	hp := govcf.NewHeaderParser(govcf.Discard)
	for _, l := range headerLines {
		hp.ParseLine(dict, []byte(l))
	}
	if sampleLine != "" {
		if err := hp.ParseSampleLine(dict, []byte(sampleLine)); err != nil {
			t.Fatalf("ParseSampleLine: %v", err)
		}
	}
	if err := dict.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return dict
}

func formatRecord(t *testing.T, dict *govcf.Dictionary, rec *govcf.Record) string {
	t.Helper()
	var buf bytes.Buffer
	if err := govcf.NewRecordFormatter(dict).Format(&buf, rec); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return buf.String()
}

func TestRoundTripInfoInteger(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##INFO=<ID=DP,Number=1,Type=Integer,Description="d">`,
	}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	line := "chr1\t100\t.\tA\tT\t.\t.\tDP=34"
	rec, err := parser.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	want := "chr1\t100\t.\tA\tT\t.\t.\tDP=34"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRoundTripFilterAndUnknownFilter(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##FILTER=<ID=q10,Description="q">`,
		`##FILTER=<ID=s50,Description="s">`,
	}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	rec, err := parser.Parse([]byte("chr1\t100\t.\tA\tT\t.\tq10;s50\t."))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	want := "chr1\t100\t.\tA\tT\t.\tq10;s50\t."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	var diag recordingDiagnostics
	parser = govcf.NewRecordParser(dict, &diag)
	rec, err = parser.Parse([]byte("chr1\t100\t.\tA\tT\t.\tunknown\t."))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(diag.messages) == 0 {
		t.Error("expected a warning for the unknown FILTER, got none")
	}
	got = formatRecord(t, dict, rec)
	want = "chr1\t100\t.\tA\tT\t.\t.\t."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRoundTripInfoFloatPerAlt(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##INFO=<ID=AF,Number=A,Type=Float,Description="af">`,
	}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	line := "chr1\t100\t.\tA\tT,G\t.\t.\tAF=0.5,0.25"
	rec, err := parser.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	if got != line {
		t.Errorf("got %q, want %q", got, line)
	}
}

func TestRoundTripInfoString(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##INFO=<ID=SVTYPE,Number=1,Type=String,Description="t">`,
	}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	line := "chr1\t100\t.\tA\tT\t.\t.\tSVTYPE=DEL"
	rec, err := parser.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	if got != line {
		t.Errorf("got %q, want %q", got, line)
	}
}

func TestInfoMissingValueStaysInSync(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##INFO=<ID=DP,Number=1,Type=Integer,Description="d">`,
		`##INFO=<ID=AF,Number=1,Type=Float,Description="f">`,
		`##INFO=<ID=SVTYPE,Number=1,Type=String,Description="t">`,
	}, "")

	for _, tc := range []struct {
		name string
		info string
		want string
	}{
		{"bareKeyThenInt", "DP;AF=0.5", "DP=.;AF=0.5"},
		{"emptyValThenStr", "AF=;SVTYPE=DEL", "AF=.;SVTYPE=DEL"},
		{"bareStrKey", "SVTYPE", "SVTYPE="},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var diag recordingDiagnostics
			parser := govcf.NewRecordParser(dict, &diag)
			line := "chr1\t100\t.\tA\tT\t.\t." + "\t" + tc.info
			rec, err := parser.Parse([]byte(line))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(diag.messages) == 0 {
				t.Error("expected a warning for the missing value, got none")
			}
			got := formatRecord(t, dict, rec)
			want := "chr1\t100\t.\tA\tT\t.\t.\t" + tc.want
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestRoundTripQual(t *testing.T) {
	dict := newTestDict(t, []string{`##contig=<ID=chr1,length=1000>`}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	for _, qual := range []string{".", "29.5"} {
		line := "chr1\t100\t.\tA\tT\t" + qual + "\t.\t."
		rec, err := parser.Parse([]byte(line))
		if err != nil {
			t.Fatalf("Parse(%q): %v", qual, err)
		}
		got := formatRecord(t, dict, rec)
		if got != line {
			t.Errorf("got %q, want %q", got, line)
		}
	}
}

func TestUnknownChromSkipsThenResumes(t *testing.T) {
	dict := newTestDict(t, []string{`##contig=<ID=chr1,length=1000>`}, "")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	_, err := parser.Parse([]byte("chrX\t100\t.\tA\tT\t.\t.\t."))
	if err != govcf.ErrSkipped {
		t.Fatalf("err = %v, want ErrSkipped", err)
	}

	rec, err := parser.Parse([]byte("chr1\t200\t.\tA\tT\t.\t.\t."))
	if err != nil {
		t.Fatalf("Parse after skip: %v", err)
	}
	if rec.Pos != 199 {
		t.Errorf("Pos = %d, want 199 (0-based)", rec.Pos)
	}
}

func TestRoundTripFormatGTDP(t *testing.T) {
	dict := newTestDict(t, []string{
		`##contig=<ID=chr1,length=1000>`,
		`##FORMAT=<ID=GT,Number=1,Type=String,Description="gt">`,
		`##FORMAT=<ID=DP,Number=1,Type=Integer,Description="dp">`,
	}, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA001\tNA002")
	parser := govcf.NewRecordParser(dict, govcf.Discard)

	line := "chr1\t100\t.\tA\tT\t.\t.\t.\tGT:DP\t0/1:12\t./.:."
	rec, err := parser.Parse([]byte(line))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := formatRecord(t, dict, rec)
	if got != line {
		t.Errorf("got %q, want %q", got, line)
	}
}

type recordingDiagnostics struct {
	messages []string
}

func (d *recordingDiagnostics) Log(level govcf.Level, format string, args ...any) {
	d.messages = append(d.messages, format)
}
