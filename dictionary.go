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
	"sort"

	farm "github.com/dgryski/go-farm"
	"golang.org/x/exp/maps"
)

// Kind is one of the four declaration kinds a dictionary entry can carry.
type Kind int

const (
	KindContig Kind = iota
	KindInfo
	KindFilter
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindContig:
		return "contig"
	case KindInfo:
		return "INFO"
	case KindFilter:
		return "FILTER"
	case KindFormat:
		return "FORMAT"
	default:
		return "unknown"
	}
}

// Element is the element type of a declared value.
type Element int

const (
	ElementFlag Element = iota
	ElementInt
	ElementReal
	ElementStr
)

// CardinalityTag distinguishes the ways a declared value's length can
// vary from record to record.
type CardinalityTag int

const (
	// CardFixed means the value always has a fixed number of elements,
	// given by Cardinality.Fixed.
	CardFixed CardinalityTag = iota
	// CardPerAlt means the element count equals the number of ALT
	// alleles (VCF header Number=A).
	CardPerAlt
	// CardPerGenotype means the element count equals the number of
	// possible genotypes (VCF header Number=G).
	CardPerGenotype
	// CardVariable means the element count is unconstrained (VCF header
	// Number=.).
	CardVariable
)

// Cardinality describes how many elements a declared value carries.
type Cardinality struct {
	Tag   CardinalityTag
	Fixed uint32 // meaningful only when Tag == CardFixed
}

// Descriptor is the per-declaration-kind metadata spec.md's data model
// calls "info[k]": the element type and cardinality of one INFO, FILTER,
// or FORMAT declaration.
type Descriptor struct {
	Element     Element
	Cardinality Cardinality

	// DeclaredIndex/HasDeclaredIndex hold the optional BCF-style IDX
	// attribute, if present on the meta-line (see SPEC_FULL.md §5). It is
	// never consulted for kid assignment.
	DeclaredIndex    int
	HasDeclaredIndex bool
}

// KeyInfo is one dictionary entry: a name plus everything known about it
// across all four declaration kinds.
type KeyInfo struct {
	Name string
	KID  uint32

	hasContig bool
	contigRID int32
	hasLength bool
	contigLen int64

	hasSample bool
	sampleSID int32

	descriptors [4]*Descriptor
}

// ContigRID reports the dense contig index for this name, if it is a
// declared contig.
func (k *KeyInfo) ContigRID() (int32, bool) { return k.contigRID, k.hasContig }

// ContigLen reports the declared contig length, if one was given.
func (k *KeyInfo) ContigLen() (int64, bool) { return k.contigLen, k.hasLength }

// SampleSID reports the dense sample index for this name, if it is a
// declared sample.
func (k *KeyInfo) SampleSID() (int32, bool) { return k.sampleSID, k.hasSample }

// Descriptor returns the declaration, if any, this key carries for kind.
func (k *KeyInfo) Descriptor(kind Kind) (*Descriptor, bool) {
	d := k.descriptors[kind]
	return d, d != nil
}

// Dictionary is the symbol table built from a VCF header: every declared
// name (contig, INFO/FILTER/FORMAT key, sample) mapped to a dense integer
// kid. It is built once, then immutable for the lifetime of the stream
// (spec.md §3); records hold only kid references, never name strings.
//
// Name lookup goes through a Go map keyed by github.com/dgryski/go-farm's
// FarmHash of the name bytes, each bucket holding the entries whose names
// share that hash, mirroring htslib's khash-based vdict_t (see
// original_source/vcf.c) rather than keying Go's map by the name itself.
type Dictionary struct {
	buckets map[uint64][]*KeyInfo
	keys    []*KeyInfo // kid-indexed

	nContig int
	nSample int

	r2k []uint32
	s2k []uint32

	synced bool
}

// NewDictionary returns an empty Dictionary ready for header parsing.
func NewDictionary() *Dictionary {
	return &Dictionary{buckets: make(map[uint64][]*KeyInfo)}
}

func (d *Dictionary) hash(name string) uint64 {
	return farm.Hash64([]byte(name))
}

func (d *Dictionary) lookup(name string) *KeyInfo {
	for _, k := range d.buckets[d.hash(name)] {
		if k.Name == name {
			return k
		}
	}
	return nil
}

func (d *Dictionary) getOrInsert(name string) (k *KeyInfo, inserted bool) {
	if k := d.lookup(name); k != nil {
		return k, false
	}
	k = &KeyInfo{
		Name:      name,
		KID:       uint32(len(d.keys)),
		contigRID: -1,
		sampleSID: -1,
	}
	h := d.hash(name)
	d.buckets[h] = append(d.buckets[h], k)
	d.keys = append(d.keys, k)
	return k, true
}

// InternDecl looks up or inserts name, assigning a new kid on insert, and
// sets its descriptor for kind. If the entry already carries a
// descriptor for kind, the new one silently replaces it (last declaration
// wins), per spec.md §4.2.
func (d *Dictionary) InternDecl(name string, kind Kind, desc Descriptor) *KeyInfo {
	k, _ := d.getOrInsert(name)
	k.descriptors[kind] = &desc
	return k
}

// InternContig looks up or inserts name as a contig, assigning a new
// dense contig_rid on first sight. length is only used when hasLength is
// true. A second ##contig declaration for the same name is kept as a
// duplicate-contig warning (reported via diag) and the original contig
// fields are left untouched.
func (d *Dictionary) InternContig(diag Diagnostics, name string, length int64, hasLength bool) *KeyInfo {
	k, inserted := d.getOrInsert(name)
	if !inserted && k.hasContig {
		diag.Log(LevelWarning, "duplicate contig name %q, keeping first declaration", name)
		return k
	}
	k.hasContig = true
	k.contigRID = int32(d.nContig)
	d.nContig++
	if hasLength {
		k.hasLength = true
		k.contigLen = length
	}
	return k
}

// InternSample looks up or inserts name as a sample, assigning a new
// dense sample_sid on first sight. A duplicate sample name is reported
// via diag and the second occurrence is dropped (it is not assigned a
// new sid).
func (d *Dictionary) InternSample(diag Diagnostics, name string) *KeyInfo {
	k, inserted := d.getOrInsert(name)
	if !inserted && k.hasSample {
		diag.Log(LevelWarning, "duplicate sample name %q, dropped", name)
		return k
	}
	k.hasSample = true
	k.sampleSID = int32(d.nSample)
	d.nSample++
	return k
}

// Resolve looks up name without inserting it.
func (d *Dictionary) Resolve(name string) (*KeyInfo, bool) {
	k := d.lookup(name)
	return k, k != nil
}

// Key returns the name for kid. It panics if kid is out of range, which
// can only happen on a caller bug (a kid from a different dictionary).
func (d *Dictionary) Key(kid uint32) string {
	return d.keys[kid].Name
}

// KeyInfoByKID returns the full entry for kid.
func (d *Dictionary) KeyInfoByKID(kid uint32) *KeyInfo {
	return d.keys[kid]
}

// NContig is the number of declared contigs.
func (d *Dictionary) NContig() int { return d.nContig }

// NSample is the number of declared samples.
func (d *Dictionary) NSample() int { return d.nSample }

// NKey is the number of distinct declared names.
func (d *Dictionary) NKey() int { return len(d.keys) }

// RIDToKey returns the kid for a dense contig_rid. Valid only after Sync.
func (d *Dictionary) RIDToKey(rid int32) uint32 { return d.r2k[rid] }

// SIDToKey returns the kid for a dense sample_sid. Valid only after Sync.
func (d *Dictionary) SIDToKey(sid int32) uint32 { return d.s2k[sid] }

// Sync finalizes the dictionary: it builds the dense r2k (contig_rid ->
// kid) and s2k (sample_sid -> kid) lookup tables. It must be called
// exactly once after header parsing and before any record is parsed.
func (d *Dictionary) Sync() error {
	d.r2k = make([]uint32, d.nContig)
	d.s2k = make([]uint32, d.nSample)
	for _, k := range d.keys {
		if k.hasContig {
			if int(k.contigRID) >= d.nContig {
				return &FatalError{Err: errDictionaryCorrupt}
			}
			d.r2k[k.contigRID] = k.KID
		}
		if k.hasSample {
			if int(k.sampleSID) >= d.nSample {
				return &FatalError{Err: errDictionaryCorrupt}
			}
			d.s2k[k.sampleSID] = k.KID
		}
	}
	d.synced = true
	return nil
}

// Synced reports whether Sync has been called.
func (d *Dictionary) Synced() bool { return d.synced }

// DebugNames returns every declared name in sorted order, for debug
// logging; it is not used on any record-parsing hot path.
func (d *Dictionary) DebugNames() []string {
	names := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		names = append(names, k.Name)
	}
	sort.Strings(names)
	return names
}

// DebugBucketSizes returns the FarmHash bucket distribution of the intern
// table, keyed by hash value. It enumerates the buckets with
// golang.org/x/exp/maps; no order is imposed, so callers that want a
// stable order should sort the returned keys themselves.
func (d *Dictionary) DebugBucketSizes() map[uint64]int {
	sizes := make(map[uint64]int, len(d.buckets))
	for h := range maps.Keys(d.buckets) {
		sizes[h] = len(d.buckets[h])
	}
	return sizes
}
