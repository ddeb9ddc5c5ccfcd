// Package reads decodes raw alignment records from a BAM store into typed
// alignment entities, decodes header text into structured metadata, and
// streams records through a pull iterator with optional requirement
// filtering and reproducible seeded downsampling.
package reads

import (
	"fmt"
	"regexp"
	"strconv"
)

// CigarOp is the kind of one alignment operation.
type CigarOp int32

const (
	OpUnspecified CigarOp = iota
	OpAlignmentMatch
	OpInsert
	OpDelete
	OpSkip
	OpClipSoft
	OpClipHard
	OpPad
	OpSequenceMatch
	OpSequenceMismatch
)

var cigarOpNames = [...]string{"?", "M", "I", "D", "N", "S", "H", "P", "=", "X"}

func (op CigarOp) String() string {
	if op < 0 || int(op) >= len(cigarOpNames) {
		return "?"
	}
	return cigarOpNames[op]
}

// CigarUnit is one alignment operation and its length.
type CigarUnit struct {
	Op  CigarOp
	Len uint32
}

// Position is a 0-based strand-aware point on a named reference.
type Position struct {
	ReferenceName string
	Pos           int64
	ReverseStrand bool
}

// LinearAlignment is the mapped portion of a read: mapping quality, CIGAR
// and position. It is present on a record iff the record is flagged mapped.
type LinearAlignment struct {
	MappingQuality int
	Cigar          []CigarUnit
	Position       *Position
}

// AuxField is one decoded optional tag. Value is an int, float64 or string.
type AuxField struct {
	Tag   string
	Value interface{}
}

// Read is one decoded alignment record.
type Read struct {
	FragmentName   string
	FragmentLength int

	ProperPlacement           bool
	DuplicateFragment         bool
	FailedVendorQualityChecks bool
	SecondaryAlignment        bool
	SupplementaryAlignment    bool

	// ReadNumber is 0 or 1; NumberReads is 1 or 2, from the pairing flags.
	ReadNumber  int
	NumberReads int

	AlignedSequence string
	// AlignedQuality is nil when the record carries the missing-quality
	// sentinel; otherwise its length equals len(AlignedSequence).
	AlignedQuality []int

	Alignment        *LinearAlignment
	NextMatePosition *Position

	// Info holds the decoded aux tags in byte-stream order.
	Info []AuxField
}

// Tag returns the decoded value of an aux tag and whether it is present.
func (r *Read) Tag(tag string) (interface{}, bool) {
	for i := range r.Info {
		if r.Info[i].Tag == tag {
			return r.Info[i].Value, true
		}
	}
	return nil, false
}

// reset clears r for reuse without dropping allocated slices.
func (r *Read) reset() {
	info := r.Info[:0]
	quality := r.AlignedQuality[:0]
	*r = Read{}
	r.Info = info
	r.AlignedQuality = quality
}

// SortingOrder is the header's declared record ordering.
type SortingOrder int

const (
	SortUnknown SortingOrder = iota
	SortCoordinate
	SortQueryName
	SortUnsorted
)

// AlignmentGrouping is the header's declared record grouping.
type AlignmentGrouping int

const (
	GroupNone AlignmentGrouping = iota
	GroupQuery
	GroupReference
)

// ReadGroup is one @RG header entry.
type ReadGroup struct {
	Name                string
	SequencingCenter    string
	Description         string
	Date                string
	FlowOrder           string
	KeySequence         string
	LibraryID           string
	ProgramIDs          []string
	PredictedInsertSize int
	Platform            string
	PlatformModel       string
	PlatformUnit        string
	SampleID            string
}

// Program is one @PG header entry.
type Program struct {
	ID            string
	Name          string
	CommandLine   string
	PrevProgramID string
	Description   string
	Version       string
}

// ContigInfo is one reference sequence from the store's structured target
// arrays. PosInArray is the 0-based file-order index, which is also the
// contig's internal id.
type ContigInfo struct {
	Name       string
	NBases     int64
	PosInArray int
}

// Header is the decoded header metadata. It is built once per Reader and is
// immutable afterwards; iterators share it read-only.
type Header struct {
	FormatVersion     string
	SortingOrder      SortingOrder
	AlignmentGrouping AlignmentGrouping
	ReadGroups        []ReadGroup
	Programs          []Program
	Comments          []string
	Contigs           []ContigInfo
}

// Region is a half-open query interval [Start, End) on a named reference.
type Region struct {
	Chrom string
	Start int
	End   int
}

// String renders the region in chr:start-end form.
func (region Region) String() string {
	if region.Start == 0 && region.End == 0 {
		return region.Chrom
	}
	return fmt.Sprintf("%s:%d-%d", region.Chrom, region.Start, region.End)
}

// Empty reports whether the region selects nothing.
func (region Region) Empty() bool {
	return region.Chrom == ""
}

var regionRe = regexp.MustCompile(`^\w+:\d+-\d+$`)

// DecodeRegion parses a chr or chr:start-end region string.
func DecodeRegion(s string) Region {
	res := Region{}
	if s == "" {
		return res
	}
	if regionRe.MatchString(s) {
		parts := regexp.MustCompile("[:-]").Split(s, -1)
		res.Chrom = parts[0]
		res.Start, _ = strconv.Atoi(parts[1])
		res.End, _ = strconv.Atoi(parts[2])
	} else {
		res.Chrom = s
	}
	return res
}
