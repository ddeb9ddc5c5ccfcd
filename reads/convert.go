package reads

import (
	"encoding/binary"

	"github.com/biogo/hts/sam"

	"alnreader/bamfile"
)

// AuxFieldHandling selects how optional tags are treated during conversion.
type AuxFieldHandling int

const (
	// SkipAuxFields leaves Read.Info empty.
	SkipAuxFields AuxFieldHandling = iota
	// ParseAllAuxFields decodes every optional tag into Read.Info.
	ParseAllAuxFields
)

// nt16 maps packed 4-bit base codes to the 16-symbol nucleotide alphabet.
const nt16 = "=ACMGRSVTWYHKDBN"

// missingQual is the sentinel first quality byte of a record without base
// qualities.
const missingQual = 0xff

// cigarOpTable maps packed BAM op codes (MIDNSHP=X) to operation kinds.
var cigarOpTable = [...]CigarOp{
	OpAlignmentMatch,
	OpInsert,
	OpDelete,
	OpSkip,
	OpClipSoft,
	OpClipHard,
	OpPad,
	OpSequenceMatch,
	OpSequenceMismatch,
}

// auxWarnLimit bounds how many aux decode failures are logged, globally, so a
// corrupt file cannot flood the log. The failures themselves are swallowed.
const auxWarnLimit = 1

var auxWarnCount int

// converter maps raw records to Reads against one header's contig table.
type converter struct {
	contigs []string
	auxMode AuxFieldHandling
}

// convert decodes one raw record into out. Corrupt required fields (name,
// CIGAR, sequence bounds, mate consistency) fail with a data-loss error;
// corrupt optional tags degrade the record instead (see decodeAuxFields).
func (c *converter) convert(raw *bamfile.Record, out *Read) error {
	out.reset()

	// LSeq is signed on the wire; a negative value would defeat the
	// segment-bound check below.
	if raw.LSeq < 0 {
		return dataLossf("negative sequence length %d", raw.LSeq)
	}
	nameLen := int(raw.LReadName)
	cigarLen := int(raw.NCigar) * 4
	seqLen := (int(raw.LSeq) + 1) / 2
	qualLen := int(raw.LSeq)
	if nameLen+cigarLen+seqLen+qualLen > len(raw.Data) {
		return dataLossf("truncated record data: %d bytes", len(raw.Data))
	}
	name := raw.Data[:nameLen-1] // NUL terminated on the wire
	cigar := raw.Data[nameLen : nameLen+cigarLen]
	seq := raw.Data[nameLen+cigarLen : nameLen+cigarLen+seqLen]
	qual := raw.Data[nameLen+cigarLen+seqLen : nameLen+cigarLen+seqLen+qualLen]
	aux := raw.Data[nameLen+cigarLen+seqLen+qualLen:]

	flags := sam.Flags(raw.Flags)

	out.FragmentName = string(name)
	out.FragmentLength = int(raw.TLen)
	out.ProperPlacement = flags&sam.ProperPair != 0
	out.DuplicateFragment = flags&sam.Duplicate != 0
	out.FailedVendorQualityChecks = flags&sam.QCFail != 0
	out.SecondaryAlignment = flags&sam.Secondary != 0
	out.SupplementaryAlignment = flags&sam.Supplementary != 0

	// Pairing. The read number depends on whether the fragment is paired
	// and, if so, which mate this is.
	paired := flags&sam.Paired != 0
	if flags&sam.Read1 != 0 || !paired {
		out.ReadNumber = 0
	} else {
		out.ReadNumber = 1
	}
	if paired {
		out.NumberReads = 2
	} else {
		out.NumberReads = 1
	}

	if raw.LSeq > 0 {
		bases := make([]byte, raw.LSeq)
		for i := range bases {
			code := seq[i>>1] >> (4 * (1 - uint(i&1))) & 0xf
			bases[i] = nt16[code]
		}
		out.AlignedSequence = string(bases)

		if qual[0] != missingQual {
			for _, q := range qual {
				out.AlignedQuality = append(out.AlignedQuality, int(q))
			}
		}
	}

	if flags&sam.Unmapped == 0 {
		aln := &LinearAlignment{MappingQuality: int(raw.MapQ)}
		for i := 0; i < int(raw.NCigar); i++ {
			word := binary.LittleEndian.Uint32(cigar[i*4:])
			op := word & 0xf
			if int(op) >= len(cigarOpTable) {
				return dataLossf("malformed CIGAR op %d in read %s", op, out.FragmentName)
			}
			aln.Cigar = append(aln.Cigar, CigarUnit{Op: cigarOpTable[op], Len: word >> 4})
		}
		if raw.RefID >= 0 {
			if int(raw.RefID) >= len(c.contigs) {
				return dataLossf("reference id %d out of range in read %s", raw.RefID, out.FragmentName)
			}
			aln.Position = &Position{
				ReferenceName: c.contigs[raw.RefID],
				Pos:           int64(raw.Pos),
				ReverseStrand: flags&sam.Reverse != 0,
			}
		}
		out.Alignment = aln
	}

	if paired && flags&sam.MateUnmapped == 0 {
		// A mapped mate must carry a resolvable reference id; an
		// inconsistent record is rejected rather than silently dropped.
		if raw.NextRefID < 0 || int(raw.NextRefID) >= len(c.contigs) {
			return dataLossf("expected a valid mate reference id in read %s, got %d",
				out.FragmentName, raw.NextRefID)
		}
		out.NextMatePosition = &Position{
			ReferenceName: c.contigs[raw.NextRefID],
			Pos:           int64(raw.NextPos),
			ReverseStrand: flags&sam.MateReverse != 0,
		}
	}

	if c.auxMode == ParseAllAuxFields {
		fields, err := decodeAuxFields(aux, out.Info)
		out.Info = fields
		if err != nil {
			if auxWarnCount < auxWarnLimit {
				auxWarnCount++
				sugar.Warnf("aux field parsing failure in read %s: %v", out.FragmentName, err)
			}
		}
	}

	return nil
}
