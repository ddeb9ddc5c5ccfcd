package bamfile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// bamFixedSize is the size of the fixed-length section of a BAM alignment
// record: refID, pos, l_read_name, mapq, bin, n_cigar_op, flag, l_seq,
// next_refID, next_pos and tlen.
const bamFixedSize = 32

// Record is the store's native representation of one alignment record, the
// fixed fields plus the raw variable-length section. The packed contents of
// Data (read name, CIGAR words, 4-bit bases, qualities, aux tags) are left
// for the caller to decode.
type Record struct {
	RefID     int32
	Pos       int32
	LReadName uint8
	MapQ      uint8
	Bin       uint16
	NCigar    uint16
	Flags     uint16
	LSeq      int32
	NextRefID int32
	NextPos   int32
	TLen      int32

	// Data holds the variable section of the record. It is reused between
	// ReadNext calls on the same Record.
	Data []byte
}

// unmarshal fills rec from one framed record block, excluding the leading
// block_size field.
func (rec *Record) unmarshal(block []byte) error {
	if len(block) < bamFixedSize {
		return errors.Errorf("bamfile: record block too short: %d bytes", len(block))
	}
	le := binary.LittleEndian
	rec.RefID = int32(le.Uint32(block[0:]))
	rec.Pos = int32(le.Uint32(block[4:]))
	rec.LReadName = block[8]
	rec.MapQ = block[9]
	rec.Bin = le.Uint16(block[10:])
	rec.NCigar = le.Uint16(block[12:])
	rec.Flags = le.Uint16(block[14:])
	rec.LSeq = int32(le.Uint32(block[16:]))
	rec.NextRefID = int32(le.Uint32(block[20:]))
	rec.NextPos = int32(le.Uint32(block[24:]))
	rec.TLen = int32(le.Uint32(block[28:]))

	if rec.LReadName == 0 {
		return errors.New("bamfile: zero length read name")
	}
	if rec.LSeq < 0 {
		return errors.Errorf("bamfile: negative sequence length %d", rec.LSeq)
	}
	rec.Data = append(rec.Data[:0], block[bamFixedSize:]...)
	return nil
}

// alignEnd returns the 0-based exclusive end of the alignment on the
// reference, summing the reference-consuming CIGAR operations (M, D, N, =, X)
// the same way the index expects. Unmapped or CIGAR-less records span a
// single base.
func (rec *Record) alignEnd() int {
	end := int(rec.Pos)
	off := int(rec.LReadName)
	n := int(rec.NCigar)
	if off+n*4 > len(rec.Data) {
		return end + 1
	}
	span := 0
	for i := 0; i < n; i++ {
		word := binary.LittleEndian.Uint32(rec.Data[off+i*4:])
		switch word & 0xf {
		case 0, 2, 3, 7, 8:
			span += int(word >> 4)
		}
	}
	if span == 0 {
		span = 1
	}
	return end + span
}
