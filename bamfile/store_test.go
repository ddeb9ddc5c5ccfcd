package bamfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
)

const testHeaderText = "@HD\tVN:1.5\tSO:coordinate\n" +
	"@RG\tID:rg1\tSM:sample1\n" +
	"@CO\thello world\n"

func mustReference(t *testing.T, name string, length int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	if err != nil {
		t.Fatalf("NewReference(%s) failed: %v", name, err)
	}
	return ref
}

func mustRecord(t *testing.T, name string, ref, mateRef *sam.Reference,
	pos, matePos, tLen int, mapQ byte, flags sam.Flags,
	cigar []sam.CigarOp, seq, qual []byte, aux []sam.Aux) *sam.Record {
	t.Helper()
	rec, err := sam.NewRecord(name, ref, mateRef, pos, matePos, tLen, mapQ, cigar, seq, qual, aux)
	if err != nil {
		t.Fatalf("NewRecord(%s) failed: %v", name, err)
	}
	rec.Flags = flags
	return rec
}

// writeTestBAM writes a three-record BAM (a proper pair on chr1 and one
// unmapped fragment) and returns its path.
func writeTestBAM(t *testing.T, dir string) string {
	t.Helper()

	refs := []*sam.Reference{
		mustReference(t, "chr1", 1000),
		mustReference(t, "chr2", 2000),
	}
	h, err := sam.NewHeader([]byte(testHeaderText), refs)
	if err != nil {
		t.Fatalf("NewHeader failed: %v", err)
	}

	nm, err := sam.NewAux(sam.NewTag("NM"), 2)
	if err != nil {
		t.Fatalf("NewAux failed: %v", err)
	}

	seq1 := []byte("ACGTACGTACGTACGTA") // 10M2I5M consumes 17 query bases
	qual1 := bytes.Repeat([]byte{30}, len(seq1))
	rec1 := mustRecord(t, "frag1", refs[0], refs[0], 100, 300, 250, 60,
		sam.Paired|sam.ProperPair|sam.Read1|sam.MateReverse,
		[]sam.CigarOp{
			sam.NewCigarOp(sam.CigarMatch, 10),
			sam.NewCigarOp(sam.CigarInsertion, 2),
			sam.NewCigarOp(sam.CigarMatch, 5),
		},
		seq1, qual1, []sam.Aux{nm})

	seq2 := []byte("ACGTACGTACGTACG")
	qual2 := bytes.Repeat([]byte{30}, len(seq2))
	rec2 := mustRecord(t, "frag1", refs[0], refs[0], 300, 100, -250, 60,
		sam.Paired|sam.ProperPair|sam.Read2|sam.Reverse,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 15)},
		seq2, qual2, nil)

	seq3 := []byte("ACGT")
	qual3 := bytes.Repeat([]byte{0xff}, len(seq3)) // missing qualities
	rec3 := mustRecord(t, "frag2", nil, nil, -1, -1, 0, 0,
		sam.Unmapped|sam.MateUnmapped,
		nil, seq3, qual3, nil)

	path := filepath.Join(dir, "test.bam")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s failed: %v", path, err)
	}
	bw, err := bam.NewWriter(f, h, 1)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for _, rec := range []*sam.Record{rec1, rec2, rec3} {
		if err := bw.Write(rec); err != nil {
			t.Fatalf("Write(%s) failed: %v", rec.Name, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("writer close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close failed: %v", err)
	}
	return path
}

func TestStoreHeader(t *testing.T) {
	path := writeTestBAM(t, t.TempDir())
	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	hdr := s.Header()
	if len(hdr.RefNames) != 2 || hdr.RefNames[0] != "chr1" || hdr.RefNames[1] != "chr2" {
		t.Errorf("ref names = %v, want [chr1 chr2]", hdr.RefNames)
	}
	if len(hdr.RefLengths) != 2 || hdr.RefLengths[0] != 1000 || hdr.RefLengths[1] != 2000 {
		t.Errorf("ref lengths = %v, want [1000 2000]", hdr.RefLengths)
	}
	if !bytes.Contains([]byte(hdr.Text), []byte("ID:rg1")) {
		t.Errorf("header text lost the read group: %q", hdr.Text)
	}
	if len(s.Refs()) != 2 || s.Refs()[0].ID() != 0 || s.Refs()[1].ID() != 1 {
		t.Errorf("references did not get file-order ids: %v", s.Refs())
	}
}

func TestStoreReadNext(t *testing.T) {
	path := writeTestBAM(t, t.TempDir())
	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	var rec Record
	if err := s.ReadNext(&rec); err != nil {
		t.Fatalf("first ReadNext failed: %v", err)
	}
	if rec.RefID != 0 || rec.Pos != 100 || rec.MapQ != 60 {
		t.Errorf("record core = refID %d pos %d mapq %d", rec.RefID, rec.Pos, rec.MapQ)
	}
	if rec.NCigar != 3 || rec.LSeq != 17 || rec.TLen != 250 {
		t.Errorf("record core = ncigar %d lseq %d tlen %d", rec.NCigar, rec.LSeq, rec.TLen)
	}
	if rec.Flags&uint16(sam.Paired) == 0 || rec.Flags&uint16(sam.Read1) == 0 {
		t.Errorf("flags = %#x, pairing bits lost", rec.Flags)
	}
	if name := string(rec.Data[:rec.LReadName-1]); name != "frag1" {
		t.Errorf("name = %q, want frag1", name)
	}
	if got := rec.alignEnd(); got != 115 {
		t.Errorf("alignment end = %d, want 115", got)
	}

	if err := s.ReadNext(&rec); err != nil {
		t.Fatalf("second ReadNext failed: %v", err)
	}
	if rec.Pos != 300 || rec.NextPos != 100 {
		t.Errorf("mate record = pos %d matepos %d", rec.Pos, rec.NextPos)
	}

	if err := s.ReadNext(&rec); err != nil {
		t.Fatalf("third ReadNext failed: %v", err)
	}
	if rec.RefID != -1 {
		t.Errorf("unmapped record refID = %d, want -1", rec.RefID)
	}

	if err := s.ReadNext(&rec); err != io.EOF {
		t.Errorf("expected io.EOF after last record, got %v", err)
	}
	// End of stream is repeatable.
	if err := s.ReadNext(&rec); err != io.EOF {
		t.Errorf("expected io.EOF again, got %v", err)
	}
}

func TestStoreMissingIndexTolerated(t *testing.T) {
	path := writeTestBAM(t, t.TempDir())
	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	idx, err := s.LoadIndex()
	if err != nil {
		t.Fatalf("missing index must not error: %v", err)
	}
	if idx != nil {
		t.Error("missing index must yield a nil handle")
	}
}

func TestStoreClose(t *testing.T) {
	path := writeTestBAM(t, t.TempDir())
	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := s.Close(); err == nil {
		t.Error("double close must fail")
	}
}

func TestUnmarshalNegativeSeqLength(t *testing.T) {
	block := make([]byte, bamFixedSize+6)
	block[8] = 6 // l_read_name
	negLen := int32(-10)
	binary.LittleEndian.PutUint32(block[16:], uint32(negLen))
	copy(block[bamFixedSize:], "frag1\x00")

	var rec Record
	if err := rec.unmarshal(block); err == nil {
		t.Error("expected an error for a negative sequence length")
	}
}

func TestOpenRejectsNonBAM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not.bam")
	if err := os.WriteFile(path, []byte("not a bam at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("expected an error for non-bgzf input")
	}
	if errors.Cause(err) != ErrUnsupported {
		t.Errorf("cause = %v, want ErrUnsupported", errors.Cause(err))
	}
}
