package bamfile

import (
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/pkg/errors"
)

// Index wraps a loaded BAI index for the store's BAM file.
type Index struct {
	idx *bam.Index
}

// LoadIndex loads the BAI index next to the BAM file. A missing index is not
// an error: both return values are nil.
func (s *Store) LoadIndex() (*Index, error) {
	f, err := os.Open(s.f.Name() + ".bai")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index for %s", s.f.Name())
	}
	defer f.Close()

	idx, err := bam.ReadIndex(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read index for %s", s.f.Name())
	}
	return &Index{idx: idx}, nil
}

// BoundedReader yields the raw records overlapping one half-open reference
// interval, walking the index chunks over the store's shared bgzf cursor.
type BoundedReader struct {
	s      *Store
	chunks []bgzf.Chunk
	refID  int
	start  int
	end    int
	cur    int
	active bool
}

// Bounded resolves the bgzf chunks for the half-open interval [start, end) on
// refID and returns a reader over them. An interval the index rejects yields
// an invalid-region error.
func (s *Store) Bounded(idx *Index, refID, start, end int) (*BoundedReader, error) {
	if idx == nil || idx.idx == nil {
		return nil, errors.New("bamfile: nil index")
	}
	if refID < 0 || refID >= len(s.refs) {
		return nil, errors.Errorf("bamfile: reference id %d out of range", refID)
	}
	chunks, err := idx.idx.Chunks(s.refs[refID], start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid interval %s:%d-%d", s.refs[refID].Name(), start, end)
	}
	return &BoundedReader{s: s, chunks: chunks, refID: refID, start: start, end: end}, nil
}

func vOffset(o bgzf.Offset) int64 {
	return o.File<<16 | int64(o.Block)
}

// ReadNext frames the next raw record overlapping the interval into rec. It
// returns io.EOF once the chunk list is exhausted.
func (b *BoundedReader) ReadNext(rec *Record) error {
	for {
		if b.cur >= len(b.chunks) {
			return io.EOF
		}
		c := b.chunks[b.cur]
		if !b.active {
			if err := b.s.r.Seek(c.Begin); err != nil {
				return errors.Wrap(err, "bamfile: chunk seek failed")
			}
			b.active = true
		} else if vOffset(b.s.r.LastChunk().End) >= vOffset(c.End) {
			b.cur++
			b.active = false
			continue
		}

		if err := b.s.ReadNext(rec); err != nil {
			return err
		}

		// Chunks can frame records outside the interval; sorted order means
		// a later reference or a record at or past end closes out the chunk.
		if int(rec.RefID) > b.refID || (int(rec.RefID) == b.refID && int(rec.Pos) >= b.end) {
			b.cur++
			b.active = false
			continue
		}
		if int(rec.RefID) < b.refID || rec.alignEnd() <= b.start {
			continue
		}
		return nil
	}
}

// Close releases the chunk list. The store cursor itself stays open.
func (b *BoundedReader) Close() {
	b.chunks = nil
	b.cur = 0
}
