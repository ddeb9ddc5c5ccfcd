// Package bamfile is the alignment store: it owns the open file handle, bgzf
// decompression, BAI index traversal and raw record framing for BAM sources.
// It hands back one raw record at a time and never interprets the packed
// record contents beyond what index traversal requires.
package bamfile

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/bgzf/cache"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
)

var bamMagic = [4]byte{'B', 'A', 'M', 0x1}

// ErrUnsupported is the cause of Open failures on inputs that are not BAM,
// for callers that distinguish format rejection from corruption.
var ErrUnsupported = errors.New("unsupported format")

// HeaderData is the raw header material of a BAM source: the free header
// text and the structured target name/length arrays.
type HeaderData struct {
	Text       string
	RefNames   []string
	RefLengths []int32
}

// Store provides sequential and chunk-bounded access to the raw records of
// one BAM file. The underlying bgzf cursor is shared: only one sequential or
// bounded reader may be active at a time.
type Store struct {
	f   *os.File
	r   *bgzf.Reader
	hdr HeaderData

	// refs carries the targets as id-bearing references for index queries.
	refs []*sam.Reference

	// block is the scratch buffer for record framing.
	block []byte
}

// Open opens a BAM file and reads its binary header. A positive
// blockCacheBytes installs an LRU block cache of blockCacheBytes/64KiB bgzf
// blocks, the closest analogue of an hts block-size hint.
func Open(path string, blockCacheBytes int) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}

	r, err := bgzf.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, errors.WithMessagef(ErrUnsupported, "%s is not bgzf compressed: %v", path, err)
	}
	if blockCacheBytes > 0 {
		n := blockCacheBytes / 0x10000
		if n < 1 {
			n = 1
		}
		r.SetCache(cache.NewLRU(n))
	}

	s := &Store{f: f, r: r}
	if err := s.readHeader(); err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "failed to read header from %s", path)
	}
	return s, nil
}

func (s *Store) readHeader() error {
	var magic [4]byte
	if _, err := io.ReadFull(s.r, magic[:]); err != nil {
		return errors.Wrap(err, "short magic")
	}
	if magic != bamMagic {
		return errors.WithMessagef(ErrUnsupported, "magic %q is not BAM", magic[:])
	}

	lText, err := s.readInt32()
	if err != nil {
		return err
	}
	text := make([]byte, lText)
	if _, err := io.ReadFull(s.r, text); err != nil {
		return errors.Wrap(err, "truncated header text")
	}
	s.hdr.Text = string(text)

	nRef, err := s.readInt32()
	if err != nil {
		return err
	}
	s.hdr.RefNames = make([]string, 0, nRef)
	s.hdr.RefLengths = make([]int32, 0, nRef)
	refs := make([]*sam.Reference, 0, nRef)
	for i := int32(0); i < nRef; i++ {
		lName, err := s.readInt32()
		if err != nil {
			return err
		}
		name := make([]byte, lName)
		if _, err := io.ReadFull(s.r, name); err != nil {
			return errors.Wrap(err, "truncated reference name")
		}
		lRef, err := s.readInt32()
		if err != nil {
			return err
		}
		// Names are NUL terminated on the wire.
		refName := string(name[:len(name)-1])
		s.hdr.RefNames = append(s.hdr.RefNames, refName)
		s.hdr.RefLengths = append(s.hdr.RefLengths, lRef)

		ref, err := sam.NewReference(refName, "", "", int(lRef), nil, nil)
		if err != nil {
			return errors.Wrapf(err, "bad reference %s", refName)
		}
		refs = append(refs, ref)
	}
	// Assigns ids 0..n-1 to the references, file order.
	if _, err := sam.NewHeader(nil, refs); err != nil {
		return err
	}
	s.refs = refs
	return nil
}

func (s *Store) readInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(s.r, buf[:]); err != nil {
		return 0, errors.Wrap(err, "truncated header")
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// Header returns the raw header material read at Open.
func (s *Store) Header() HeaderData {
	return s.hdr
}

// Refs returns the targets as references usable for index queries.
func (s *Store) Refs() []*sam.Reference {
	return s.refs
}

// ReadNext frames the next raw record from the current cursor position into
// rec, reusing rec's buffers. It returns io.EOF at end of stream and a
// malformed-record error if the framing is corrupt.
func (s *Store) ReadNext(rec *Record) error {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(s.r, sizeBuf[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errors.Wrap(err, "bamfile: truncated record block size")
	}
	blockSize := int(int32(binary.LittleEndian.Uint32(sizeBuf[:])))
	if blockSize < bamFixedSize {
		return errors.Errorf("bamfile: invalid record block size %d", blockSize)
	}

	if cap(s.block) < blockSize {
		s.block = make([]byte, blockSize)
	}
	s.block = s.block[:blockSize]
	if _, err := io.ReadFull(s.r, s.block); err != nil {
		return errors.Wrap(err, "bamfile: truncated record block")
	}
	return rec.unmarshal(s.block)
}

// Close releases the bgzf reader and the file handle.
func (s *Store) Close() error {
	if s.r == nil {
		return errors.New("bamfile: store already closed")
	}
	err := s.r.Close()
	s.r = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f = nil
	return err
}
