package reads

import (
	"io"

	"alnreader/bamfile"
)

// recordSource is the store-side supplier of raw records. The full-scan
// variant walks the sequential cursor; the bounded variant walks the index
// chunks of one region.
type recordSource interface {
	next(rec *bamfile.Record) error
}

type fullScanSource struct {
	store *bamfile.Store
}

func (s fullScanSource) next(rec *bamfile.Record) error {
	return s.store.ReadNext(rec)
}

type boundedSource struct {
	br *bamfile.BoundedReader
}

func (s boundedSource) next(rec *bamfile.Record) error {
	return s.br.ReadNext(rec)
}

// Iterator is a pull cursor over the decoded records of one Reader.
// Rejected records are skipped in place, never buffered. Next is not safe
// for concurrent use: the downsampling stream is order dependent.
type Iterator struct {
	reader  *Reader
	src     recordSource
	bounded *bamfile.BoundedReader
	conv    converter
	raw     bamfile.Record
	closed  bool
}

func newIterator(r *Reader, src recordSource, bounded *bamfile.BoundedReader) *Iterator {
	return &Iterator{
		reader:  r,
		src:     src,
		bounded: bounded,
		conv:    converter{contigs: r.contigs, auxMode: r.opts.AuxFieldHandling},
	}
}

// Next decodes records until one passes the configured requirements and the
// downsampler, filling out with it and returning true. It returns false with
// a nil error at end of stream; the iterator stays open and subsequent calls
// report end of stream again. A store framing error or a data-loss failure
// in conversion aborts only this call.
func (it *Iterator) Next(out *Read) (bool, error) {
	if it.closed {
		return false, failedPreconditionf("cannot advance a closed iterator")
	}
	for {
		if err := it.src.next(&it.raw); err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, dataLossf("failed to read record: %v", err)
		}
		if err := it.conv.convert(&it.raw, out); err != nil {
			return false, err
		}
		if it.reader.keepRead(out) {
			return true, nil
		}
	}
}

// Close releases the iterator's store-side handle and frees its slot on the
// Reader. It is safe to call once iteration is done or abandoned.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	if it.bounded != nil {
		it.bounded.Close()
		it.bounded = nil
	}
	it.reader.active = false
}
