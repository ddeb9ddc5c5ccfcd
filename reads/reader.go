package reads

import (
	"os"

	"github.com/pkg/errors"

	"alnreader/bamfile"
)

// BaseQualityMode selects who enforces minimum base qualities.
type BaseQualityMode int

const (
	// BaseQualityUnspecified leaves base qualities alone.
	BaseQualityUnspecified BaseQualityMode = iota
	// BaseQualityEnforcedByClient means the caller's criteria do the
	// enforcement; the reader only invokes them.
	BaseQualityEnforcedByClient
	// BaseQualityEnforcedByReader is not supported.
	BaseQualityEnforcedByReader
)

// Requirements are the acceptance criteria applied to each decoded record.
// The criteria semantics belong to the caller: Satisfies is invoked per
// record and a false return discards it before any downsampling draw.
type Requirements struct {
	MinBaseQualityMode BaseQualityMode
	Satisfies          func(*Read) bool
}

// Options configure a Reader.
type Options struct {
	// AuxFieldHandling selects whether optional tags are decoded.
	AuxFieldHandling AuxFieldHandling
	// Requirements, when non-nil, filter records during iteration.
	Requirements *Requirements
	// DownsampleFraction in (0,1] retains roughly that fraction of the
	// records that pass the requirements. Zero disables downsampling.
	DownsampleFraction float64
	// RandomSeed seeds the downsampling stream.
	RandomSeed int64
	// BlockSizeHint, in bytes, sizes the store's block cache.
	BlockSizeHint int
}

// Reader decodes the header of a BAM source at construction and hands out
// record iterators. A Reader owns its store handle: every opened Reader must
// be closed exactly once, and at most one iterator may be live at a time
// because iterators share the store's cursor.
type Reader struct {
	path  string
	store *bamfile.Store
	index *bamfile.Index
	hdr   *Header

	contigIDs map[string]int
	contigs   []string

	opts    Options
	sampler *downsampler

	closed bool
	active bool
}

// Open opens a BAM source, validates opts, decodes the header and loads the
// index when one exists next to the file. referencePath is the external
// reference-resolution hint for reference-compressed formats; BAM sources do
// not need it and it is ignored for them.
func Open(path, referencePath string, opts Options) (*Reader, error) {
	if req := opts.Requirements; req != nil &&
		req.MinBaseQualityMode != BaseQualityUnspecified &&
		req.MinBaseQualityMode != BaseQualityEnforcedByClient {
		return nil, invalidArgumentf("unsupported min base quality mode %d", req.MinBaseQualityMode)
	}
	if opts.DownsampleFraction < 0 || opts.DownsampleFraction > 1 {
		return nil, invalidArgumentf("downsample fraction %v out of [0,1]", opts.DownsampleFraction)
	}

	store, err := bamfile.Open(path, opts.BlockSizeHint)
	if err != nil {
		switch {
		case os.IsNotExist(errors.Cause(err)):
			return nil, errors.WithMessage(ErrNotFound, err.Error())
		case errors.Cause(err) == bamfile.ErrUnsupported:
			return nil, errors.WithMessage(ErrInvalidArgument, err.Error())
		default:
			return nil, errors.WithMessage(ErrDataLoss, err.Error())
		}
	}
	if referencePath != "" {
		sugar.Infof("reference hint %s ignored for BAM source %s", referencePath, path)
	}

	hdr, err := decodeHeader(store.Header())
	if err != nil {
		store.Close()
		return nil, err
	}

	// Index absence is tolerated; a corrupt index only disables queries.
	index, err := store.LoadIndex()
	if err != nil {
		sugar.Warnf("ignoring unreadable index for %s: %v", path, err)
		index = nil
	}

	contigs := make([]string, len(hdr.Contigs))
	contigIDs := make(map[string]int, len(hdr.Contigs))
	for i, c := range hdr.Contigs {
		contigs[i] = c.Name
		contigIDs[c.Name] = i
	}

	return &Reader{
		path:      path,
		store:     store,
		index:     index,
		hdr:       hdr,
		contigIDs: contigIDs,
		contigs:   contigs,
		opts:      opts,
		sampler:   newDownsampler(opts.DownsampleFraction, opts.RandomSeed),
	}, nil
}

// Header returns the decoded header metadata. It is immutable after Open.
func (r *Reader) Header() *Header {
	return r.hdr
}

// HasIndex reports whether an index was loaded.
func (r *Reader) HasIndex() bool {
	return r.index != nil
}

// Iterate returns a full-scan iterator over every record in the source.
func (r *Reader) Iterate() (*Iterator, error) {
	if r.closed {
		return nil, failedPreconditionf("cannot iterate a closed reader")
	}
	if r.active {
		return nil, failedPreconditionf("an iterator is already live on %s", r.path)
	}
	r.active = true
	return newIterator(r, fullScanSource{store: r.store}, nil), nil
}

// Query returns an iterator over the records overlapping the half-open
// interval [region.Start, region.End) on region.Chrom. It requires an index.
func (r *Reader) Query(region Region) (*Iterator, error) {
	if r.closed {
		return nil, failedPreconditionf("cannot query a closed reader")
	}
	if !r.HasIndex() {
		return nil, failedPreconditionf("cannot query %s without an index", r.path)
	}
	if r.active {
		return nil, failedPreconditionf("an iterator is already live on %s", r.path)
	}
	tid, ok := r.contigIDs[region.Chrom]
	if !ok {
		return nil, notFoundf("unknown reference name %q", region.Chrom)
	}
	bounded, err := r.store.Bounded(r.index, tid, region.Start, region.End)
	if err != nil {
		return nil, notFoundf("region %s specifies an unknown reference interval: %v", region, err)
	}
	r.active = true
	return newIterator(r, boundedSource{br: bounded}, bounded), nil
}

// keepRead applies the acceptance criteria in short-circuit order: a record
// failing the requirements never reaches the downsampler, so the random
// stream stays reproducible across runs with the same seed and criteria.
func (r *Reader) keepRead(read *Read) bool {
	if req := r.opts.Requirements; req != nil && req.Satisfies != nil && !req.Satisfies(read) {
		return false
	}
	if r.opts.DownsampleFraction != 0 {
		return r.sampler.Keep()
	}
	return true
}

// Close releases the index, header and store handle, in that order. Closing
// twice is a caller error and fails with a precondition error.
func (r *Reader) Close() error {
	if r.closed {
		return failedPreconditionf("reader for %s already closed", r.path)
	}
	r.closed = true
	r.index = nil
	r.hdr = nil
	if err := r.store.Close(); err != nil {
		return internalf("failed to close %s: %v", r.path, err)
	}
	return nil
}
