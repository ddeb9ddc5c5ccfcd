package main

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-collections/collections/set"
	"github.com/voxelbrain/goptions"

	"alnreader/reads"
)

// VERSION is just the version number
const VERSION = "0.1.0"

var conf config

type config struct {
	Version            bool    `goptions:"-v, --version, description='Show version'"`
	Debug              bool    `goptions:"--debug, description='Show debug info'"`
	File               string  `goptions:"-f, --file, description='The bam file to be dumped'"`
	Reference          string  `goptions:"-r, --reference, description='Reference hint for reference-compressed inputs'"`
	Output             string  `goptions:"-o, --output-file, description='The output file, .gz for gzip, empty for stdout'"`
	Region             string  `goptions:"-g, --region, description='The region of the bam file to be dumped, chr or chr:start-end'"`
	BedFile            string  `goptions:"-B, --bed_file, description='Path of BED file containing target regions'"`
	MinReadQuality     int     `goptions:"-q, --min-read-quality, description='Discard reads whose mapping quality is below this value'"`
	PrimaryOnly        bool    `goptions:"-P, --primary-only, description='Discard secondary and supplementary alignments'"`
	DiscardDuplicates  bool    `goptions:"-D, --discard-duplicates, description='Discard duplicate fragments'"`
	DiscardQCFail      bool    `goptions:"-Q, --discard-qc-fail, description='Discard reads that failed vendor quality checks'"`
	DownsampleFraction float64 `goptions:"-d, --downsample-fraction, description='Keep roughly this fraction of reads, 0 keeps everything'"`
	Seed               int     `goptions:"-s, --seed, description='Seed of the downsampling stream'"`
	SkipAux            bool    `goptions:"--skip-aux, description='Do not decode optional tags'"`
	BlockSize          int     `goptions:"--block-size, description='Block cache size hint in bytes'"`
	RemoveHeader       bool    `goptions:"-H, --remove-header, description='Do not include header in output file'"`

	Log  string        `goptions:"--log, description='Save log to file'"`
	Help goptions.Help `goptions:"--help, description='Show this help'"`
}

func defaultConfig() config {
	return config{MinReadQuality: 0, DownsampleFraction: 0, Seed: 1}
}

// buildRequirements assembles the acceptance criteria from the flags and the
// BED target positions. Returns nil when nothing filters.
func buildRequirements(targets map[string]*set.Set) *reads.Requirements {
	if conf.MinReadQuality <= 0 && !conf.PrimaryOnly && !conf.DiscardDuplicates &&
		!conf.DiscardQCFail && len(targets) == 0 {
		return nil
	}
	return &reads.Requirements{
		MinBaseQualityMode: reads.BaseQualityEnforcedByClient,
		Satisfies: func(r *reads.Read) bool {
			if conf.PrimaryOnly && (r.SecondaryAlignment || r.SupplementaryAlignment) {
				return false
			}
			if conf.DiscardDuplicates && r.DuplicateFragment {
				return false
			}
			if conf.DiscardQCFail && r.FailedVendorQualityChecks {
				return false
			}
			if conf.MinReadQuality > 0 {
				if r.Alignment == nil || r.Alignment.MappingQuality < conf.MinReadQuality {
					return false
				}
			}
			if len(targets) > 0 {
				if r.Alignment == nil || r.Alignment.Position == nil {
					return false
				}
				pos := r.Alignment.Position
				temp, ok := targets[pos.ReferenceName]
				if !ok || !temp.Has(int(pos.Pos)) {
					return false
				}
			}
			return true
		},
	}
}

func getHeader() []string {
	return []string{
		"Name", "Chrom", "Position", "Strand", "MapQ",
		"Cigar", "ReadNumber", "MateChrom", "MatePosition",
		"Sequence", "MeanQ", "Tags",
	}
}

func formatCigar(units []reads.CigarUnit) string {
	if len(units) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, u := range units {
		b.WriteString(strconv.Itoa(int(u.Len)))
		b.WriteString(u.Op.String())
	}
	return b.String()
}

func formatRead(r *reads.Read) string {
	chrom, pos, strand, mapq, cigar := "*", "-1", "*", "0", "*"
	if r.Alignment != nil {
		mapq = strconv.Itoa(r.Alignment.MappingQuality)
		cigar = formatCigar(r.Alignment.Cigar)
		if p := r.Alignment.Position; p != nil {
			chrom = p.ReferenceName
			pos = strconv.FormatInt(p.Pos, 10)
			if p.ReverseStrand {
				strand = "-"
			} else {
				strand = "+"
			}
		}
	}

	mateChrom, matePos := "*", "-1"
	if r.NextMatePosition != nil {
		mateChrom = r.NextMatePosition.ReferenceName
		matePos = strconv.FormatInt(r.NextMatePosition.Pos, 10)
	}

	meanQ := 0.0
	for _, q := range r.AlignedQuality {
		meanQ += float64(q)
	}
	if len(r.AlignedQuality) > 0 {
		meanQ /= float64(len(r.AlignedQuality))
	}

	tags := make([]string, 0, len(r.Info))
	for _, f := range r.Info {
		tags = append(tags, fmt.Sprintf("%s:%v", f.Tag, f.Value))
	}

	seq := r.AlignedSequence
	if seq == "" {
		seq = "*"
	}

	return strings.Join([]string{
		r.FragmentName, chrom, pos, strand, mapq, cigar,
		fmt.Sprintf("%d/%d", r.ReadNumber+1, r.NumberReads),
		mateChrom, matePos, seq,
		fmt.Sprintf("%.2f", meanQ),
		strings.Join(tags, ";"),
	}, "\t")
}

func openOutput() (func(string), func(), error) {
	if conf.Output == "" {
		w := bufio.NewWriter(os.Stdout)
		return func(line string) { w.WriteString(line + "\n") },
			func() { w.Flush() }, nil
	}

	f, err := os.OpenFile(conf.Output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(conf.Output, "gz") {
		gw := gzip.NewWriter(f)
		return func(line string) { gw.Write([]byte(line + "\n")) },
			func() { gw.Flush(); gw.Close(); f.Close() }, nil
	}
	w := bufio.NewWriter(f)
	return func(line string) { w.WriteString(line + "\n") },
		func() { w.Flush(); f.Close() }, nil
}

func main() {
	conf = defaultConfig()
	goptions.ParseAndFail(&conf)

	setLogger(conf.Debug, conf.Log)

	if conf.Version {
		sugar.Infof("current version: %v", VERSION)
		os.Exit(0)
	}

	if conf.File == "" {
		sugar.Fatal("bam file is mandatory. Please, provide one (-f|--file)")
	}

	reads.SetLogger(logger)

	targets, err := loadBedFile(conf.BedFile)
	if err != nil {
		sugar.Fatal(err)
	}

	auxMode := reads.ParseAllAuxFields
	if conf.SkipAux {
		auxMode = reads.SkipAuxFields
	}

	reader, err := reads.Open(conf.File, conf.Reference, reads.Options{
		AuxFieldHandling:   auxMode,
		Requirements:       buildRequirements(targets),
		DownsampleFraction: conf.DownsampleFraction,
		RandomSeed:         int64(conf.Seed),
		BlockSizeHint:      conf.BlockSize,
	})
	if err != nil {
		sugar.Fatal(err)
	}

	region := reads.DecodeRegion(conf.Region)

	var iter *reads.Iterator
	if region.Empty() {
		iter, err = reader.Iterate()
	} else {
		if region.End == 0 {
			for _, c := range reader.Header().Contigs {
				if c.Name == region.Chrom {
					region.End = int(c.NBases)
					break
				}
			}
		}
		sugar.Infof("narrowing output to region %s", region.String())
		iter, err = reader.Query(region)
	}
	if err != nil {
		sugar.Fatal(err)
	}

	write, flush, err := openOutput()
	if err != nil {
		sugar.Fatalf("failed to open %s: %s", conf.Output, err.Error())
	}

	if !conf.RemoveHeader {
		write(strings.Join(getHeader(), "\t"))
	}

	total := 0
	var read reads.Read
	for {
		ok, err := iter.Next(&read)
		if err != nil {
			sugar.Fatal(err)
		}
		if !ok {
			break
		}
		write(formatRead(&read))
		total++
	}

	flush()
	iter.Close()
	if err := reader.Close(); err != nil {
		sugar.Fatal(err)
	}

	sugar.Infof("wrote %d reads", total)
}
