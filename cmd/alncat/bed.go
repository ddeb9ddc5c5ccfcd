package main

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang-collections/collections/set"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// loadBedFile loads target positions from a BED file, optionally gzipped,
// into per-chromosome position sets.
func loadBedFile(path string) (map[string]*set.Set, error) {
	targetPositions := make(map[string]*set.Set)
	if path == "" {
		return targetPositions, nil
	}
	sugar.Infof("Loading target positions from file %s", path)

	stats, err := os.Stat(path)
	if os.IsNotExist(err) {
		return targetPositions, errors.New(path + " not exists")
	}

	f, err := os.Open(path)
	if err != nil {
		return targetPositions, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	bar := progressbar.DefaultBytes(stats.Size(), "loading")

	reader := bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return targetPositions, errors.Wrapf(err, "failed to open %s", path)
		}
		reader = bufio.NewReader(gr)
	}

	totalRegions := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return targetPositions, errors.Wrapf(err, "failed to read from %s", path)
		}

		bar.Add(len([]byte(line)))

		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) < 3 {
			continue
		}
		chrom := fields[0]

		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return targetPositions, errors.Wrapf(err, "failed to convert %s: %s", fields[1], line)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			end = start
		}

		temp, ok := targetPositions[chrom]
		if !ok {
			temp = set.New()
		}
		for j := start; j < end; j++ {
			temp.Insert(j)
		}
		targetPositions[chrom] = temp
		totalRegions++
	}
	bar.Finish()

	sugar.Infof("### TARGET REGIONS ###: %d", totalRegions)
	return targetPositions, nil
}
