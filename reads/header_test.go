package reads

import (
	"testing"

	"alnreader/bamfile"
)

func TestDecodeHeader(t *testing.T) {
	data := bamfile.HeaderData{
		Text:       "@HD\tVN:1.5\tSO:coordinate\n@RG\tID:rg1\tSM:sample1\n@CO\thello world",
		RefNames:   []string{"chr1", "chr2"},
		RefLengths: []int32{1000, 2000},
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}

	if hdr.FormatVersion != "1.5" {
		t.Errorf("format version = %q, want 1.5", hdr.FormatVersion)
	}
	if hdr.SortingOrder != SortCoordinate {
		t.Errorf("sorting order = %v, want coordinate", hdr.SortingOrder)
	}
	if len(hdr.ReadGroups) != 1 {
		t.Fatalf("got %d read groups, want 1", len(hdr.ReadGroups))
	}
	if rg := hdr.ReadGroups[0]; rg.Name != "rg1" || rg.SampleID != "sample1" {
		t.Errorf("read group = %+v, want name rg1 sample sample1", rg)
	}
	if len(hdr.Comments) != 1 || hdr.Comments[0] != "hello world" {
		t.Errorf("comments = %v, want [hello world]", hdr.Comments)
	}

	if len(hdr.Contigs) != 2 {
		t.Fatalf("got %d contigs, want 2", len(hdr.Contigs))
	}
	for i, want := range []ContigInfo{
		{Name: "chr1", NBases: 1000, PosInArray: 0},
		{Name: "chr2", NBases: 2000, PosInArray: 1},
	} {
		if hdr.Contigs[i] != want {
			t.Errorf("contig %d = %+v, want %+v", i, hdr.Contigs[i], want)
		}
	}
}

func TestDecodeHeaderDefaults(t *testing.T) {
	hdr, err := decodeHeader(bamfile.HeaderData{
		Text: "@HD\tVN:1.6\tSO:sideways\tGO:sideways\tZZ:1\n@XX\tfoo\n",
	})
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if hdr.SortingOrder != SortUnknown {
		t.Errorf("unknown sorting order should default to unknown, got %v", hdr.SortingOrder)
	}
	if hdr.AlignmentGrouping != GroupNone {
		t.Errorf("unknown grouping should default to none, got %v", hdr.AlignmentGrouping)
	}
}

func TestDecodeHeaderPrograms(t *testing.T) {
	hdr, err := decodeHeader(bamfile.HeaderData{
		Text: "@PG\tID:bwa\tPN:bwa\tVN:0.7.17\tCL:bwa mem ref.fa\tZZ:ignored\n" +
			"@PG\tID:dedup\tPP:bwa\tDS:duplicate marking\n",
	})
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if len(hdr.Programs) != 2 {
		t.Fatalf("got %d programs, want 2", len(hdr.Programs))
	}
	want := Program{ID: "bwa", Name: "bwa", Version: "0.7.17", CommandLine: "bwa mem ref.fa"}
	if hdr.Programs[0] != want {
		t.Errorf("program 0 = %+v, want %+v", hdr.Programs[0], want)
	}
	if hdr.Programs[1].PrevProgramID != "bwa" || hdr.Programs[1].Description != "duplicate marking" {
		t.Errorf("program 1 = %+v", hdr.Programs[1])
	}
}

func TestDecodeHeaderReadGroupTags(t *testing.T) {
	hdr, err := decodeHeader(bamfile.HeaderData{
		Text: "@RG\tID:rg1\tCN:center\tDS:desc\tDT:2020-01-01\tFO:ACGT\tKS:AC\tLB:lib1" +
			"\tPG:bwa\tPG:dedup\tPI:250\tPL:ILLUMINA\tPM:HiSeq\tPU:unit1\tSM:s1\n",
	})
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	rg := hdr.ReadGroups[0]
	if rg.PredictedInsertSize != 250 {
		t.Errorf("predicted insert size = %d, want 250", rg.PredictedInsertSize)
	}
	if len(rg.ProgramIDs) != 2 || rg.ProgramIDs[0] != "bwa" || rg.ProgramIDs[1] != "dedup" {
		t.Errorf("program ids = %v, want [bwa dedup]", rg.ProgramIDs)
	}
	if rg.SequencingCenter != "center" || rg.LibraryID != "lib1" || rg.Platform != "ILLUMINA" {
		t.Errorf("read group = %+v", rg)
	}
}

func TestDecodeHeaderBadPI(t *testing.T) {
	_, err := decodeHeader(bamfile.HeaderData{Text: "@RG\tID:rg1\tPI:abc\n"})
	if err == nil {
		t.Fatal("expected an error for non-numeric PI")
	}
	if !IsDataLoss(err) {
		t.Errorf("error %v is not a data-loss error", err)
	}
}
