package reads

import (
	"strconv"
	"strings"

	"alnreader/bamfile"
)

var sortingOrders = map[string]SortingOrder{
	"coordinate": SortCoordinate,
	"queryname":  SortQueryName,
	"unknown":    SortUnknown,
	"unsorted":   SortUnsorted,
}

var alignmentGroupings = map[string]AlignmentGrouping{
	"none":      GroupNone,
	"query":     GroupQuery,
	"reference": GroupReference,
}

// decodeHeader parses the free header text line by line and appends the
// contigs from the store's structured target arrays, in file order.
// Unrecognized lines, tags and values are warned about and skipped; the only
// hard failure is a non-numeric PI value in a read group.
func decodeHeader(data bamfile.HeaderData) (*Header, error) {
	hdr := &Header{}
	for _, line := range strings.Split(data.Text, "\n") {
		if line == "" {
			continue
		}
		var tag string
		if len(line) >= 3 {
			tag = line[:3]
		}
		switch tag {
		case "@HD":
			decodeHeaderLine(line, hdr)
		case "@SQ":
			// Contigs come from the structured target arrays below.
		case "@RG":
			rg, err := decodeReadGroup(line)
			if err != nil {
				return nil, err
			}
			hdr.ReadGroups = append(hdr.ReadGroups, rg)
		case "@PG":
			hdr.Programs = append(hdr.Programs, decodeProgram(line))
		case "@CO":
			// Skip the tag and its separator; the rest is the comment.
			if len(line) > 4 {
				hdr.Comments = append(hdr.Comments, line[4:])
			} else {
				hdr.Comments = append(hdr.Comments, "")
			}
		default:
			sugar.Warnf("unrecognized header line type, ignoring: %s", line)
		}
	}

	for i, name := range data.RefNames {
		hdr.Contigs = append(hdr.Contigs, ContigInfo{
			Name:       name,
			NBases:     int64(data.RefLengths[i]),
			PosInArray: i,
		})
	}
	return hdr, nil
}

// headerTokens yields the TAG:VALUE tokens of one header line, skipping the
// leading record type token.
func headerTokens(line string) [][2]string {
	var tokens [][2]string
	for _, token := range strings.Split(line, "\t")[1:] {
		if len(token) < 3 {
			tokens = append(tokens, [2]string{token, ""})
			continue
		}
		tokens = append(tokens, [2]string{token[:2], token[3:]})
	}
	return tokens
}

func decodeHeaderLine(line string, hdr *Header) {
	for _, t := range headerTokens(line) {
		tag, value := t[0], t[1]
		switch tag {
		case "VN":
			hdr.FormatVersion = value
		case "SO":
			so, ok := sortingOrders[value]
			if !ok {
				sugar.Warnf("unknown sorting order, defaulting to unknown: %s", line)
				so = SortUnknown
			}
			hdr.SortingOrder = so
		case "GO":
			gr, ok := alignmentGroupings[value]
			if !ok {
				sugar.Warnf("unknown alignment grouping, defaulting to none: %s", line)
				gr = GroupNone
			}
			hdr.AlignmentGrouping = gr
		default:
			sugar.Warnf("unknown tag %s in header line, ignoring: %s", tag, line)
		}
	}
}

func decodeReadGroup(line string) (ReadGroup, error) {
	var rg ReadGroup
	for _, t := range headerTokens(line) {
		tag, value := t[0], t[1]
		switch tag {
		case "ID":
			rg.Name = value
		case "CN":
			rg.SequencingCenter = value
		case "DS":
			rg.Description = value
		case "DT":
			rg.Date = value
		case "FO":
			rg.FlowOrder = value
		case "KS":
			rg.KeySequence = value
		case "LB":
			rg.LibraryID = value
		case "PG":
			rg.ProgramIDs = append(rg.ProgramIDs, value)
		case "PI":
			size, err := strconv.Atoi(value)
			if err != nil {
				return rg, dataLossf("non-numeric PI value %q in read group line: %s", value, line)
			}
			rg.PredictedInsertSize = size
		case "PL":
			rg.Platform = value
		case "PM":
			rg.PlatformModel = value
		case "PU":
			rg.PlatformUnit = value
		case "SM":
			rg.SampleID = value
		default:
			sugar.Warnf("unknown tag %s in RG line, ignoring: %s", tag, line)
		}
	}
	return rg, nil
}

// decodeProgram fills a Program entry. Unknown tags are dropped without a
// warning, unlike read group lines.
func decodeProgram(line string) Program {
	var pg Program
	for _, t := range headerTokens(line) {
		tag, value := t[0], t[1]
		switch tag {
		case "ID":
			pg.ID = value
		case "PN":
			pg.Name = value
		case "CL":
			pg.CommandLine = value
		case "PP":
			pg.PrevProgramID = value
		case "DS":
			pg.Description = value
		case "VN":
			pg.Version = value
		}
	}
	return pg
}
