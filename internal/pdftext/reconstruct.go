package pdftext

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// BandSize is the vertical tolerance, in PDF units, within which fragments share a line.
const BandSize = 8.0

// Fragment is a run of text at a position on a page. Y is measured from the top of the page.
type Fragment struct {
	X    float64
	Y    float64
	Text string
}

// Page holds the fragments of one page. Number is 1-based.
type Page struct {
	Number    int
	Fragments []Fragment
}

// PageMarker is the literal line emitted after the lines of page n.
func PageMarker(n int) string {
	return fmt.Sprintf("[PAGE %d END]", n)
}

// Lines groups fragments into vertical bands and joins each band left to right.
// Bands are returned top to bottom; fragments with blank text are skipped.
func Lines(frags []Fragment) []string {
	bands := make(map[int][]Fragment)
	for _, f := range frags {
		t := strings.TrimSpace(f.Text)
		if t == "" {
			continue
		}
		band := int(math.Round(f.Y / BandSize))
		bands[band] = append(bands[band], Fragment{X: f.X, Y: f.Y, Text: t})
	}

	keys := make([]int, 0, len(bands))
	for k := range bands {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		row := bands[k]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		parts := make([]string, len(row))
		for i, f := range row {
			parts[i] = f.Text
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

// Reconstruct renders pages as text: each page's lines followed by its page marker.
func Reconstruct(pages []Page) string {
	var out []string
	for _, p := range pages {
		out = append(out, Lines(p.Fragments)...)
		out = append(out, PageMarker(p.Number))
	}
	return strings.Join(out, "\n")
}
