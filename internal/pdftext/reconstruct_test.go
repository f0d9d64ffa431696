package pdftext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinesBandsAndOrders(t *testing.T) {
	frags := []Fragment{
		{X: 300, Y: 100.0, Text: "World"},
		{X: 72, Y: 101.5, Text: "Hello"}, // jitter within the same band
		{X: 72, Y: 140, Text: "Second"},
		{X: 72, Y: 60, Text: "Title"},
		{X: 200, Y: 60, Text: "   "},
		{X: 400, Y: 140, Text: " line "},
	}
	assert.Equal(t, []string{"Title", "Hello World", "Second line"}, Lines(frags))
}

func TestLinesStableForEqualX(t *testing.T) {
	frags := []Fragment{{X: 10, Y: 10, Text: "a"}, {X: 10, Y: 10, Text: "b"}}
	assert.Equal(t, []string{"a b"}, Lines(frags))
}

func TestReconstructEmitsMarkerPerPage(t *testing.T) {
	pages := []Page{
		{Number: 1, Fragments: []Fragment{{X: 0, Y: 10, Text: "one"}}},
		{Number: 2},
		{Number: 3, Fragments: []Fragment{{X: 0, Y: 10, Text: "three"}}},
	}
	got := Reconstruct(pages)
	assert.Equal(t, "one\n[PAGE 1 END]\n[PAGE 2 END]\nthree\n[PAGE 3 END]", got)
	assert.Equal(t, 3, strings.Count(got, "END]"))
}

func TestReconstructEmpty(t *testing.T) {
	assert.Equal(t, "", Reconstruct(nil))
}
