// Package pdftext turns PDF bytes into reading-order text with page markers.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
)

const defaultPageTop = 792.0 // US Letter

// Result is the reconstructed text of a document.
type Result struct {
	Text      string
	Pages     int
	Lines     int
	Fragments int
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reconstructs the text of data. Any failure is an *common.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, e.logger)

	pages, err := ReadPages(ctx, data)
	if err != nil {
		log.Error("pdf.extract.failed", "error", err, "bytes", len(data),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	res := &Result{Text: Reconstruct(pages), Pages: len(pages)}
	for _, p := range pages {
		res.Fragments += len(p.Fragments)
	}
	res.Lines = strings.Count(res.Text, "\n") + 1 - res.Pages

	log.Info("pdf.extract.ok",
		"pages", res.Pages,
		"lines", res.Lines,
		"fragments", res.Fragments,
		"chars", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// ReadPages parses data and returns the positioned fragments of every page.
func ReadPages(ctx context.Context, data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, common.NewExtractionError(0, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewExtractionError(0, err)
	}
	n := r.NumPage()
	if n <= 0 {
		return nil, common.NewExtractionError(0, errors.New("document has no pages"))
	}

	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, common.NewExtractionError(i, err)
		}
		frags, err := readPage(r.Page(i))
		if err != nil {
			return nil, common.NewExtractionError(i, err)
		}
		pages = append(pages, Page{Number: i, Fragments: frags})
	}
	return pages, nil
}

func readPage(p pdf.Page) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags, err = nil, fmt.Errorf("content stream: %v", r)
		}
	}()
	if p.V.IsNull() {
		return nil, errors.New("page object missing")
	}
	return coalesce(p.Content().Text, pageTop(p)), nil
}

// pageTop returns the upper y bound of the page's MediaBox, inherited through the page tree.
func pageTop(p pdf.Page) float64 {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return math.Max(box.Index(1).Float64(), box.Index(3).Float64())
		}
	}
	return defaultPageTop
}

// coalesce merges glyphs into fragments in content-stream order. A fragment ends at a
// whitespace glyph, a baseline change, or a horizontal gap wider than a quarter em.
func coalesce(glyphs []pdf.Text, top float64) []Fragment {
	var (
		out   []Fragment
		cur   strings.Builder
		x0    float64
		lastX float64
		lastW float64
		lastY float64
		open  bool
	)
	flush := func() {
		if open && cur.Len() > 0 {
			out = append(out, Fragment{X: x0, Y: top - lastY, Text: cur.String()})
		}
		cur.Reset()
		open = false
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		em := g.FontSize
		if em <= 0 {
			em = 1
		}
		if open {
			gap := g.X - (lastX + lastW)
			if math.Abs(g.Y-lastY) > 0.5 || gap > 0.25*em || gap < -em {
				flush()
			}
		}
		if !open {
			x0, open = g.X, true
		}
		cur.WriteString(g.S)
		lastX, lastW, lastY = g.X, g.W, g.Y
	}
	flush()
	return out
}
