package pdftext

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
)

// PageCount validates the document structure and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, common.NewExtractionError(0, fmt.Errorf("preflight: %w", err))
	}
	return n, nil
}

// Preflight rejects documents with no pages or more than maxPages (0 = unlimited).
func Preflight(data []byte, maxPages int) (int, error) {
	n, err := PageCount(data)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, common.NewExtractionError(0, fmt.Errorf("document has no pages"))
	}
	if maxPages > 0 && n > maxPages {
		return n, common.NewAppError("TOO_MANY_PAGES",
			fmt.Sprintf("document has %d pages, limit is %d", n, maxPages), common.ErrInvalidInput)
	}
	return n, nil
}
