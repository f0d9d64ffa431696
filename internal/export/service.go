package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/repository"
)

const (
	researchersSheet  = "Researchers"
	publicationsSheet = "Publications"
)

// Source is the slice of the researcher repository the exporter reads from.
type Source interface {
	List(ctx context.Context, f repository.ListFilter) ([]entity.ResearcherSummary, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Researcher, error)
}

// Service produces XLSX workbooks of stored researchers.
type Service struct {
	repo   Source
	logger *slog.Logger
}

func NewService(repo Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportResearchersXLSX returns a workbook with one row per researcher matching f,
// plus a second sheet listing every publication of those researchers.
func (s *Service) ExportResearchersXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error) {
	start := time.Now()

	rows, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query researchers: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()

	// The default workbook sheet is renamed rather than left empty.
	if err := x.SetSheetName(x.GetSheetName(0), researchersSheet); err != nil {
		return nil, err
	}
	if index, _ := x.GetSheetIndex(publicationsSheet); index == -1 {
		if _, err := x.NewSheet(publicationsSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := x.GetSheetIndex(researchersSheet)
	x.SetActiveSheet(activeIndex)

	writeHeaders(x, researchersSheet, []string{
		"First Name",
		"Last Name",
		"Email",
		"Institution",
		"Current Position",
		"Publications",
		"Latest Degree Year",
		"Source File",
		"Imported At",
	})
	writeHeaders(x, publicationsSheet, []string{
		"Researcher",
		"Title",
		"Authors",
		"Venue",
		"Year",
		"DOI",
		"Type",
	})

	row := 2
	for _, r := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(researchersSheet, cell, v)
		}
		write(1, r.FirstName)
		write(2, r.LastName)
		write(3, entity.Deref(r.Email))
		write(4, r.Institution)
		write(5, truncate(r.CurrentPosition, 120))
		write(6, r.PublicationCount)
		if r.LatestDegreeYear != nil {
			write(7, *r.LatestDegreeYear)
		} else {
			write(7, "")
		}
		write(8, r.SourceName)
		write(9, r.CreatedAt.UTC().Format("2006-01-02 15:04"))
		row++
	}

	pubRow := 2
	for _, r := range rows {
		if r.PublicationCount == 0 {
			continue
		}
		full, err := s.repo.Get(ctx, r.ID)
		if err != nil {
			s.logger.Warn("export.xlsx.publications_skip", "researcher_id", r.ID.String(), "err", err)
			continue
		}
		name := r.FirstName + " " + r.LastName
		for _, p := range full.CV.Publications {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, pubRow)
				_ = x.SetCellValue(publicationsSheet, cell, v)
			}
			write(1, name)
			write(2, truncate(entity.Deref(p.Title), 250))
			write(3, truncate(entity.Deref(p.Authors), 250))
			write(4, entity.Deref(p.Venue))
			if p.PublicationYear != nil {
				write(5, *p.PublicationYear)
			} else {
				write(5, "")
			}
			write(6, entity.Deref(p.DOI))
			write(7, entity.Deref(p.PublicationType))
			pubRow++
		}
	}

	_ = x.SetColWidth(researchersSheet, "A", "B", 18) // names
	_ = x.SetColWidth(researchersSheet, "C", "C", 32) // email
	_ = x.SetColWidth(researchersSheet, "D", "E", 36)
	_ = x.SetColWidth(researchersSheet, "F", "G", 14)
	_ = x.SetColWidth(researchersSheet, "H", "H", 40) // source
	_ = x.SetColWidth(researchersSheet, "I", "I", 18)
	_ = x.SetColWidth(publicationsSheet, "A", "A", 24)
	_ = x.SetColWidth(publicationsSheet, "B", "C", 60)
	_ = x.SetColWidth(publicationsSheet, "D", "D", 36)
	_ = x.SetColWidth(publicationsSheet, "E", "E", 8)
	_ = x.SetColWidth(publicationsSheet, "F", "G", 24)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"publications", pubRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeHeaders(x *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
