package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
)

// Ingestor reads CV files from the local filesystem and runs them through a Runner.
type Ingestor struct {
	runner  Runner
	workers int
	logger  *slog.Logger

	// OnEvent, when set, receives every stage event of every file.
	OnEvent func(path string, e events.Event)
}

func NewIngestor(runner Runner, workers int, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Ingestor{runner: runner, workers: workers, logger: logger}
}

// IngestPath processes a single file. Pipeline failures are reported in the result;
// the returned error is only set when the file could not be read at all.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (FileResult, error) {
	out := FileResult{Path: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.Path = abs
	if !AllowedExt(filepath.Ext(abs)) {
		return out, common.NewAppError("UNSUPPORTED_EXT",
			fmt.Sprintf("unsupported or missing extension %q", filepath.Ext(abs)), common.ErrInvalidInput)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])

	var warnings atomic.Int32
	pub := events.PublisherFunc(func(e events.Event) {
		if e.Stage == constants.StageWarning {
			warnings.Add(1)
		}
		if i.OnEvent != nil {
			i.OnEvent(abs, e)
		}
	})

	start := time.Now()
	res, runErr := i.runner.Run(ctx, pipeline.Document{Name: filepath.Base(abs), Data: data}, pub)
	out.Warnings = int(warnings.Load())
	if runErr != nil {
		details := events.ErrorDetails(runErr)
		out.Code, _ = details["code"].(string)
		out.Duplicate = errors.Is(runErr, common.ErrDuplicate)
		out.Err = runErr.Error()
		i.logger.Warn("ingest.file.failed", "path", abs, "code", out.Code, "error", runErr,
			"elapsed_ms", time.Since(start).Milliseconds())
		return out, nil
	}

	if res.Researcher != nil {
		out.ResearcherID = res.Researcher.ID.String()
	}
	if res.CV != nil {
		out.Name = strings.TrimSpace(fmt.Sprintf("%s %s",
			entity.Deref(res.CV.Personal.FirstName), entity.Deref(res.CV.Personal.LastName)))
	}
	i.logger.Info("ingest.file.ok", "path", abs, "hash", out.HashHex[:12], "warnings", out.Warnings,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested, and processes every
// matching file with at most i.workers concurrent runs. Results keep walk order.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError("INVALID_ROOT", "root path is required", common.ErrInvalidInput)
	}
	start := time.Now()

	var (
		stats   DirStats
		paths   []string
		walkErr []FileResult
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			stats.Scanned++
			walkErr = append(walkErr, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for idx, p := range paths {
		g.Go(func() error {
			r, err := i.IngestPath(gctx, p)
			if err != nil {
				r.Err = err.Error()
			}
			results[idx] = r
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch {
		case r.Err == "":
			stats.Succeeded++
		case r.Duplicate:
			stats.Duplicates++
		default:
			stats.Failed++
		}
	}
	results = append(results, walkErr...)

	i.logger.Info("ingest.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, stats, ctx.Err()
}
