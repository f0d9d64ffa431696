package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
)

const defaultUploadName = "upload.pdf"

// handleExtract accepts a PDF as a multipart "file" field or as a raw application/pdf body
// and streams the pipeline's stage events as server-sent events. Request problems found
// before the stream starts are plain JSON errors; everything after is an event.
//
//	data: {"stage":"uploading","message":"Received cv.pdf","timestamp":1760000000000,...}
//
//	data: {"stage":"complete","message":"Extracted CV for Jane Doe","result":{...}}
func (s *Server) handleExtract(c echo.Context) error {
	doc, err := s.readDocument(c)
	if err != nil {
		return err
	}

	log := common.LoggerFrom(c.Request().Context(), s.logger).With("file", doc.Name)

	ctx := c.Request().Context()
	var cancel context.CancelFunc
	if s.cfg.StreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.StreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	buffer := s.cfg.EventBuffer
	if buffer <= 0 {
		buffer = 16
	}
	stream := events.NewStream(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.deps.Runner.Run(ctx, doc, stream)
	}()
	defer func() {
		stream.Abandon()
		cancel()
		<-done
	}()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	var heartbeat <-chan time.Time
	if s.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(s.cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case e, ok := <-stream.Events():
			if !ok {
				return nil
			}
			if err := events.WriteSSE(res, e); err != nil {
				log.Warn("http.extract.write_failed", "error", err)
				return nil
			}
			res.Flush()
			if e.Terminal() {
				log.Info("http.extract.done", "stage", string(e.Stage), "code", e.Code())
				return nil
			}

		case <-heartbeat:
			if err := events.WriteHeartbeat(res); err != nil {
				return nil
			}
			res.Flush()

		case <-c.Request().Context().Done():
			log.Info("http.extract.disconnect")
			return nil
		}
	}
}

func (s *Server) readDocument(c echo.Context) (pipeline.Document, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.MaxUploadBytes)

	ct := req.Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, constants.PDFContentType) || strings.HasPrefix(ct, echo.MIMEOctetStream) {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return pipeline.Document{}, uploadError(err)
		}
		if len(data) == 0 {
			return pipeline.Document{}, errInvalidArg("request body is empty")
		}
		name := c.QueryParam("name")
		if name == "" {
			name = defaultUploadName
		}
		return pipeline.Document{Name: filepath.Base(name), Data: data}, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			return pipeline.Document{}, uploadError(err)
		}
		return pipeline.Document{}, errInvalidArg(`expected a multipart "file" field or an application/pdf body`)
	}
	if ext := filepath.Ext(fh.Filename); ext != "" && !constants.IsAllowedExt(ext) {
		return pipeline.Document{}, errInvalidArg("only PDF files are accepted")
	}
	f, err := fh.Open()
	if err != nil {
		return pipeline.Document{}, uploadError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Document{}, uploadError(err)
	}
	name := filepath.Base(fh.Filename)
	if name == "." || name == "/" || name == "" {
		name = defaultUploadName
	}
	return pipeline.Document{Name: name, Data: data}, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func uploadError(err error) *echo.HTTPError {
	if isTooLarge(err) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	}
	return echo.NewHTTPError(http.StatusBadRequest, "could not read upload").SetInternal(err)
}
