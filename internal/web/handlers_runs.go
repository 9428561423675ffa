package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/boqimport/internal/core"
	"github.com/JonMunkholm/boqimport/internal/export"
	"github.com/JonMunkholm/boqimport/internal/web/templates"
)

func withUploadTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// handleRunProgress streams run progress via Server-Sent Events.
// The event id is the progress percentage; a reconnecting client passes the
// last one back as ?lastEventId (or the Last-Event-ID header) to skip events
// it has already seen.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.runs.Subscribe(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: the run has finished.
				fmt.Fprintf(w, "event: complete\ndata: {\"run_id\":%q}\n\n", runID)
				rc.Flush()
				return
			}

			// Skip events already delivered before a reconnect. Terminal
			// phases are always sent.
			terminal := progress.Phase == core.PhaseComplete || progress.Phase == core.PhaseFailed
			if progress.Percent <= lastEventID && !terminal {
				continue
			}
			lastEventID = progress.Percent

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percent, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// finishedResult looks up a run's result. It writes the response and
// returns false when the run is unknown or still in progress.
func (s *Server) finishedResult(w http.ResponseWriter, r *http.Request) (string, core.ParseResult, bool) {
	runID := chi.URLParam(r, "runID")
	result, done, err := s.runs.Result(runID)
	if err != nil {
		s.respondError(w, r, err)
		return runID, core.ParseResult{}, false
	}
	if !done {
		progress, _ := s.runs.Progress(runID)
		msg := core.MapError(core.ErrRunInProgress)
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    msg.Message,
			"action":   msg.Action,
			"code":     msg.Code,
			"progress": progress,
		})
		return runID, core.ParseResult{}, false
	}
	return runID, result, true
}

// handleRunResult returns the ParseResult of a finished run as JSON.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRunReport renders the run report as HTML, or plain text with ?format=text.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID, result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(core.TextReport(result)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Report(runID, result).Render(r.Context(), w); err != nil {
		s.respondError(w, r, fmt.Errorf("render report: %w", err))
	}
}

// handleErrorsXLSX downloads the error report workbook.
func (s *Server) handleErrorsXLSX(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	data, err := export.ErrorReportXLSX(result)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		downloadName(result, "errors", "xlsx"))
	w.Write(data)
}

// handleErrorsCSV downloads errors and warnings as CSV.
func (s *Server) handleErrorsCSV(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteErrorReportCSV(&buf, result); err != nil {
		s.respondError(w, r, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", downloadName(result, "errors", "csv"))
	w.Write(buf.Bytes())
}

// handleItemsArrow downloads the items as an Arrow IPC stream.
func (s *Server) handleItemsArrow(w http.ResponseWriter, r *http.Request) {
	_, result, ok := s.finishedResult(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteItemsArrow(&buf, result, export.DefaultBatchSize); err != nil {
		s.respondError(w, r, err)
		return
	}
	attachment(w, "application/vnd.apache.arrow.stream", downloadName(result, "items", "arrow"))
	w.Write(buf.Bytes())
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
}

// downloadName derives "<file stem>_<suffix>.<ext>" from the uploaded file name.
func downloadName(r core.ParseResult, suffix, ext string) string {
	stem := strings.TrimSuffix(path.Base(r.Metadata.FileName), path.Ext(r.Metadata.FileName))
	stem = strings.Map(func(c rune) rune {
		if c == '"' || c == '\\' || c < 0x20 {
			return '_'
		}
		return c
	}, stem)
	if stem == "" || stem == "." {
		stem = "boq"
	}
	return stem + "_" + suffix + "." + ext
}
