package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/boqimport/internal/core"
	"github.com/JonMunkholm/boqimport/internal/logging"
)

// multipartOverhead is allowed on top of the file size limit for the other
// form fields and part headers.
const multipartOverhead = 1 << 20

// upload is a parsed upload form.
type upload struct {
	input core.FileInput
	cfg   core.ParseConfig
}

// handleParse starts a background run and returns its id.
// The file is read into memory because the run outlives the request.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := core.ContextWithLogger(r.Context(), logging.FromContext(r.Context()))
	runID, err := s.runs.Start(ctx, up.input, core.WithConfig(up.cfg))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForRun(r.Context(), runID, up.input.Name).Info("run started", "size", up.input.Size)
	w.Header().Set("Location", "/api/runs/"+runID+"/result")
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleParseSync parses within the request and returns the ParseResult.
// It shares the limiter with background runs. A rejected or invalid file is
// still a 200: the outcome is in the result body.
func (s *Server) handleParseSync(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	limiter := s.runs.Limiter()
	if err := limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer limiter.Release()

	ctx, cancel := withUploadTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()
	ctx = core.ContextWithLogger(ctx, logging.ForRun(r.Context(), "", up.input.Name))

	result := s.pipeline.ParseAuto(ctx, up.input, core.WithConfig(up.cfg))
	writeJSON(w, http.StatusOK, result)
}

// previewResponse is the body of a preview request.
type previewResponse struct {
	Preview  *core.Preview      `json:"preview"`
	Profiles []core.HeaderMatch `json:"profiles,omitempty"`
}

// handlePreview analyzes an upload without starting a run and suggests the
// parse profiles whose column labels match its header.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	samples := core.DefaultPreviewSamples
	if v := r.FormValue("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			s.respondError(w, r, badRequest("samples must be between 1 and 100"))
			return
		}
		samples = n
	}

	limiter := s.runs.Limiter()
	if err := limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer limiter.Release()

	ctx := core.ContextWithLogger(r.Context(), logging.FromContext(r.Context()))
	preview, err := s.pipeline.Preview(ctx, up.input, samples, core.WithConfig(up.cfg))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := previewResponse{Preview: preview}
	if s.cfg.Parse.ProfileDir != "" {
		matches, err := s.cfg.Parse.MatchProfiles(preview.Header)
		if err != nil {
			logging.FromContext(r.Context()).Warn("profile matching failed", "error", err)
		}
		resp.Profiles = matches
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload reads the multipart form: the file plus optional settings.
// The body is capped by the service-wide size limit before anything is read;
// a profile or form field can only lower it.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	bodyLimit := s.pipeline.Configuration().MaxFileSize
	if bodyLimit <= 0 {
		bodyLimit = core.DefaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit+multipartOverhead)

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, fmt.Errorf("upload exceeds %d bytes: %w", bodyLimit, core.ErrFileTooLarge)
		}
		return upload{}, badRequest("invalid multipart form")
	}

	cfg, err := s.uploadConfig(r)
	if err != nil {
		return upload{}, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, fmt.Errorf("field \"file\": %w", core.ErrNoFile)
	}
	defer file.Close()

	if limit := min(bodyLimit, cfg.MaxFileSize); limit > 0 && header.Size > limit {
		return upload{}, fmt.Errorf("%s is %d bytes: %w", header.Filename, header.Size, core.ErrFileTooLarge)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}

	return upload{
		input: core.NewBytesInput(header.Filename, header.Header.Get("Content-Type"), data),
		cfg:   cfg,
	}, nil
}

// uploadConfig builds the run configuration: the pipeline's current
// configuration, then the named profile, then individual form fields.
func (s *Server) uploadConfig(r *http.Request) (core.ParseConfig, error) {
	cfg := s.pipeline.Configuration()

	if name := strings.TrimSpace(r.FormValue("profile")); name != "" {
		profile, err := s.cfg.Parse.LoadNamedProfile(name)
		if err != nil {
			return cfg, err
		}
		cfg = profile.Apply(cfg)
	}

	var partial core.PartialConfig
	if v := r.FormValue("strict"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, badRequest("strict must be true or false")
		}
		partial.StrictValidation = &b
	}
	if v := r.FormValue("locale"); v != "" {
		loc := core.ParseLocale(v)
		partial.Locale = &loc
	}
	if v := r.FormValue("header_row"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, badRequest("header_row must be a non-negative integer")
		}
		partial.HeaderRow = &n
	}
	if v := r.FormValue("skip_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, badRequest("skip_rows must be a non-negative integer")
		}
		partial.RowsToSkipAfterHeader = &n
	}
	if v := r.FormValue("columns"); v != "" {
		var columns map[string]string
		if err := json.Unmarshal([]byte(v), &columns); err != nil {
			return cfg, badRequest("columns must be a JSON object of column label to field")
		}
		for label, field := range columns {
			if field != "" && !core.IsTargetField(field) {
				return cfg, badRequest("columns: %q maps to unknown field %q", label, field)
			}
		}
		partial.ColumnOverrides = columns
	}

	return partial.Apply(cfg), nil
}
