package webui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go_upscaler/db"
	"go_upscaler/logging"
	"go_upscaler/metrics"
	"go_upscaler/upscaler"
	"go_upscaler/vision"
)

// errorResponse is the body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

// UpscaleResponse is returned by POST /api/upscale?format=json.
type UpscaleResponse struct {
	RunID        string `json:"run_id"`
	Model        string `json:"model"`
	Scale        int    `json:"scale"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Tiles        int    `json:"tiles"`
	DurationMS   int64  `json:"duration_ms"`
	Image        string `json:"image"`
	ImageDataURI string `json:"image_data_uri"`
}

// HistoryResponse is returned by GET /api/history.
type HistoryResponse struct {
	Runs   []db.UpscaleRun     `json:"runs"`
	Counts map[db.Status]int64 `json:"counts"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Clients int            `json:"clients"`
	Model   ModelStateData `json:"model"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, runID string) {
	writeJSON(w, status, errorResponse{Error: err.Error(), RunID: runID})
}

// statusFor maps upscale errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upscaler.ErrInvalidInput),
		errors.Is(err, upscaler.ErrInvalidChannels),
		errors.Is(err, upscaler.ErrInvalidTensorRank),
		errors.Is(err, upscaler.ErrInvalidOptions),
		errors.Is(err, vision.ErrInvalidImage),
		errors.Is(err, vision.ErrEmptyImage),
		errors.Is(err, vision.ErrInvalidDimensions):
		return http.StatusBadRequest
	case errors.Is(err, upscaler.ErrInvalidImageSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, upscaler.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, upscaler.ErrModelLoad),
		errors.Is(err, upscaler.ErrWarmup),
		errors.Is(err, upscaler.ErrDisposed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// upscaleRequest is the JSON body form of POST /api/upscale.
type upscaleRequest struct {
	URL   string `json:"url"`
	Image string `json:"image"`
}

// readInput accepts a multipart "image" file, a JSON body with a URL or a
// base64 image, or raw image bytes. source describes the input for history.
func (s *Server) readInput(r *http.Request) (in upscaler.Input, source string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return upscaler.Input{}, "", fmt.Errorf("%w: %w", upscaler.ErrInvalidInput, err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return upscaler.Input{}, "", fmt.Errorf("%w: form field \"image\": %w", upscaler.ErrInvalidInput, err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return upscaler.Input{}, "", err
		}
		return upscaler.BytesInput(data), "upload:" + header.Filename, nil

	case "application/json":
		var req upscaleRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return upscaler.Input{}, "", fmt.Errorf("%w: %w", upscaler.ErrInvalidInput, err)
		}
		switch {
		case req.URL != "" && req.Image != "":
			return upscaler.Input{}, "", fmt.Errorf("%w: set either url or image, not both", upscaler.ErrInvalidInput)
		case req.URL != "":
			// Only remote sources; a path here would read the server's disk.
			if !vision.IsURL(req.URL) {
				return upscaler.Input{}, "", fmt.Errorf("%w: url must be http or https", upscaler.ErrInvalidInput)
			}
			return upscaler.PathInput(req.URL), logging.RedactURL(req.URL), nil
		case req.Image != "":
			b64 := req.Image
			if _, after, ok := strings.Cut(b64, ";base64,"); ok {
				b64 = after
			}
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return upscaler.Input{}, "", fmt.Errorf("%w: image is not base64: %w", upscaler.ErrInvalidInput, err)
			}
			return upscaler.BytesInput(data), "base64", nil
		default:
			return upscaler.Input{}, "", fmt.Errorf("%w: body needs url or image", upscaler.ErrInvalidInput)
		}

	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return upscaler.Input{}, "", err
		}
		if len(data) == 0 {
			return upscaler.Input{}, "", fmt.Errorf("%w: empty body", upscaler.ErrInvalidInput)
		}
		return upscaler.BytesInput(data), "body", nil
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", upscaler.ErrInvalidOptions, key, v)
	}
	return n, nil
}

func (s *Server) handleUpscale(w http.ResponseWriter, r *http.Request) {
	runID := uuid.New()
	id := runID.String()
	logger := s.logger.With(zap.String("run_id", id))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "json" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: format must be png or json", upscaler.ErrInvalidOptions), id)
		return
	}
	patchSize, err := queryInt(r, "patch_size", s.cfg.PatchSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, id)
		return
	}
	padding, err := queryInt(r, "padding", s.cfg.Padding)
	if err != nil {
		writeError(w, http.StatusBadRequest, err, id)
		return
	}
	preview := r.URL.Query().Get("preview") == "true"

	in, source, err := s.readInput(r)
	if err != nil {
		writeError(w, statusFor(err), err, id)
		return
	}

	s.publish(NewWSMessage(MessageTypeRunStarted, RunStartedData{
		RunID: id, Source: source, PatchSize: patchSize, Padding: padding,
	}))

	opts := upscaler.UpscaleOptions{
		Output:    upscaler.OutputBase64,
		PatchSize: patchSize,
		Padding:   padding,
		Progress: func(p upscaler.Progress) {
			if p.Tensor != nil {
				p.Tensor.Dispose()
			}
			s.publish(NewWSMessage(MessageTypeProgress, ProgressData{
				RunID: id, Percent: p.Percent,
				Row: p.Row, Col: p.Col, Rows: p.Rows, Cols: p.Cols,
				Preview: p.Base64,
			}))
		},
		ProgressOutput: upscaler.OutputTensor,
	}
	if preview {
		opts.ProgressOutput = upscaler.OutputBase64
	}

	start := time.Now()
	res, err := s.deps.Engine.Upscale(r.Context(), in, opts)
	if err != nil {
		status := db.StatusFailed
		if errors.Is(err, upscaler.ErrCancelled) {
			status = db.StatusCancelled
		}
		logger.Warn("upscale failed", zap.String("source", source), zap.Error(err))
		s.finishRun(runID, source, status, upscaler.Stats{PatchSize: patchSize, Padding: padding, Duration: time.Since(start)}, err)
		writeError(w, statusFor(err), err, id)
		return
	}

	stats := res.Stats()
	s.finishRun(runID, source, db.StatusCompleted, stats, nil)

	w.Header().Set("X-Run-ID", id)
	w.Header().Set("X-Upscale-Duration-Ms", strconv.FormatInt(stats.Duration.Milliseconds(), 10))

	if format == "json" {
		writeJSON(w, http.StatusOK, UpscaleResponse{
			RunID:        id,
			Model:        stats.Model,
			Scale:        stats.Scale,
			Width:        stats.OutputWidth,
			Height:       stats.OutputHeight,
			Tiles:        stats.Tiles,
			DurationMS:   stats.Duration.Milliseconds(),
			Image:        res.Base64(),
			ImageDataURI: vision.DataURI(res.Base64()),
		})
		return
	}

	png, err := base64.StdEncoding.DecodeString(res.Base64())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, id)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// finishRun announces the end of a run and queues its history record.
func (s *Server) finishRun(id uuid.UUID, source string, status db.Status, stats upscaler.Stats, runErr error) {
	data := RunFinishedData{
		RunID:        id.String(),
		Status:       string(status),
		OutputWidth:  stats.OutputWidth,
		OutputHeight: stats.OutputHeight,
		Tiles:        stats.Tiles,
		DurationMS:   stats.Duration.Milliseconds(),
	}
	msgType := MessageTypeRunCompleted
	if runErr != nil {
		data.Error = runErr.Error()
		msgType = MessageTypeRunFailed
	}
	s.publish(NewWSMessage(msgType, data))

	model := stats.Model
	if model == "" {
		model = s.modelState(context.Background()).Name
	}
	s.deps.Metrics.RecordRun(metrics.RunRecord{
		Model:        model,
		Status:       string(status),
		Duration:     stats.Duration,
		Tiles:        stats.Tiles,
		OutputPixels: int64(stats.OutputWidth) * int64(stats.OutputHeight),
	})

	if s.recorder == nil {
		return
	}
	run := db.UpscaleRun{
		ID:           id,
		Model:        model,
		Scale:        stats.Scale,
		Source:       source,
		Status:       status,
		InputWidth:   stats.InputWidth,
		InputHeight:  stats.InputHeight,
		OutputWidth:  stats.OutputWidth,
		OutputHeight: stats.OutputHeight,
		PatchSize:    stats.PatchSize,
		Padding:      stats.Padding,
		Tiles:        stats.Tiles,
		DurationMS:   stats.Duration.Milliseconds(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if !s.recorder.Write(run) {
		s.logger.Warn("history queue full, run not recorded", zap.Stringer("run_id", id))
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.deps.Engine.Abort()
	s.logger.Info("abort requested", zap.String("client", r.RemoteAddr))
	s.publish(NewWSMessage(MessageTypeAborted, nil))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "aborted"})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modelState(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, errors.New("history is disabled"), "")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"), "")
		return
	}
	var status db.Status
	if v := r.URL.Query().Get("status"); v != "" {
		if status, err = db.ParseStatus(v); err != nil {
			writeError(w, http.StatusBadRequest, err, "")
			return
		}
	}

	runs, err := s.deps.History.RecentUpscaleRuns(r.Context(), limit, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	counts, err := s.deps.History.CountUpscaleRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, "")
		return
	}
	if runs == nil {
		runs = []db.UpscaleRun{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Runs: runs, Counts: counts})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	model := s.modelState(r.Context())
	resp := HealthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Clients: s.broadcaster.ClientCount(),
		Model:   model,
	}
	code := http.StatusOK
	switch s.deps.Engine.State() {
	case upscaler.StateLoading, upscaler.StateWarming:
		resp.Status = "starting"
	case upscaler.StateFailed, upscaler.StateDisposed:
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
