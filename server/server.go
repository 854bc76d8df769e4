// Package server exposes the checkpoint store over HTTP so a day can be
// reviewed, and its prompt prepared, before anything is posted.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mrcrgl/diariesai/checkpoint"
	"github.com/mrcrgl/diariesai/pipeline"
)

// Workflow is the part of the pipeline the server drives.
type Workflow interface {
	Prepare(date, prompt string) (bool, error)
	Status(date string) ([]pipeline.StageStatus, error)
}

type Server struct {
	store   checkpoint.Reader
	flow    Workflow
	mu      sync.Mutex // serializes prepare requests
	verbose bool
	logger  *log.Logger
}

func New(store checkpoint.Reader, flow Workflow, verbose bool, logger *log.Logger) (*Server, error) {
	if store == nil || flow == nil {
		return nil, errors.New("checkpoint store and workflow required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{store: store, flow: flow, verbose: verbose, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/days/{date}", s.handleDay)
	mux.HandleFunc("GET /api/days/{date}/image", s.handleImage)
	mux.HandleFunc("POST /api/days/{date}/prompt", s.handlePrepare)
	return s.logMiddleware(mux)
}

// --- Handlers ---

type stageResp struct {
	Stage    string   `json:"stage"`
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing,omitempty"`
}

type dayResp struct {
	Date        string      `json:"date"`
	Prompt      string      `json:"prompt,omitempty"`
	Post        string      `json:"post,omitempty"`
	ImagePrompt string      `json:"image_prompt,omitempty"`
	PostID      string      `json:"post_id,omitempty"`
	Stages      []stageResp `json:"stages"`
}

type prepareReq struct {
	Prompt string `json:"prompt"`
}

type prepareResp struct {
	Saved bool `json:"saved"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if err := checkpoint.ValidateDate(date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stages, err := s.flow.Status(date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := dayResp{Date: date}
	for _, st := range stages {
		sr := stageResp{Stage: st.Stage.String(), Complete: st.Complete}
		for _, k := range st.Missing {
			sr.Missing = append(sr.Missing, string(k))
		}
		resp.Stages = append(resp.Stages, sr)
	}
	texts := []struct {
		kind checkpoint.Kind
		dst  *string
	}{
		{checkpoint.InputPrompt, &resp.Prompt},
		{checkpoint.GeneratedPost, &resp.Post},
		{checkpoint.ImagePrompt, &resp.ImagePrompt},
		{checkpoint.PublishMarker, &resp.PostID},
	}
	for _, t := range texts {
		data, err := s.store.Read(date, t.kind)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		*t.dst = string(data)
	}
	writeJSON(w, resp)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if err := checkpoint.ValidateDate(date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.store.Read(date, checkpoint.GeneratedImage)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "image not generated", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if err := checkpoint.ValidateDate(date); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req prepareReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	saved, err := s.flow.Prepare(date, req.Prompt)
	s.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !saved {
		w.WriteHeader(http.StatusConflict)
	}
	writeJSON(w, prepareResp{Saved: saved})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.verbose {
			s.logger.Printf("[INFO] [server] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
		}
	})
}
