package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asyncd/asyncd/internal/task"
)

const maxBodySize = 1 << 20 // 1 MiB

type submitTaskRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Prefix  string          `json:"prefix,omitempty"`
}

type submitTaskResponse struct {
	ID string `json:"id"`
}

type taskStatusResponse struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type listTasksResponse struct {
	IDs []string `json:"ids"`
}

type cancelTaskResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "kind is required")
		return
	}
	handler, ok := s.jobs[req.Kind]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown job kind")
		return
	}

	payload := []byte(req.Payload)
	call := func(ctx context.Context) (any, error) {
		return handler(ctx, payload)
	}

	var (
		id  string
		err error
	)
	if req.Prefix != "" {
		id, err = s.exec.SubmitPrefix(call, req.Prefix)
	} else {
		id, err = s.exec.Submit(call)
	}
	if err != nil {
		switch {
		case errors.Is(err, task.ErrShutdown):
			s.writeError(w, http.StatusServiceUnavailable, "executor is shut down")
		case errors.Is(err, task.ErrQueueFull):
			s.writeError(w, http.StatusServiceUnavailable, "pending queue is full, try again later")
		default:
			s.logger.Error("submit task", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitTaskResponse{ID: id})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.exec.Get(id)
	if t == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	resp := taskStatusResponse{
		ID:    t.ID(),
		State: string(t.State()),
	}
	if t.IsDone() {
		at := t.CompletedAt()
		resp.CompletedAt = &at
		// The task is terminal, so this never blocks.
		result, err := t.Get(r.Context())
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		// State may have settled between the two reads.
		resp.State = string(t.State())
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ids := s.exec.Keys()
	s.writeJSON(w, http.StatusOK, listTasksResponse{IDs: ids})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := s.exec.Get(id)
	if t == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	mayInterrupt := r.URL.Query().Get("interrupt") == "true"
	cancelled := t.Cancel(mayInterrupt)
	s.writeJSON(w, http.StatusOK, cancelTaskResponse{Cancelled: cancelled})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.exec.IsShutdown() {
		status = "shutting down"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": status})
}
