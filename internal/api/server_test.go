package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asyncd/asyncd/internal/task"
)

func setupTestServer(t *testing.T) (*Server, *task.Executor) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	exec := task.NewExecutor(task.ExecutorConfig{
		MaxWorkers:      2,
		QueueSize:       10,
		KeepAlive:       time.Second,
		ResultRetention: time.Minute,
	}, logger)
	t.Cleanup(func() { exec.Shutdown(true) })

	srv := NewServer(":0", exec, logger)
	srv.RegisterJob("echo", func(ctx context.Context, payload []byte) (any, error) {
		var req struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return req.Message, nil
	})
	srv.RegisterJob("fail", func(ctx context.Context, payload []byte) (any, error) {
		return nil, fmt.Errorf("job always fails")
	})
	srv.RegisterJob("block", func(ctx context.Context, payload []byte) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	return srv, exec
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func submitJob(t *testing.T, srv *Server, body any) string {
	t.Helper()

	rec := doRequest(t, srv, http.MethodPost, "/v1/tasks", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp submitTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func pollUntilDone(t *testing.T, srv *Server, id string) taskStatusResponse {
	t.Helper()

	var status taskStatusResponse
	require.Eventually(t, func() bool {
		rec := doRequest(t, srv, http.MethodGet, "/v1/tasks/"+id, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State != string(task.StateQueued) && status.State != string(task.StateRunning)
	}, 2*time.Second, 10*time.Millisecond, "task %s never completed", id)
	return status
}

func TestSubmitAndPollTask(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := submitJob(t, srv, map[string]any{
		"kind":    "echo",
		"payload": map[string]string{"message": "hello"},
	})

	status := pollUntilDone(t, srv, id)
	assert.Equal(t, string(task.StateDone), status.State)
	assert.Equal(t, "hello", status.Result)
	assert.NotNil(t, status.CompletedAt)
	assert.Empty(t, status.Error)
}

func TestSubmitWithPrefix(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := submitJob(t, srv, map[string]any{
		"kind":    "echo",
		"payload": map[string]string{"message": "hi"},
		"prefix":  "job",
	})
	assert.Equal(t, "job-1", id)
}

func TestSubmitValidation(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/v1/tasks", map[string]any{
		"payload": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/v1/tasks", map[string]any{
		"kind": "no-such-kind",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewBufferString("{not json"))
	recorder := httptest.NewRecorder()
	srv.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestFailedJobSurfacesError(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := submitJob(t, srv, map[string]any{"kind": "fail"})

	status := pollUntilDone(t, srv, id)
	assert.Equal(t, string(task.StateFailed), status.State)
	assert.Contains(t, status.Error, "job always fails")
	assert.Nil(t, status.Result)
}

func TestGetUnknownTask(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/v1/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasks(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := submitJob(t, srv, map[string]any{
		"kind":    "echo",
		"payload": map[string]string{"message": "x"},
	})

	rec := doRequest(t, srv, http.MethodGet, "/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listTasksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.IDs, id)
}

func TestInterruptRunningTask(t *testing.T) {
	srv, _ := setupTestServer(t)

	id := submitJob(t, srv, map[string]any{"kind": "block"})

	// Wait for the task to actually start.
	require.Eventually(t, func() bool {
		rec := doRequest(t, srv, http.MethodGet, "/v1/tasks/"+id, nil)
		var status taskStatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.State == string(task.StateRunning)
	}, 2*time.Second, 10*time.Millisecond)

	rec := doRequest(t, srv, http.MethodDelete, "/v1/tasks/"+id+"?interrupt=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelResp cancelTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelResp))
	assert.True(t, cancelResp.Cancelled)

	status := pollUntilDone(t, srv, id)
	assert.Equal(t, string(task.StateInterrupted), status.State)
}

func TestSubmitAfterShutdown(t *testing.T) {
	srv, exec := setupTestServer(t)

	exec.Shutdown(false)

	rec := doRequest(t, srv, http.MethodPost, "/v1/tasks", map[string]any{
		"kind":    "echo",
		"payload": map[string]string{"message": "late"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, exec := setupTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	exec.Shutdown(false)

	rec = doRequest(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "asyncd_tasks_submitted_total")
}
