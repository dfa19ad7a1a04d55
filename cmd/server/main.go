// Command server runs the task-execution service with its HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/asyncd/asyncd/internal/api"
	"github.com/asyncd/asyncd/internal/config"
	"github.com/asyncd/asyncd/internal/platform/logger"
	"github.com/asyncd/asyncd/internal/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_workers", cfg.Executor.MaxWorkers,
		"queue_size", cfg.Executor.QueueSize,
		"keep_alive", cfg.Executor.KeepAlive,
		"result_retention", cfg.Executor.ResultRetention)

	exec := task.NewExecutor(task.ExecutorConfig{
		MaxWorkers:      cfg.Executor.MaxWorkers,
		QueueSize:       cfg.Executor.QueueSize,
		KeepAlive:       cfg.Executor.KeepAlive,
		ResultRetention: cfg.Executor.ResultRetention,
	}, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := api.NewServer(addr, exec, log)
	registerJobs(srv)

	return srv.Run()
}

// registerJobs wires the built-in job kinds. Applications embedding the
// executor register their own handlers here instead.
func registerJobs(srv *api.Server) {
	srv.RegisterJob("sleep", func(ctx context.Context, payload []byte) (any, error) {
		var req struct {
			Duration string `json:"duration"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid sleep payload: %w", err)
		}
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid sleep duration: %w", err)
		}
		select {
		case <-time.After(d):
			return fmt.Sprintf("slept %s", d), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	srv.RegisterJob("sum", func(ctx context.Context, payload []byte) (any, error) {
		var req struct {
			Values []float64 `json:"values"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid sum payload: %w", err)
		}
		var total float64
		for _, v := range req.Values {
			total += v
		}
		return total, nil
	})
}
