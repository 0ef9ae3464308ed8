package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Solver proposes a candidate schedule for a normalized request.
type Solver interface {
	Solve(ctx context.Context, input models.SolverInput) (*models.SolverOutput, error)
}

// SolverHealthChecker reports whether the solver environment can run.
type SolverHealthChecker interface {
	Check(ctx context.Context) (models.SolverHealth, error)
}

type processRunner interface {
	Run(ctx context.Context, payload []byte) ([]byte, error)
	Check(ctx context.Context) ([]byte, error)
}

// ProcessSolverClient speaks JSON to an external solver process.
type ProcessSolverClient struct {
	runner processRunner
}

// NewProcessSolverClient wraps a process runner such as *solver.ProcessSolver.
func NewProcessSolverClient(runner processRunner) *ProcessSolverClient {
	return &ProcessSolverClient{runner: runner}
}

// Solve encodes the input, runs the solver and decodes its stdout.
func (c *ProcessSolverClient) Solve(ctx context.Context, input models.SolverInput) (*models.SolverOutput, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode solver input: %w", err)
	}
	raw, err := c.runner.Run(ctx, payload)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Schedule json.RawMessage `json:"schedule"`
		Stats    map[string]any  `json:"stats"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode solver output: %w", err)
	}
	out := &models.SolverOutput{Stats: envelope.Stats}
	trimmed := bytes.TrimSpace(envelope.Schedule)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	var schedule models.Schedule
	if err := json.Unmarshal(trimmed, &schedule); err != nil {
		return nil, &models.ScheduleValidationError{Reason: "undecodable schedule: " + err.Error()}
	}
	out.Schedule = &schedule
	return out, nil
}

// Check runs the environment checker.
func (c *ProcessSolverClient) Check(ctx context.Context) (models.SolverHealth, error) {
	raw, err := c.runner.Check(ctx)
	if err != nil {
		return models.SolverHealth{}, err
	}
	var health models.SolverHealth
	if err := json.Unmarshal(raw, &health); err != nil {
		return models.SolverHealth{}, fmt.Errorf("decode solver health: %w", err)
	}
	return health, nil
}

// StaticHealth always reports the configured answer. It stands in when health checks are disabled.
type StaticHealth struct {
	Health models.SolverHealth
	Err    error
}

// Check implements SolverHealthChecker.
func (s StaticHealth) Check(context.Context) (models.SolverHealth, error) {
	return s.Health, s.Err
}
