package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxStderr = 4 << 10
	checkPayload     = `{"check":"dependencies"}`
)

// ErrNoScript is returned when a run is requested without a configured script.
var ErrNoScript = errors.New("solver: no script configured")

// ExitError reports a solver process that terminated unsuccessfully.
type ExitError struct {
	Script string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("solver %s exited with code %d", e.Script, e.Code)
	}
	return fmt.Sprintf("solver %s exited with code %d: %s", e.Script, e.Code, e.Stderr)
}

// Config configures a ProcessSolver.
type Config struct {
	// Command is the interpreter or executable, e.g. python3.
	Command string
	// Args are passed before the script path.
	Args        []string
	Script      string
	CheckScript string
	// Env is appended to the current process environment.
	Env       []string
	Dir       string
	MaxStderr int
	// WaitDelay bounds how long output pipes are drained after the context is cancelled.
	WaitDelay time.Duration
	Logger    *zap.Logger
}

// ProcessSolver runs an external program and exchanges JSON over argv/stdin and stdout.
type ProcessSolver struct {
	command     string
	args        []string
	script      string
	checkScript string
	env         []string
	dir         string
	maxStderr   int
	waitDelay   time.Duration
	logger      *zap.Logger
}

// NewProcessSolver constructs a solver runner applying defaults.
func NewProcessSolver(cfg Config) *ProcessSolver {
	if cfg.Command == "" {
		cfg.Command = "python3"
	}
	if cfg.MaxStderr <= 0 {
		cfg.MaxStderr = defaultMaxStderr
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ProcessSolver{
		command:     cfg.Command,
		args:        append([]string(nil), cfg.Args...),
		script:      cfg.Script,
		checkScript: cfg.CheckScript,
		env:         append([]string(nil), cfg.Env...),
		dir:         cfg.Dir,
		maxStderr:   cfg.MaxStderr,
		waitDelay:   cfg.WaitDelay,
		logger:      cfg.Logger,
	}
}

// Run executes the solver script with payload and returns its stdout.
func (p *ProcessSolver) Run(ctx context.Context, payload []byte) ([]byte, error) {
	if p.script == "" {
		return nil, ErrNoScript
	}
	return p.exec(ctx, p.script, payload)
}

// Check runs the environment checker and returns its raw answer.
func (p *ProcessSolver) Check(ctx context.Context) ([]byte, error) {
	script := p.checkScript
	if script == "" {
		script = p.script
	}
	if script == "" {
		return nil, ErrNoScript
	}
	return p.exec(ctx, script, []byte(checkPayload))
}

func (p *ProcessSolver) exec(ctx context.Context, script string, payload []byte) ([]byte, error) {
	args := make([]string, 0, len(p.args)+2)
	args = append(args, p.args...)
	args = append(args, script, string(payload))

	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Dir = p.dir
	cmd.WaitDelay = p.waitDelay
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	errOutput := truncate(strings.TrimSpace(stderr.String()), p.maxStderr)
	if errOutput != "" {
		p.logger.Warn("solver stderr", zap.String("script", script), zap.String("stderr", errOutput))
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("solver %s: %w", script, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Script: script, Code: exitErr.ExitCode(), Stderr: errOutput}
		}
		return nil, fmt.Errorf("solver %s: %w", script, err)
	}

	p.logger.Debug("solver process finished", zap.String("script", script), zap.Duration("duration", elapsed), zap.Int("stdout_bytes", stdout.Len()))

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return []byte("{}"), nil
	}
	return out, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
