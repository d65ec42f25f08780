// Package agent checks for and launches the mesh VPN agent.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"

	"localcloud/pkg/config"
)

// SecretFunc asks the operator for the administrator password.
type SecretFunc func(ctx context.Context) (string, error)

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// StartFunc starts cmd without waiting for it.
type StartFunc func(cmd *exec.Cmd) error

// LaunchError is returned when the agent process could not be spawned.
type LaunchError struct {
	Agent string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("could not start %s: %v", e.Agent, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// IsElevated reports whether this process runs as root.
func IsElevated() bool { return os.Geteuid() == 0 }

// Supervisor detects and starts the agent. It never stops it.
type Supervisor struct {
	agentPath  string
	agentName  string
	configPath string
	logPath    string
	goos       string

	elevated func() bool
	output   OutputFunc
	start    StartFunc
	logger   hclog.Logger
}

// NewSupervisor builds a Supervisor for cfg's agent and identity directories.
func NewSupervisor(cfg config.Config, logger hclog.Logger) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Supervisor{
		agentPath:  cfg.AgentPath(),
		agentName:  cfg.AgentName(),
		configPath: cfg.MeshConfigPath(),
		logPath:    cfg.AgentLog,
		goos:       runtime.GOOS,
		elevated:   IsElevated,
		output:     output,
		start:      startDetached,
		logger:     logger.Named("agent"),
	}
}

// WithElevation replaces the root check.
func (s *Supervisor) WithElevation(fn func() bool) *Supervisor {
	s.elevated = fn
	return s
}

// WithOutput replaces how the process list is read.
func (s *Supervisor) WithOutput(fn OutputFunc) *Supervisor {
	s.output = fn
	return s
}

// WithStart replaces how the agent process is spawned.
func (s *Supervisor) WithStart(fn StartFunc) *Supervisor {
	s.start = fn
	return s
}

// WithOS overrides the platform used to pick the process listing flags.
func (s *Supervisor) WithOS(goos string) *Supervisor {
	s.goos = goos
	return s
}

// IsRunning reports whether a process named like the agent executable exists.
// A failing process listing counts as not running.
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	args := []string{"-ax", "-o", "comm="}
	if s.goos == "linux" {
		args = []string{"-e", "-o", "comm="}
	}
	out, err := s.output(ctx, "ps", args...)
	if err != nil {
		s.logger.Debug("process listing failed", "error", err)
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		if filepath.Base(name) == s.agentName {
			return true
		}
	}
	return false
}

// EnsureStarted spawns the agent detached from this process. Without root it
// goes through sudo, feeding the password from secret on stdin. It does not
// wait for the agent to come up.
func (s *Supervisor) EnsureStarted(ctx context.Context, secret SecretFunc) error {
	args := []string{s.agentPath, "-config", s.configPath}
	var cmd *exec.Cmd
	if s.elevated() {
		cmd = exec.Command(args[0], args[1:]...)
	} else {
		if secret == nil {
			return &LaunchError{Agent: s.agentName, Err: errors.New("administrator password required")}
		}
		pw, err := secret(ctx)
		if err != nil {
			return &LaunchError{Agent: s.agentName, Err: err}
		}
		cmd = exec.Command("sudo", append([]string{"-S", "-p", ""}, args...)...)
		cmd.Stdin = strings.NewReader(pw + "\n")
	}
	detach(cmd)

	logFile, err := openLog(s.logPath)
	if err != nil {
		s.logger.Warn("agent log unavailable, discarding agent output", "path", s.logPath, "error", err)
	} else {
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	s.logger.Info("starting agent", "path", s.agentPath, "config", s.configPath, "sudo", !s.elevated())
	if err := s.start(cmd); err != nil {
		return &LaunchError{Agent: s.agentName, Err: err}
	}
	return nil
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("no agent log configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %v failed: %w", name, args, err)
	}
	return out, nil
}
