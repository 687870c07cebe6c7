// Package worker supervises the one external worker subprocess. The
// worker performs the actual browser automation, analysis, and code
// generation; this side only frames requests, demultiplexes replies
// from progress notifications, and propagates errors.
package worker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/site2ts/internal/log"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// terminationGracePeriod is the time we wait after closing the worker's
// stdin before killing it on shutdown.
const terminationGracePeriod = 5 * time.Second

// Caller is the seam stage handlers call through. The supervisor is the
// production implementation; tests substitute fakes.
type Caller interface {
	Call(method string, params any) (map[string]any, error)
}

// Supervisor owns exactly one worker connection for the process's
// lifetime. The worker is spawned on first use; a spawn or pipe failure
// poisons the handle and every later call fails until the process is
// restarted externally. There is deliberately no respawn.
type Supervisor struct {
	command []string
	sink    *rpc.LineWriter
	logger  *slog.Logger

	// mu is the single-slot lock: at most one call is in flight, because
	// replies are correlated by arrival order, not by echoed id.
	mu      sync.Mutex
	started bool
	broken  error
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
}

// New builds a Supervisor that will launch command on first call.
// Progress notifications from the worker are forwarded verbatim to sink.
func New(command []string, sink *rpc.LineWriter) *Supervisor {
	return &Supervisor{
		command: command,
		sink:    sink,
		logger:  log.WithComponent("supervisor"),
	}
}

// workerReply is one line read back from the worker. A line carrying
// method=="progress" is a notification, not a reply.
type workerReply struct {
	Method string         `json:"method"`
	Result map[string]any `json:"result"`
	Error  *rpc.Error     `json:"error"`
}

// Call sends one request line to the worker and reads until its reply
// arrives, forwarding any progress notifications seen along the way.
// Worker-reported errors pass through with their code/message/data
// unchanged; infrastructure failures surface as internal errors.
func (s *Supervisor) Call(method string, params any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(); err != nil {
		return nil, rpc.Internal(err)
	}

	req := map[string]any{
		"jsonrpc": rpc.Version,
		"method":  method,
		"params":  params,
		"id":      uuid.NewString(),
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, rpc.Internal(fmt.Errorf("encode worker request: %w", err))
	}
	line = append(line, '\n')

	if _, err := s.stdin.Write(line); err != nil {
		s.broken = fmt.Errorf("worker stdin closed: %w", err)
		return nil, rpc.Internal(s.broken)
	}

	for {
		raw, err := s.stdout.ReadString('\n')
		if err != nil {
			s.broken = fmt.Errorf("worker stdout closed: %w", err)
			return nil, rpc.Internal(s.broken)
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		var reply workerReply
		if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
			return nil, rpc.Internal(fmt.Errorf("malformed worker reply: %w", err))
		}

		if reply.Method == "progress" {
			// Live progress for the external observer; keep reading.
			if err := s.sink.WriteLine([]byte(trimmed)); err != nil {
				s.logger.Warn("failed to forward progress", "error", err)
			}
			continue
		}

		if reply.Error != nil {
			return nil, reply.Error
		}
		if reply.Result == nil {
			return map[string]any{}, nil
		}
		return reply.Result, nil
	}
}

// ensureStarted spawns the worker on first use. Must hold mu.
func (s *Supervisor) ensureStarted() error {
	if s.broken != nil {
		return s.broken
	}
	if s.started {
		return nil
	}
	s.started = true

	if len(s.command) == 0 {
		s.broken = fmt.Errorf("worker command is empty")
		return s.broken
	}

	cmd := exec.Command(s.command[0], s.command[1:]...)
	cmd.Stderr = os.Stderr // diagnostics passthrough

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.broken = fmt.Errorf("create worker stdin pipe: %w", err)
		return s.broken
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.broken = fmt.Errorf("create worker stdout pipe: %w", err)
		return s.broken
	}

	if err := cmd.Start(); err != nil {
		s.broken = fmt.Errorf("spawn worker: %w", err)
		return s.broken
	}

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	s.logger.Info("worker started", "command", strings.Join(s.command, " "), "pid", cmd.Process.Pid)
	return nil
}

// Close shuts the worker down: stdin is closed so it can exit on its
// own, then it is killed after a grace period.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}
	_ = s.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(terminationGracePeriod):
		s.logger.Warn("worker did not exit, killing")
		_ = s.cmd.Process.Kill()
		<-done
	}

	s.cmd = nil
	s.broken = fmt.Errorf("worker shut down")
	return nil
}
