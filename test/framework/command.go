package framework

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// RunResult captures one finished CLI invocation
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run invokes the shoal binary once and waits for it to finish.
// stdin may be empty.
func (f *Fixture) Run(t *testing.T, stdin string, args ...string) RunResult {
	t.Helper()

	cmd := exec.Command(f.Binary, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Failed to run %s %s: %v", f.Binary, strings.Join(args, " "), err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	t.Logf("shoal %s -> exit %d", strings.Join(args, " "), result.ExitCode)
	return result
}

// Process manages a long-running shoal invocation, such as watch mode,
// with captured logs and SIGTERM shutdown
type Process struct {
	cmd  *exec.Cmd
	logs *LogBuffer
	done chan error
	mu   sync.Mutex
}

// StartProcess launches the shoal binary in the background
func (f *Fixture) StartProcess(t *testing.T, args ...string) *Process {
	t.Helper()

	p := &Process{
		cmd:  exec.Command(f.Binary, args...),
		logs: &LogBuffer{},
		done: make(chan error, 1),
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("Failed to create stdout pipe: %v", err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		t.Fatalf("Failed to create stderr pipe: %v", err)
	}

	if err := p.cmd.Start(); err != nil {
		t.Fatalf("Failed to start %s %s: %v", f.Binary, strings.Join(args, " "), err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go p.capture(&wg, stdout)
	go p.capture(&wg, stderr)
	go func() {
		wg.Wait()
		p.done <- p.cmd.Wait()
	}()

	t.Cleanup(func() { _ = p.Kill() })
	return p
}

// Stop sends SIGTERM and waits for a clean exit
func (p *Process) Stop() error {
	p.mu.Lock()
	if p.cmd.Process == nil {
		p.mu.Unlock()
		return fmt.Errorf("process not running")
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}
	p.mu.Unlock()

	select {
	case err := <-p.done:
		return err
	case <-time.After(10 * time.Second):
		_ = p.Kill()
		return fmt.Errorf("process did not exit after SIGTERM")
	}
}

// Kill force-stops the process
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Logs returns everything the process has written so far
func (p *Process) Logs() string {
	return p.logs.String()
}

// WaitForLog blocks until the output contains pattern
func (p *Process) WaitForLog(pattern string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.logs.Contains(pattern) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for log pattern: %s", pattern)
}

func (p *Process) capture(wg *sync.WaitGroup, reader io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		p.logs.Append(scanner.Text())
	}
}

// LogBuffer is a thread-safe line buffer
type LogBuffer struct {
	mu    sync.RWMutex
	lines []string
}

// Append adds one line
func (lb *LogBuffer) Append(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.lines = append(lb.lines, line)
}

// String joins all captured lines
func (lb *LogBuffer) String() string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return strings.Join(lb.lines, "\n")
}

// Contains reports whether any line contains pattern
func (lb *LogBuffer) Contains(pattern string) bool {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	for _, line := range lb.lines {
		if strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}
