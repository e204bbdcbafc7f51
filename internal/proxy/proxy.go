// Package proxy wraps a stdio-speaking child process and records every line
// of traffic to a JSONL file. It exists for debugging agent transports: the
// orchestrator can be pointed at the proxy instead of the real tool binary
// and the full exchange is kept on disk.
package proxy

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Traffic directions recorded in the log.
const (
	DirClientToServer = "client_to_server"
	DirServerToClient = "server_to_client"
	DirServerStderr   = "server_stderr"
	DirLifecycle      = "lifecycle"
)

// Record is one JSONL traffic log entry.
type Record struct {
	Seq        int64    `json:"seq"`
	TS         string   `json:"ts"`
	Direction  string   `json:"direction"`
	Event      string   `json:"event,omitempty"`
	Command    []string `json:"command,omitempty"`
	Bytes      int      `json:"bytes,omitempty"`
	Data       string   `json:"data,omitempty"`
	ReturnCode *int     `json:"returncode,omitempty"`
}

// TrafficLogger appends records to a JSONL file, stamping sequence numbers.
type TrafficLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	seq  int64
}

// NewTrafficLogger opens (or creates) the traffic log at path.
func NewTrafficLogger(path string) (*TrafficLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating traffic log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening traffic log: %w", err)
	}
	return &TrafficLogger{file: f, enc: json.NewEncoder(f)}, nil
}

// Log writes one record, assigning its sequence number.
func (l *TrafficLogger) Log(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec.Seq = l.seq
	return l.enc.Encode(rec)
}

// Close closes the underlying file.
func (l *TrafficLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func utcTimestamp() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// TrafficLogPath returns the log path for a named proxy inside dir.
func TrafficLogPath(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_traffic.jsonl", name))
}

// Proxy runs a child command, piping stdin/stdout/stderr through while
// logging every line.
type Proxy struct {
	Command []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer

	logger *TrafficLogger
}

// New builds a proxy for command, logging to <dir>/<name>_traffic.jsonl.
// Stdin/Stdout/Stderr default to the process's own streams.
func New(logDir, name string, command []string) (*Proxy, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("proxy: expected a command to run")
	}
	logger, err := NewTrafficLogger(TrafficLogPath(logDir, name))
	if err != nil {
		return nil, err
	}
	return &Proxy{
		Command: command,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		logger:  logger,
	}, nil
}

// Run starts the child and pipes traffic until it exits. It returns the
// child's exit code.
func (p *Proxy) Run() (int, error) {
	defer p.logger.Close() //nolint:errcheck

	if err := p.logger.Log(Record{
		TS:        utcTimestamp(),
		Direction: DirLifecycle,
		Event:     "start",
		Command:   p.Command,
	}); err != nil {
		return -1, err
	}

	//nolint:gosec // the proxied command comes from the operator's own CLI invocation
	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	childStdin, err := cmd.StdinPipe()
	if err != nil {
		return -1, err
	}
	childStdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}
	childStderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, err
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("starting %s: %w", p.Command[0], err)
	}

	// Stdin runs outside the group: reading the caller's stdin cannot be
	// interrupted, so it must not block the child's exit.
	go func() {
		defer childStdin.Close() //nolint:errcheck
		p.pipeLines(p.Stdin, childStdin, DirClientToServer)
	}()

	var g errgroup.Group
	g.Go(func() error {
		p.pipeLines(childStdout, p.Stdout, DirServerToClient)
		return nil
	})
	g.Go(func() error {
		p.pipeLines(childStderr, p.Stderr, DirServerStderr)
		return nil
	})

	_ = g.Wait() //nolint:errcheck // pipe copiers report nothing fatal

	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, err
		}
		code = exitErr.ExitCode()
	}

	if err := p.logger.Log(Record{
		TS:         utcTimestamp(),
		Direction:  DirLifecycle,
		Event:      "exit",
		ReturnCode: &code,
	}); err != nil {
		return code, err
	}
	return code, nil
}

// pipeLines copies src to dst line by line, logging each line. Copy errors
// end the pipe quietly: a closed peer is the normal shutdown path.
func (p *Proxy) pipeLines(src io.Reader, dst io.Writer, direction string) {
	reader := bufio.NewReader(src)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			rec := Record{
				TS:        utcTimestamp(),
				Direction: direction,
				Bytes:     len(line),
				Data:      strings.TrimRight(string(line), "\n"),
			}
			if logErr := p.logger.Log(rec); logErr != nil {
				return
			}
			if _, writeErr := dst.Write(line); writeErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
