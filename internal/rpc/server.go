package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/mattjoyce/site2ts/internal/log"
)

// maxLineBytes bounds one request line.
const maxLineBytes = 16 * 1024 * 1024

// HandlerFunc serves one method. A returned *Error passes through to the
// caller unchanged; any other error is reported as internal.
type HandlerFunc func(params json.RawMessage) (map[string]any, error)

// LineWriter serializes line writes to a shared output. The front-end
// writes responses through it and the worker supervisor forwards
// progress notifications through the same writer, so the two never
// interleave mid-line.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteLine writes one line followed by a newline. The underlying writer
// is unbuffered, so each line is flushed to the caller immediately.
func (lw *LineWriter) WriteLine(line []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(line); err != nil {
		return err
	}
	_, err := lw.w.Write([]byte{'\n'})
	return err
}

// Server reads requests line by line and dispatches them one at a time.
// A request is fully served (parse, dispatch, respond) before the next
// line is read.
type Server struct {
	in       io.Reader
	out      *LineWriter
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewServer builds a Server over in/out with a fixed dispatch table.
func NewServer(in io.Reader, out *LineWriter, handlers map[string]HandlerFunc) *Server {
	return &Server{
		in:       in,
		out:      out,
		handlers: handlers,
		logger:   log.WithComponent("rpc"),
	}
}

// Run serves until the input is exhausted. It returns nil on EOF and an
// error only for an unrecoverable read failure; handler and worker
// errors are reported to the caller, never by ending the loop.
func (s *Server) Run() error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := s.serve(line)
		if err := s.writeResponse(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request line: %w", err)
	}
	s.logger.Info("input closed, shutting down")
	return nil
}

// serve handles one non-blank request line.
func (s *Server) serve(line string) Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		// Parse failures have no trustworthy id; it is forced to null.
		return Response{Err: NewError(CodeParse, "parse error: %v", err)}
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		return Response{
			Err: NewError(CodeMethodNotFound, "method not found: %q", req.Method),
			ID:  req.ID,
		}
	}

	s.logger.Debug("dispatching", "method", req.Method)
	result, err := handler(req.Params)
	if err != nil {
		return Response{Err: toError(err), ID: req.ID}
	}
	return Response{Result: result, ID: req.ID}
}

func (s *Server) writeResponse(resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		// Result contained something unmarshalable; degrade to internal.
		payload, err = json.Marshal(Response{Err: Internal(err), ID: resp.ID})
		if err != nil {
			return err
		}
	}
	return s.out.WriteLine(payload)
}

// toError maps a handler failure onto the wire error taxonomy.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return Internal(err)
}
