package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/reconcile"
	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// ErrClosed is returned when the engine connection is gone.
var ErrClosed = errors.New("engine connection closed")

// Client implements Engine over a newline-delimited JSON-RPC stream.
// Requests are serialized: one session is in flight at a time.
type Client struct {
	conn      io.ReadWriteCloser
	encoder   *json.Encoder
	encoderMu sync.Mutex
	progress  ProgressFunc
	logger    *slog.Logger

	callMu  sync.Mutex
	mu      sync.Mutex
	active  *session
	readErr error
	dropped atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ Engine = (*Client)(nil)

type outcome struct {
	value json.RawMessage
	err   error
}

type session struct {
	method    string
	terminals map[string]bool
	ch        chan outcome
}

// Option configures a Client.
type Option func(*Client)

// WithProgress sets the reportProgress callback. By default progress is
// logged at info level.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// NewClient starts a client on conn. The client owns conn from now on.
func NewClient(conn io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		logger:  log.Component("engine"),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.progress == nil {
		c.progress = func(message string) {
			c.logger.Info(message)
		}
	}

	go c.readLoop()
	return c
}

// SubmitFullBuild sends buildFromScratch and waits for the artifact.
func (c *Client) SubmitFullBuild(ctx context.Context, req FullBuildRequest) (*Artifact, error) {
	raw, err := c.submit(ctx, MethodBuildFromScratch, req,
		MethodDecodeFailed, MethodBuildFailed, MethodBuildCompleted)
	if err != nil {
		return nil, err
	}
	return &Artifact{Raw: raw}, nil
}

// SubmitIncrementalBuild sends buildIncrementally and waits for the artifact.
func (c *Client) SubmitIncrementalBuild(ctx context.Context, req IncrementalBuildRequest) (*Artifact, error) {
	raw, err := c.submit(ctx, MethodBuildIncrementally, req,
		MethodDecodeFailed, MethodBuildFailed, MethodBuildCompleted)
	if err != nil {
		return nil, err
	}
	return &Artifact{Raw: raw}, nil
}

// SubmitGenerate sends generate and waits for the generated files.
func (c *Client) SubmitGenerate(ctx context.Context, req GenerateRequest) ([]reconcile.GeneratedFile, error) {
	raw, err := c.submit(ctx, MethodGenerate, req,
		MethodJSONDecodeError, MethodGenerateResult)
	if err != nil {
		return nil, err
	}

	var files []reconcile.GeneratedFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, errs.E(errs.KindEngineIO, "decode generated files", "", err)
	}
	return files, nil
}

// Dropped returns how many inbound notifications were ignored because no
// session was waiting for them.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Close closes the connection and waits for the reader to stop.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
		<-c.done
	})
	return c.closeErr
}

// submit sends one request and blocks until the first terminal signal.
func (c *Client) submit(ctx context.Context, method string, params any, terminals ...string) (json.RawMessage, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	s := &session{
		method:    method,
		terminals: make(map[string]bool, len(terminals)),
		ch:        make(chan outcome, 1),
	}
	for _, t := range terminals {
		s.terminals[t] = true
	}

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return nil, err
	}
	c.active = s
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()
	}()

	notif, err := NewNotification(method, params)
	if err != nil {
		return nil, errs.E(errs.KindEngineIO, "encode "+method, "", err)
	}

	c.logger.Debug("sending request", "method", method, "bytes", len(notif.Params))

	c.encoderMu.Lock()
	err = c.encoder.Encode(notif)
	c.encoderMu.Unlock()
	if err != nil {
		return nil, errs.E(errs.KindEngineIO, "send "+method, "", err)
	}

	select {
	case out := <-s.ch:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			c.shutdown(err)
			return
		}
	}
}

func (c *Client) handleLine(line []byte) {
	var notif Notification
	if err := json.Unmarshal(line, &notif); err != nil || notif.Method == "" {
		c.logger.Warn("ignoring malformed message from engine", "error", err, "bytes", len(line))
		c.dropped.Add(1)
		return
	}
	c.dispatch(&notif)
}

func (c *Client) dispatch(notif *Notification) {
	if notif.Method == MethodReportProgress {
		c.mu.Lock()
		s := c.active
		c.mu.Unlock()
		if s == nil {
			c.drop(notif)
			return
		}
		c.progress(progressMessage(notif.Params))
		return
	}

	c.mu.Lock()
	s := c.active
	if s == nil || !s.terminals[notif.Method] {
		c.mu.Unlock()
		c.drop(notif)
		return
	}
	c.active = nil
	c.mu.Unlock()

	s.ch <- resolve(notif)
}

func (c *Client) drop(notif *Notification) {
	c.dropped.Add(1)
	log.Trace("dropping notification", "component", "engine", "method", notif.Method)
}

// shutdown records why the stream ended and fails any waiting session.
func (c *Client) shutdown(err error) {
	if !errors.Is(err, io.EOF) {
		c.logger.Debug("engine stream ended", "error", err)
	}
	closed := errs.E(errs.KindEngineIO, "read", "", ErrClosed)

	c.mu.Lock()
	c.readErr = closed
	s := c.active
	c.active = nil
	c.mu.Unlock()

	if s != nil {
		s.ch <- outcome{err: closed}
	}
}

// resolve turns a terminal notification into the session outcome.
func resolve(notif *Notification) outcome {
	switch notif.Method {
	case MethodDecodeFailed, MethodJSONDecodeError:
		return outcome{err: errs.EngineDecode(&Failure{Payload: notif.Params})}
	case MethodBuildFailed:
		return outcome{err: errs.EngineBuild(&Failure{Payload: notif.Params})}
	}

	failure, value, err := result(notif.Params)
	switch {
	case err != nil:
		return outcome{err: errs.E(errs.KindEngineIO, "read "+notif.Method, "", err)}
	case failure != nil:
		return outcome{err: errs.EngineBuild(&Failure{Payload: failure})}
	case isNull(value):
		return outcome{err: errs.E(errs.KindEngineIO, "read "+notif.Method, "", fmt.Errorf("engine returned no result"))}
	}
	return outcome{value: value}
}
