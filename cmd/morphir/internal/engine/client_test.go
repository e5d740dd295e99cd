package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/internal/errs"
)

// peer is the engine side of an in-process pipe.
type peer struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newPair(t *testing.T, opts ...Option) (*Client, *peer) {
	t.Helper()
	clientConn, engineConn := net.Pipe()
	c := NewClient(clientConn, opts...)
	t.Cleanup(func() {
		_ = engineConn.Close()
		_ = c.Close()
	})
	return c, &peer{conn: engineConn, reader: bufio.NewReader(engineConn)}
}

// receive reads the next request from the client.
func (p *peer) receive() (*Notification, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	var notif Notification
	if err := json.Unmarshal(line, &notif); err != nil {
		return nil, err
	}
	return &notif, nil
}

// send writes a notification to the client.
func (p *peer) send(method string, params any) error {
	notif, err := NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	_, err = p.conn.Write(append(data, '\n'))
	return err
}

func (p *peer) sendRaw(line string) error {
	_, err := p.conn.Write([]byte(line + "\n"))
	return err
}

// script runs fn as the engine in the background and returns its error channel.
func script(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

func TestClient_FullBuild(t *testing.T) {
	var (
		mu       sync.Mutex
		progress []string
	)
	c, p := newPair(t, WithProgress(func(msg string) {
		mu.Lock()
		progress = append(progress, msg)
		mu.Unlock()
	}))

	var got *Notification
	done := script(func() error {
		var err error
		if got, err = p.receive(); err != nil {
			return err
		}
		for _, msg := range []string{"Parsing files", "Resolving", "Type checking"} {
			if err := p.send(MethodReportProgress, msg); err != nil {
				return err
			}
		}
		return p.send(MethodBuildCompleted, []any{nil, map[string]any{"formatVersion": 2}})
	})

	artifact, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{
		Options:      BuildOptions{TypesOnly: true},
		PackageInfo:  json.RawMessage(`{"name":"My.Package"}`),
		FileSnapshot: map[changes.Path]string{"src/Main.elm": "module Main"},
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.JSONEq(t, `{"formatVersion":2}`, string(artifact.Raw))

	assert.Equal(t, JSONRPCVersion, got.JSONRPC)
	assert.Equal(t, MethodBuildFromScratch, got.Method)
	assert.JSONEq(t, `{
		"options": {"typesOnly": true},
		"packageInfo": {"name": "My.Package"},
		"fileSnapshot": {"src/Main.elm": "module Main"}
	}`, string(got.Params))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Parsing files", "Resolving", "Type checking"}, progress)
}

func TestClient_IncrementalBuild(t *testing.T) {
	c, p := newPair(t)

	var got *Notification
	done := script(func() error {
		var err error
		if got, err = p.receive(); err != nil {
			return err
		}
		return p.send(MethodBuildCompleted, []any{nil, map[string]any{"v": 2}})
	})

	artifact, err := c.SubmitIncrementalBuild(context.Background(), IncrementalBuildRequest{
		PackageInfo: json.RawMessage(`{"name":"P"}`),
		FileChanges: changes.ChangeSet{
			"a.elm": changes.Update{Content: []byte("x2"), Hash: "2222222222222222", Previous: "1111111111111111"},
			"b.elm": changes.Delete{Previous: "3333333333333333"},
		},
		Distribution: &Artifact{Raw: json.RawMessage(`{"v":1}`)},
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	assert.JSONEq(t, `{"v":2}`, string(artifact.Raw))
	assert.Equal(t, MethodBuildIncrementally, got.Method)
	assert.JSONEq(t, `{
		"options": {"typesOnly": false},
		"packageInfo": {"name": "P"},
		"fileChanges": {
			"a.elm": {"kind": "Update", "content": "x2", "hash": "2222222222222222", "previousHash": "1111111111111111"},
			"b.elm": {"kind": "Delete", "previousHash": "3333333333333333"}
		},
		"distribution": {"v": 1}
	}`, string(got.Params))
}

func TestClient_Generate(t *testing.T) {
	c, p := newPair(t)

	var got *Notification
	done := script(func() error {
		var err error
		if got, err = p.receive(); err != nil {
			return err
		}
		return p.sendRaw(`{"jsonrpc":"2.0","method":"generateResult","params":[null,[[[["morphir"],"A.scala"],"object A"]]]}`)
	})

	files, err := c.SubmitGenerate(context.Background(), GenerateRequest{
		Options: GenerateOptions{LimitToModules: []string{"A", "B"}},
		IR:      &Artifact{Raw: json.RawMessage(`{"ir":true}`)},
	})
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Len(t, files, 1)
	assert.Equal(t, []string{"morphir"}, files[0].Dir)
	assert.Equal(t, "A.scala", files[0].Name)
	assert.Equal(t, "object A", string(files[0].Content))

	assert.Equal(t, MethodGenerate, got.Method)
	assert.JSONEq(t, `[{"limitToModules":["A","B"]},{"ir":true}]`, string(got.Params))
}

func TestClient_BuildCompletedWithError(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		return p.send(MethodBuildCompleted, []any{"Module Main not found", nil})
	})

	_, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindEngineBuild))
	assert.Contains(t, err.Error(), "Module Main not found")
}

func TestClient_DecodeFailed(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		return p.send(MethodDecodeFailed, "Expecting an OBJECT with a field named `options`")
	})

	_, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)
	assert.True(t, errs.IsKind(err, errs.KindEngineDecode), "error = %v", err)
}

func TestClient_JSONDecodeErrorResolvesGenerate(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		return p.send(MethodJSONDecodeError, "bad IR")
	})

	_, err := c.SubmitGenerate(context.Background(), GenerateRequest{IR: &Artifact{Raw: json.RawMessage(`{}`)}})
	require.NoError(t, <-done)
	assert.True(t, errs.IsKind(err, errs.KindEngineDecode), "error = %v", err)
}

func TestClient_FirstTerminalSignalWins(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		if err := p.send(MethodBuildFailed, "type error in Main"); err != nil {
			return err
		}
		if err := p.send(MethodBuildCompleted, []any{nil, map[string]any{}}); err != nil {
			return err
		}
		return p.send(MethodReportProgress, "late progress")
	})

	artifact, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)

	assert.Nil(t, artifact)
	assert.True(t, errs.IsKind(err, errs.KindEngineBuild), "error = %v", err)
	assert.Eventually(t, func() bool { return c.Dropped() == 2 }, time.Second, 10*time.Millisecond)
}

func TestClient_IgnoresSignalsForOtherRequestKinds(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		if err := p.send(MethodBuildCompleted, []any{nil, map[string]any{}}); err != nil {
			return err
		}
		return p.send(MethodGenerateResult, []any{nil, []any{}})
	})

	files, err := c.SubmitGenerate(context.Background(), GenerateRequest{IR: &Artifact{Raw: json.RawMessage(`{}`)}})
	require.NoError(t, <-done)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, int64(1), c.Dropped())
}

func TestClient_SkipsMalformedLines(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		if err := p.sendRaw(`this is not json`); err != nil {
			return err
		}
		return p.send(MethodBuildCompleted, []any{nil, map[string]any{"ok": true}})
	})

	artifact, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(artifact.Raw))
}

func TestClient_NullResultIsAnError(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		return p.send(MethodBuildCompleted, []any{nil, nil})
	})

	_, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)
	assert.True(t, errs.IsKind(err, errs.KindEngineIO), "error = %v", err)
}

func TestClient_EngineDisconnects(t *testing.T) {
	c, p := newPair(t)

	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		return p.conn.Close()
	})

	_, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, <-done)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	assert.ErrorIs(t, err, ErrClosed, "requests after disconnect fail immediately")
}

func TestClient_ContextCancelled(t *testing.T) {
	c, p := newPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := script(func() error {
		if _, err := p.receive(); err != nil {
			return err
		}
		cancel()
		return nil
	})

	_, err := c.SubmitFullBuild(ctx, FullBuildRequest{})
	require.NoError(t, <-done)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_CloseMultiple(t *testing.T) {
	c, _ := newPair(t)

	assert.NoError(t, c.Close())
	assert.NotPanics(t, func() { _ = c.Close() })
}

func TestDial_NotRunning(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "me")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	_, err = Dial(context.Background(), filepath.Join(dir, "engine.sock"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning), "error = %v", err)
}

func TestDial(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "me")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "engine.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		p := &peer{conn: conn, reader: bufio.NewReader(conn)}
		if _, err := p.receive(); err != nil {
			return
		}
		_ = p.send(MethodBuildCompleted, []any{nil, map[string]any{"socket": true}})
	}()

	c, err := Dial(context.Background(), socketPath)
	require.NoError(t, err)
	defer c.Close()

	artifact, err := c.SubmitFullBuild(context.Background(), FullBuildRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"socket":true}`, string(artifact.Raw))
}
