package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind only",
			err:  &Error{Kind: KindEngineBuild},
			want: "engine-build",
		},
		{
			name: "op path and cause",
			err:  DetectionIO("src/A.elm", errors.New("permission denied")),
			want: "detection: read source src/A.elm: permission denied",
		},
		{
			name: "op without path",
			err:  EngineDecode(errors.New("bad field")),
			want: "engine-decode: engine rejected request: bad field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("make: %w", ReconcileIO("write", "out/A.scala", fs.ErrPermission))

	assert.Equal(t, KindReconcileIO, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, fs.ErrPermission))
}

func TestIsKind_WalksNestedErrors(t *testing.T) {
	inner := HashStoreRead("morphir-hashes.json", errors.New("unexpected EOF"))
	outer := E(KindConfig, "load", "", inner)

	assert.True(t, IsKind(outer, KindConfig))
	assert.True(t, IsKind(outer, KindHashStoreRead))
	assert.False(t, IsKind(outer, KindEngineBuild))
	assert.False(t, IsKind(nil, KindConfig))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		verbose bool
		want    string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "missing manifest",
			err:  ManifestRead("proj/morphir.json", fs.ErrNotExist),
			want: "Could not find file at 'proj/morphir.json'",
		},
		{
			name: "engine build failure",
			err:  EngineBuild(errors.New("Type mismatch in Foo.bar")),
			want: "Build failed:\nType mismatch in Foo.bar",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "Error: boom",
		},
		{
			name:    "verbose keeps chain",
			err:     fmt.Errorf("make: %w", EngineDecode(errors.New("bad"))),
			verbose: true,
			want:    "Error: make: engine-decode: engine rejected request: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.err, tt.verbose))
		})
	}
}
