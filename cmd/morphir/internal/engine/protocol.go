// Package engine talks to the external compilation engine.
//
// The engine speaks JSON-RPC 2.0 notifications, one JSON object per line, in
// both directions. A request is sent as a notification on one of the
// outbound methods; the engine answers with zero or more reportProgress
// notifications followed by a terminal notification.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
)

// JSON-RPC 2.0 version string.
const JSONRPCVersion = "2.0"

// Outbound methods.
const (
	MethodBuildFromScratch   = "buildFromScratch"
	MethodBuildIncrementally = "buildIncrementally"
	MethodGenerate           = "generate"
)

// Inbound methods.
const (
	MethodDecodeFailed    = "decodeFailed"
	MethodBuildFailed     = "buildFailed"
	MethodReportProgress  = "reportProgress"
	MethodBuildCompleted  = "buildCompleted"
	MethodGenerateResult  = "generateResult"
	MethodJSONDecodeError = "jsonDecodeError"
)

// Notification represents a JSON-RPC 2.0 notification (no ID, no response expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC notification.
func NewNotification(method string, params any) (*Notification, error) {
	notif := &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		notif.Params = data
	}

	return notif, nil
}

// Artifact is the compiled IR. It is opaque to everything but the engine.
type Artifact struct {
	Raw json.RawMessage
}

func (a *Artifact) MarshalJSON() ([]byte, error) {
	if a == nil || len(a.Raw) == 0 {
		return []byte("null"), nil
	}
	return a.Raw, nil
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// BuildOptions are passed through to the engine on every build.
type BuildOptions struct {
	TypesOnly bool `json:"typesOnly"`
}

// FullBuildRequest asks the engine to compile a complete file snapshot.
type FullBuildRequest struct {
	Options      BuildOptions            `json:"options"`
	PackageInfo  json.RawMessage         `json:"packageInfo"`
	FileSnapshot map[changes.Path]string `json:"fileSnapshot"`
}

// IncrementalBuildRequest asks the engine to apply file changes to a
// previously built distribution.
type IncrementalBuildRequest struct {
	Options      BuildOptions      `json:"options"`
	PackageInfo  json.RawMessage   `json:"packageInfo"`
	FileChanges  changes.ChangeSet `json:"fileChanges"`
	Distribution *Artifact         `json:"distribution"`
}

// GenerateOptions narrow code generation.
type GenerateOptions struct {
	LimitToModules []string `json:"limitToModules,omitempty"`
}

// GenerateRequest asks the engine to generate code from an IR.
// It is sent as the tuple [options, ir].
type GenerateRequest struct {
	Options GenerateOptions
	IR      *Artifact
}

func (r GenerateRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Options, r.IR})
}

func (r *GenerateRequest) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("generate request: expected [options, ir], got %d elements", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &r.Options); err != nil {
		return fmt.Errorf("generate options: %w", err)
	}
	r.IR = &Artifact{}
	return r.IR.UnmarshalJSON(tuple[1])
}

// result splits an [error|null, value|null] terminal payload.
func result(params json.RawMessage) (failure, value json.RawMessage, err error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(params, &tuple); err != nil {
		return nil, nil, fmt.Errorf("malformed result: %w", err)
	}
	if len(tuple) != 2 {
		return nil, nil, fmt.Errorf("malformed result: expected [error, value], got %d elements", len(tuple))
	}
	if !isNull(tuple[0]) {
		return tuple[0], nil, nil
	}
	return nil, tuple[1], nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Failure is an error payload reported by the engine.
type Failure struct {
	Payload json.RawMessage
}

func (f *Failure) Error() string {
	var s string
	if err := json.Unmarshal(f.Payload, &s); err == nil {
		return s
	}
	return string(f.Payload)
}

// progressMessage renders a reportProgress payload for display.
func progressMessage(params json.RawMessage) string {
	var s string
	if err := json.Unmarshal(params, &s); err == nil {
		return s
	}
	return string(params)
}
