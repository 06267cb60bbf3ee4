// Package protocol defines the wire messages exchanged between a
// controller and the agent over a single WebSocket connection: a
// discriminated JSON envelope keyed by "type", snake_case throughout,
// decoded permissively (unknown fields on inbound messages are ignored by
// virtue of decoding into named structs rather than strict-mode JSON).
package protocol

import "encoding/json"

// ProtocolVersion is the integer value the handshake header and register
// frame must agree on. Bumped only on a breaking wire change.
const ProtocolVersion = 1

// MaxFrameBytes is the hard cap on a single inbound frame. Oversized
// frames are logged and dropped without closing the connection.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Envelope is the minimal shape every inbound frame shares: enough to
// dispatch on Type before unmarshaling the rest into a concrete type.
type Envelope struct {
	Type string `json:"type"`
}

// TaskMessage is the inbound request to run one tool.
type TaskMessage struct {
	Type    string     `json:"type"`
	ID      string     `json:"id"`
	Payload TaskPayload `json:"payload"`
}

// TaskPayload names the tool and carries its arguments.
type TaskPayload struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// PingMessage is a liveness probe; the agent answers with Pong.
type PingMessage struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

// ConfigQueryMessage asks the agent to report its effective policy.
type ConfigQueryMessage struct {
	Type string `json:"type"`
}

// RegisterFrame is the first outbound frame on every accepted connection.
type RegisterFrame struct {
	Type            string   `json:"type"`
	Name            string   `json:"name"`
	Capabilities    []string `json:"capabilities"`
	ProtocolVersion int      `json:"protocol_version"`
}

// NewRegisterFrame builds the greeting frame for an agent named name,
// advertising the given enabled tool names as capabilities.
func NewRegisterFrame(name string, capabilities []string) RegisterFrame {
	return RegisterFrame{
		Type:            "register",
		Name:            name,
		Capabilities:    capabilities,
		ProtocolVersion: ProtocolVersion,
	}
}

// TaskProgressFrame notifies that a task has been accepted and dispatched,
// sent before the eventual TaskResultFrame for the same id.
type TaskProgressFrame struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Progress TaskProgressBody `json:"progress"`
}

// TaskProgressBody carries a human-readable status and optional percent.
type TaskProgressBody struct {
	Message string `json:"message"`
	Percent *int   `json:"percent,omitempty"`
}

// NewTaskProgressFrame builds the single progress notification a task
// emits before its result.
func NewTaskProgressFrame(id, message string) TaskProgressFrame {
	zero := 0
	return TaskProgressFrame{
		Type:     "task_progress",
		ID:       id,
		Progress: TaskProgressBody{Message: message, Percent: &zero},
	}
}

// TaskResultFrame is the terminal outbound frame for a task: exactly one is
// emitted per inbound task id, whether the task succeeded, failed, or hit
// the Busy/Timeout conditions.
type TaskResultFrame struct {
	Type   string     `json:"type"`
	ID     string     `json:"id"`
	Result ResultBody `json:"result"`
}

// ResultBody mirrors tools.Envelope on the wire.
type ResultBody struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// NewTaskResultFrame wraps a result body under id.
func NewTaskResultFrame(id string, result ResultBody) TaskResultFrame {
	return TaskResultFrame{Type: "task_result", ID: id, Result: result}
}

// PongFrame answers a ping with freshly sampled system stats.
type PongFrame struct {
	Type  string `json:"type"`
	Stats any    `json:"stats"`
}

// NewPongFrame wraps a stats snapshot (stats.Snapshot) into a pong frame.
func NewPongFrame(stats any) PongFrame {
	return PongFrame{Type: "pong", Stats: stats}
}

// ConfigReportFrame answers a config_query with the live policy snapshot.
type ConfigReportFrame struct {
	Type   string           `json:"type"`
	Devkit ConfigReportBody `json:"devkit"`
}

// ConfigReportBody is the policy snapshot itself.
type ConfigReportBody struct {
	SandboxDir        string   `json:"sandbox_dir"`
	ReadonlyMode      bool     `json:"readonly_mode"`
	EnabledCategories []string `json:"enabled_categories"`
}

// NewConfigReportFrame builds a config_report frame from the live policy.
func NewConfigReportFrame(sandboxDir string, readonly bool, categories []string) ConfigReportFrame {
	return ConfigReportFrame{
		Type: "config_report",
		Devkit: ConfigReportBody{
			SandboxDir:        sandboxDir,
			ReadonlyMode:      readonly,
			EnabledCategories: categories,
		},
	}
}

// DecodeType peeks at the type discriminator of a raw inbound frame without
// fully decoding it, so the caller can pick the concrete type to unmarshal
// into next.
func DecodeType(raw []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
