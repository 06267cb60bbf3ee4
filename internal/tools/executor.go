package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Envelope is the wire-level outcome of a tool invocation: {success, data,
// error?, duration_ms}. Every call to Execute produces exactly one of
// these, regardless of whether the underlying handler failed, timed out, or
// was never found.
type Envelope struct {
	Success    bool
	Data       any
	Error      string
	DurationMs int64
}

// Executor is the single path through which tasks reach a tool. It looks
// the tool up by name, validates arguments against its descriptors, invokes
// the handler under the effective timeout, and normalizes every outcome —
// success, handled failure, timeout, or panic — into an Envelope.
type Executor struct {
	tools  map[string]Tool
	logger *slog.Logger
	audit  AuditRecorder
}

// AuditRecorder persists one row per tool invocation. Implemented by
// internal/audit.Store; kept as an interface here so this package never
// imports the audit package, only the shape it needs. A nil AuditRecorder
// (the default) means invocations are logged but not persisted.
type AuditRecorder interface {
	Record(ctx context.Context, toolName string, args map[string]any, success bool, errMsg string, durationMs int64, remoteAddr string)
}

// NewExecutor binds an executor to a built tool set (the output of
// Registry.Build) and a logger for per-invocation log lines.
func NewExecutor(tools map[string]Tool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{tools: tools, logger: logger}
}

// SetAudit attaches a persisted audit trail. Optional: the executor works
// identically without one, just without the durable record.
func (e *Executor) SetAudit(a AuditRecorder) {
	e.audit = a
}

// Execute runs toolName with args under ctx, enforcing ctx.Timeout (or the
// caller's tighter timeoutOverride, whichever is smaller — per §5,
// min(arg.timeout_ms, ctx.timeout_ms)). remoteAddr is carried through only
// for the log line and the audit record.
func (e *Executor) Execute(ctx Context, toolName string, args map[string]any, timeoutOverride time.Duration, remoteAddr string) Envelope {
	tool, exists := e.tools[toolName]
	if !exists {
		env := Envelope{Success: false, Error: fmt.Sprintf("%v: %q", ErrUnknownTool, toolName)}
		logInvocation(e.logger, toolName, remoteAddr, Result{Success: false, Error: env.Error}, 0)
		return env
	}

	if err := validateArgs(tool.Args, args); err != nil {
		env := Envelope{Success: false, Error: err.Error()}
		logInvocation(e.logger, toolName, remoteAddr, Result{Success: false, Error: env.Error}, 0)
		return env
	}

	timeout := ctx.Timeout
	if timeoutOverride > 0 && timeoutOverride < timeout {
		timeout = timeoutOverride
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx.Context, timeout)
	defer cancel()

	callCtx := ctx
	callCtx.Context = runCtx

	resultCh := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- execOutcome{err: fmt.Errorf("panic in tool %q: %v", toolName, r)}
			}
		}()
		result, err := tool.Handler(callCtx, args)
		resultCh <- execOutcome{result: result, err: err}
	}()

	var env Envelope
	select {
	case <-runCtx.Done():
		env = Envelope{Success: false, Error: fmt.Sprintf("%v after %s", ErrTimeout, timeout), DurationMs: timeout.Milliseconds()}
	case outcome := <-resultCh:
		duration := time.Since(start)
		switch {
		case outcome.err != nil:
			env = Envelope{Success: false, Error: outcome.err.Error(), DurationMs: duration.Milliseconds()}
		case !outcome.result.Success:
			env = Envelope{Success: false, Error: outcome.result.Error, DurationMs: duration.Milliseconds()}
		default:
			env = Envelope{Success: true, Data: outcome.result.Data, DurationMs: duration.Milliseconds()}
		}
	}

	logInvocation(e.logger, toolName, remoteAddr, Result{Success: env.Success, Error: env.Error}, time.Duration(env.DurationMs)*time.Millisecond)
	if e.audit != nil {
		e.audit.Record(context.Background(), toolName, args, env.Success, env.Error, env.DurationMs, remoteAddr)
	}
	return env
}

// ToolNames returns the names of every tool currently registered.
func (e *Executor) ToolNames() []string {
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// execOutcome carries a handler's result through the timeout select.
type execOutcome struct {
	result Result
	err    error
}

// validateArgs checks args against descriptors: required arguments must be
// present and of the declared type; missing optional arguments receive
// their declared default. Extra keys not named by any descriptor are
// ignored — task payloads may carry fields a given tool doesn't use.
func validateArgs(descriptors []ArgDescriptor, args map[string]any) error {
	for _, d := range descriptors {
		val, present := args[d.Name]
		if !present || val == nil {
			if d.Required {
				return fmt.Errorf("%w: missing required argument %q", ErrBadArguments, d.Name)
			}
			if d.Default != nil {
				args[d.Name] = d.Default
			}
			continue
		}
		if err := checkArgType(d, val); err != nil {
			return err
		}
	}
	return nil
}

func checkArgType(d ArgDescriptor, val any) error {
	var ok bool
	switch d.Type {
	case ArgString:
		_, ok = val.(string)
	case ArgInt:
		switch val.(type) {
		case int, int64, float64:
			ok = true
		}
	case ArgBool:
		_, ok = val.(bool)
	case ArgStringSlice:
		switch v := val.(type) {
		case []string:
			ok = true
		case []any:
			ok = true
			for _, item := range v {
				if _, isStr := item.(string); !isStr {
					ok = false
					break
				}
			}
		}
	case ArgObject:
		_, ok = val.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("%w: argument %q has wrong type", ErrBadArguments, d.Name)
	}
	return nil
}
