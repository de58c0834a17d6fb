package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel, format string) (*FlowLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: level, Format: format, Output: &buf})
	return l, &buf
}

func TestFlowLoggerEmitsKeyValueAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo, "text")

	l.Info("workflow started", "workflowId", "wf1", "input_length", 42)

	out := buf.String()
	assert.Contains(t, out, `msg="workflow started"`)
	assert.Contains(t, out, "workflowId=wf1")
	assert.Contains(t, out, "input_length=42")
	assert.NotContains(t, out, "EXTRA")
}

func TestFlowLoggerJSONAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo, "json")

	l.Info("node finished", "nodeId", "n1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "node finished", entry["msg"])
	assert.Equal(t, "n1", entry["nodeId"])
}

func TestFlowLoggerLevelFilter(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn, "text")

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("visible", "reason", "turn order")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "reason")
}

func TestFlowLoggerContextAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo, "text")

	l.WithComponent("engine").WithWorkflow("wf1", "n1").Info("executing", "attempt", 1)

	out := buf.String()
	assert.Contains(t, out, "component=engine")
	assert.Contains(t, out, "workflow_id=wf1")
	assert.Contains(t, out, "node_id=n1")
	assert.Contains(t, out, "attempt=1")
}

func TestFlowLoggerDanglingKey(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo, "text")

	l.Info("odd arguments", "orphan")

	assert.Contains(t, buf.String(), "!BADKEY=orphan")
}

func TestLogModelCallFailure(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo, "text")

	l.LogModelCall("gpt-4o", 120, 80*time.Millisecond, false, errors.New("rate limited"))

	out := buf.String()
	assert.Contains(t, out, "Model call failed")
	assert.Contains(t, out, "model=gpt-4o")
	assert.Contains(t, out, `error="rate limited"`)
}
