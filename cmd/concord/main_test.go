package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/metrics"
	"github.com/fyrsmithlabs/concord/internal/task"
)

const testConfig = `
logging:
  output:
    stream: none
executors:
  - id: analyst
    capabilities:
      - name: analysis
        cost: 2
        reliability: 0.9
    template: "Analysis of {{.Description}} with a practical plan"
    confidence: 0.9
  - id: writer
    capabilities:
      - name: writing
        cost: 1
        reliability: 0.8
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(&globalFlags{configPath: writeConfig(t, testConfig), logLevel: "debug"})
	require.NoError(t, err)

	require.Len(t, cfg.Executors, 2)
	assert.Equal(t, "analyst", cfg.Executors[0].ID)
	assert.Equal(t, []executor.Capability{{Name: "analysis", Cost: 2, Reliability: 0.9}}, cfg.Executors[0].Capabilities)
	assert.Equal(t, "debug", cfg.Logging.Level.String())
	assert.Equal(t, "none", cfg.Logging.Output.Stream)
	assert.Equal(t, 0.7, cfg.Policy.Thresholds.Exploitation, "sections keep defaults")
}

func TestLoadConfig_DefaultExecutors(t *testing.T) {
	cfg, err := loadConfig(&globalFlags{configPath: writeConfig(t, "logging:\n  format: console\n")})
	require.NoError(t, err)

	assert.Equal(t, DefaultExecutors(), cfg.Executors)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfig_BadLogLevel(t *testing.T) {
	_, err := loadConfig(&globalFlags{configPath: writeConfig(t, testConfig), logLevel: "loud"})
	assert.Error(t, err)
}

func TestTemplatePerformer(t *testing.T) {
	p, err := NewTemplatePerformer(ExecutorSpec{ID: "analyst"})
	require.NoError(t, err)

	tk := task.MustNew(task.Spec{ID: "t1", Description: "Check the logs", Priority: 5}).WithGuidance("Avoid certainty")
	res, err := p.Perform(context.Background(), tk)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Contains(t, res.Output, "[analyst]")
	assert.Contains(t, res.Output, "(guidance: Avoid certainty)")
	assert.Equal(t, task.Plain{}, res.Extension)
}

func TestTemplatePerformer_Collaborate(t *testing.T) {
	p, err := NewTemplatePerformer(ExecutorSpec{ID: "writer", Template: "Draft {{.ID}}", Collaborate: []string{"analysis"}})
	require.NoError(t, err)

	res, err := p.Perform(context.Background(), task.MustNew(task.Spec{ID: "t2", Description: "Write", Priority: 5}))
	require.NoError(t, err)

	assert.Equal(t, "Draft t2", res.Output)
	req, ok := res.Extension.(task.CollaborationRequest)
	require.True(t, ok)
	assert.Equal(t, []string{"analysis"}, req.Capabilities)
}

func TestTemplatePerformer_Errors(t *testing.T) {
	_, err := NewTemplatePerformer(ExecutorSpec{ID: "bad", Template: "{{.Unclosed"})
	assert.ErrorContains(t, err, `executor "bad" template`)

	p, err := NewTemplatePerformer(ExecutorSpec{ID: "x", Template: "{{.Missing}}"})
	require.NoError(t, err)
	_, err = p.Perform(context.Background(), task.MustNew(task.Spec{Description: "d", Priority: 1}))
	assert.ErrorContains(t, err, "rendering output")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Perform(ctx, task.MustNew(task.Spec{Description: "d", Priority: 1}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender(t *testing.T) {
	v := map[string]any{"strategy": "balanced", "count": 2}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatJSON, v))
	assert.JSONEq(t, `{"strategy":"balanced","count":2}`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, formatYAML, v))
	assert.Contains(t, buf.String(), "strategy: balanced")

	assert.Error(t, render(&buf, "xml", v))
}

func TestRunCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "run", "Summarize", "the", "incident", "report",
		"--config", path, "--id", "t1", "--capability", "analysis", "--audit", "5")
	require.NoError(t, err)

	var got struct {
		Result task.Result `json:"result"`
		Audit  []struct {
			TaskID string `json:"task_id"`
		} `json:"audit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Result.Success)
	assert.Equal(t, "t1", got.Result.TaskID)
	assert.Equal(t, "analyst", got.Result.ExecutorID)
	require.Len(t, got.Audit, 1)
	assert.Equal(t, "t1", got.Audit[0].TaskID)
}

func TestRunCommand_InvalidPriority(t *testing.T) {
	_, err := execute(t, "run", "anything", "--config", writeConfig(t, testConfig), "--priority", "11")
	assert.ErrorIs(t, err, task.ErrInvalidTask)
}

func TestDecideCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := execute(t, "decide", "--config", path, "--output", "yaml",
		"--goal", "Fix the flaky login test", "--complexity", "3", "--risk", "0.1",
		"--capability", "analysis", "--execute", "--stats")
	require.NoError(t, err)

	assert.Contains(t, out, "strategy: goal_directed")
	assert.Contains(t, out, "analyst:")
	assert.Contains(t, out, "succeeded: 1")
	assert.Contains(t, out, "total_decisions: 1")
}

func TestDecideCommand_InvalidContext(t *testing.T) {
	_, err := execute(t, "decide", "--config", writeConfig(t, testConfig), "--complexity", "42")
	assert.ErrorContains(t, err, "invalid decision context")
}

func TestUnsupportedOutput(t *testing.T) {
	_, err := execute(t, "decide", "--config", writeConfig(t, testConfig), "--output", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
}

func TestMetricsServer(t *testing.T) {
	metrics.NewMetrics().RecordDecision("balanced")
	e := newMetricsServer()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "concord_decisions_total")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
