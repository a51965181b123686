package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/fyrsmithlabs/concord/internal/executor"
	"github.com/fyrsmithlabs/concord/internal/task"
)

// ExecutorSpec declares a demo executor in the config file.
type ExecutorSpec struct {
	ID           string                `koanf:"id" json:"id"`
	Class        string                `koanf:"class" json:"class"`
	Capabilities []executor.Capability `koanf:"capabilities" json:"capabilities"`
	// Template renders the output. Fields: .ID .Description .Guidance
	// .Priority .Executor .Capabilities.
	Template   string  `koanf:"template" json:"template"`
	Confidence float64 `koanf:"confidence" json:"confidence"`
	// Collaborate, when set, asks for a collaborator holding these
	// capabilities on every task.
	Collaborate []string `koanf:"collaborate" json:"collaborate"`
}

const defaultTemplate = `[{{.Executor}}] {{.Description}}{{if .Guidance}} (guidance: {{.Guidance}}){{end}}`

// DefaultExecutors is used when the config declares none.
func DefaultExecutors() []ExecutorSpec {
	return []ExecutorSpec{
		{
			ID: "analyst",
			Capabilities: []executor.Capability{
				{Name: "analysis", Cost: 3, Reliability: 0.9},
				{Name: "research", Cost: 4, Reliability: 0.8},
			},
			Template:   `[analyst] Analysis of "{{.Description}}": reviewed the request and outlined a practical plan.`,
			Confidence: 0.85,
		},
		{
			ID: "writer",
			Capabilities: []executor.Capability{
				{Name: "writing", Cost: 2, Reliability: 0.85},
				{Name: "creative", Cost: 3, Reliability: 0.75},
			},
			Template:   `[writer] Draft for "{{.Description}}": a new alternative framing with a concrete outline.`,
			Confidence: 0.8,
		},
		{
			ID:    "conductor",
			Class: "orchestrator",
			Capabilities: []executor.Capability{
				{Name: "planning", Cost: 5, Reliability: 0.8},
				{Name: "coordination", Cost: 5, Reliability: 0.8},
			},
			Template:   `[conductor] Coordinated plan for "{{.Description}}" across goal and exploration tracks.`,
			Confidence: 0.75,
		},
	}
}

type templateData struct {
	ID           string
	Description  string
	Guidance     string
	Priority     int
	Executor     string
	Capabilities string
}

// TemplatePerformer answers every task with a rendered template.
type TemplatePerformer struct {
	spec ExecutorSpec
	tmpl *template.Template
}

// NewTemplatePerformer parses the spec's template.
func NewTemplatePerformer(spec ExecutorSpec) (*TemplatePerformer, error) {
	text := spec.Template
	if strings.TrimSpace(text) == "" {
		text = defaultTemplate
	}
	tmpl, err := template.New(spec.ID).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("executor %q template: %w", spec.ID, err)
	}
	if spec.Confidence <= 0 {
		spec.Confidence = 0.8
	}
	return &TemplatePerformer{spec: spec, tmpl: tmpl}, nil
}

// Perform implements executor.Performer.
func (p *TemplatePerformer) Perform(ctx context.Context, t *task.Task) (*task.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err := p.tmpl.Execute(&buf, templateData{
		ID:           t.ID(),
		Description:  t.Description(),
		Guidance:     t.Guidance(),
		Priority:     t.Priority(),
		Executor:     p.spec.ID,
		Capabilities: strings.Join(t.RequiredCapabilities(), ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering output: %w", err)
	}

	res := &task.Result{
		Success:    true,
		Output:     buf.String(),
		Confidence: p.spec.Confidence,
		Extension:  task.Plain{},
	}
	if len(p.spec.Collaborate) > 0 {
		res.Extension = task.CollaborationRequest{
			Capabilities: p.spec.Collaborate,
			Message:      "Review: " + t.Description(),
		}
	}
	return res, nil
}
