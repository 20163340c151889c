// Package app wires the pipeline together: load definitions, expand
// them, dispatch their fragments and render XML documents. The CLI and
// the watch loop both run through here.
package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/loom/internal/config"
	"github.com/zjrosen/loom/internal/defs"
	"github.com/zjrosen/loom/internal/expand"
	"github.com/zjrosen/loom/internal/loader"
	"github.com/zjrosen/loom/internal/log"
	"github.com/zjrosen/loom/internal/modules"
	"github.com/zjrosen/loom/internal/output"
	"github.com/zjrosen/loom/internal/registry"
)

// Document is one rendered output file.
type Document struct {
	Name string // record name, doubles as the output file stem
	Kind string // "job" or "view"
	XML  string
}

// Result is the output of one pipeline run.
type Result struct {
	Jobs  []Document
	Views []Document
}

// App runs the expansion pipeline under one configuration.
type App struct {
	cfg    config.Config
	tracer trace.Tracer
}

// New creates an App. tracer may be nil.
func New(cfg config.Config, tracer trace.Tracer) *App {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &App{cfg: cfg, tracer: tracer}
}

// Run executes one full pass over the definition paths. patterns, when
// non-empty, limits output to matching record names.
func (a *App) Run(ctx context.Context, paths, patterns []string) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "run",
		trace.WithAttributes(attribute.Int("paths", len(paths))))
	defer span.End()

	store := defs.NewStore(a.cfg.AllowDuplicates)

	_, loadSpan := a.tracer.Start(ctx, "load")
	err := loader.New(store, a.cfg.IncludePath).Load(paths...)
	loadSpan.End()
	if err != nil {
		return nil, err
	}

	_, expandSpan := a.tracer.Start(ctx, "expand")
	expanded, err := expand.New(store, expand.Options{
		AllowEmptyVariables: a.cfg.AllowEmptyVariables,
		KeepDescriptions:    a.cfg.KeepDescriptions,
	}).Expand(patterns)
	expandSpan.End()
	if err != nil {
		return nil, err
	}

	_, genSpan := a.tracer.Start(ctx, "generate")
	defer genSpan.End()

	reg := registry.New(store, registry.Options{
		AllowEmptyVariables: a.cfg.AllowEmptyVariables,
	})
	modules.Register(reg)

	res := &Result{}
	for _, job := range expanded.Jobs {
		doc, err := renderJob(reg, job)
		if err != nil {
			return nil, err
		}
		res.Jobs = append(res.Jobs, doc)
	}
	for _, view := range expanded.Views {
		doc, err := renderView(view)
		if err != nil {
			return nil, err
		}
		res.Views = append(res.Views, doc)
	}

	log.Info(log.CatExpand, "run complete",
		"jobs", len(res.Jobs), "views", len(res.Views))
	return res, nil
}

func renderJob(reg *registry.Registry, job *defs.Map) (Document, error) {
	name, _ := job.GetString("name")
	root := output.New("project")
	if desc, ok := job.GetString("description"); ok {
		root.TextChild("description", desc)
	}
	if err := reg.Generate(job, root); err != nil {
		return Document{}, err
	}
	return Document{Name: name, Kind: "job", XML: root.Render()}, nil
}

func renderView(view *defs.Map) (Document, error) {
	name, _ := view.GetString("name")
	tag := "hudson.model.ListView"
	if vt, ok := view.GetString("view-type"); ok && vt == "all" {
		tag = "hudson.model.AllView"
	}
	root := output.New(tag)
	root.TextChild("name", name)
	if desc, ok := view.GetString("description"); ok {
		root.TextChild("description", desc)
	}
	return Document{Name: name, Kind: "view", XML: root.Render()}, nil
}
