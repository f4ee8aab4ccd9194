package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/infrapilot/infrapilot/internal/outcome"
	"github.com/infrapilot/infrapilot/internal/template"
)

// templateAction post-processes a drafted CloudFormation template and writes
// the artifact the deploy action reads.
type templateAction struct {
	engine *Engine
}

func (a *templateAction) Name() string { return "process-template" }

func (a *templateAction) Describe() string {
	return "Fix up a drafted CloudFormation template and write it to disk"
}

// Execute reads the template from the "file" param when set, otherwise from
// the raw instruction. The artifact goes to the "output" param or the
// configured template file.
func (a *templateAction) Execute(_ context.Context, in Input) *outcome.Outcome {
	e := a.engine
	name := a.Name()
	out := in.Params["output"]
	if out == "" {
		out = e.opts.TemplateFile
	}

	fail := func(err error) *outcome.Outcome {
		if errors.Is(err, template.ErrNotMapping) || errors.Is(err, template.ErrNoResources) {
			err = &outcome.InputError{Reason: err.Error(), Hint: "Provide a template with a Resources mapping."}
		}
		return outcome.FromError(name, out, err)
	}

	// 1. Decode
	var (
		doc *template.Document
		err error
	)
	if path := in.Params["file"]; path != "" {
		doc, err = template.ReadFile(path)
	} else {
		doc, err = template.Decode([]byte(in.Raw))
		if err != nil && !errors.Is(err, template.ErrNotMapping) {
			err = &outcome.InputError{Reason: err.Error(), Hint: "Provide the template as YAML or JSON."}
		}
	}
	if err != nil {
		return fail(err)
	}

	// 2. Post-process
	report, err := template.Process(doc, template.Options{
		BucketPrefix: e.opts.BucketPrefix,
		SuffixLength: e.opts.SuffixLength,
		Rand:         e.rand,
	})
	if err != nil {
		return fail(err)
	}

	// 3. Write the artifact
	if err := doc.WriteFile(out); err != nil {
		return fail(err)
	}

	o := outcome.Success(name, out, fmt.Sprintf("CloudFormation template written to %s (%s).", out, report.Summary()))
	o.Detail = templateDetail(report)
	return o
}

func templateDetail(r *template.Report) string {
	var lines []string
	logical := make([]string, 0, len(r.BucketNames))
	for k := range r.BucketNames {
		logical = append(logical, k)
	}
	sort.Strings(logical)
	for _, k := range logical {
		lines = append(lines, fmt.Sprintf("%s: BucketName %s", k, r.BucketNames[k]))
	}
	for _, s := range r.Skipped {
		lines = append(lines, fmt.Sprintf("%s: skipped (%s)", s.Name, s.Reason))
	}
	return strings.Join(lines, "\n")
}
