// Package report records the outcome of a pipeline run and writes it as YAML.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/viant/afs"
	"github.com/vk/flowgrid/internal/flowerr"
	"gopkg.in/yaml.v3"
)

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Step is the outcome of one pipeline step.
type Step struct {
	ID       string         `yaml:"id"`
	Tool     string         `yaml:"tool"`
	Status   string         `yaml:"status"`
	Duration string         `yaml:"duration,omitempty"`
	Error    string         `yaml:"error,omitempty"`
	Outputs  map[string]any `yaml:"outputs,omitempty"`
}

// Report is the outcome of a whole run.
type Report struct {
	Pipeline string         `yaml:"pipeline"`
	Started  time.Time      `yaml:"started"`
	Duration string         `yaml:"duration"`
	Status   string         `yaml:"status"`
	Error    string         `yaml:"error,omitempty"`
	Summary  map[string]int `yaml:"summary"`
	Steps    []Step         `yaml:"steps"`
}

// New starts a report for the pipeline at location.
func New(pipeline string, started time.Time) *Report {
	return &Report{Pipeline: pipeline, Started: started, Summary: map[string]int{}}
}

// Add records a step.
func (r *Report) Add(s Step) {
	r.Steps = append(r.Steps, s)
	r.Summary[s.Status]++
}

// Finish closes the report with the run's error, if any.
func (r *Report) Finish(err error, finished time.Time) {
	sort.Slice(r.Steps, func(i, j int) bool { return r.Steps[i].ID < r.Steps[j].ID })
	r.Duration = finished.Sub(r.Started).String()
	switch {
	case err == nil:
		r.Status = StatusSucceeded
	case flowerr.IsCanceled(err):
		r.Status = StatusCanceled
		r.Error = err.Error()
	default:
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Encode writes r as YAML.
func Encode(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML report.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := yaml.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// Save writes r to location through afs, replacing any existing content.
func Save(ctx context.Context, location string, r *Report) error {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return err
	}
	if err := afs.New().Upload(ctx, location, 0644, &buf); err != nil {
		return fmt.Errorf("failed to write report %s: %w", location, err)
	}
	return nil
}

// Load reads a report from location.
func Load(ctx context.Context, location string) (*Report, error) {
	data, err := afs.New().DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", location, err)
	}
	return Decode(bytes.NewReader(data))
}
