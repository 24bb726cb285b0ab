package bootstrap

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/pipecat/store"
)

// SourceInfo describes one configured source.
type SourceInfo struct {
	Name   string
	Kind   string
	Target string
}

// OutputInfo describes one output stage.
type OutputInfo struct {
	Name   string
	Target string
}

// ColumnInfo is a numeric column summarized after the run.
type ColumnInfo struct {
	Key     string
	Summary store.Summary
}

// Summary tracks what a run was made of and how it ended. CountRecord may
// be called from the pipeline while Render runs on another goroutine.
type Summary struct {
	serviceName string
	version     string
	records     atomic.Int64

	mu       sync.Mutex
	duration time.Duration
	sources  []SourceInfo
	stages   []string
	outputs  []OutputInfo
	columns  []ColumnInfo
	err      error
}

// NewSummary creates an empty run summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// TrackSource records a source.
func (s *Summary) TrackSource(name, kind, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, SourceInfo{Name: name, Kind: kind, Target: target})
}

// TrackStage records a transform or limit stage.
func (s *Summary) TrackStage(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, name)
}

// TrackOutput records an output stage.
func (s *Summary) TrackOutput(name, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, OutputInfo{Name: name, Target: target})
}

// TrackColumn records a column summary.
func (s *Summary) TrackColumn(key string, sum store.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = append(s.columns, ColumnInfo{Key: key, Summary: sum})
}

// CountRecord counts one record reaching the end of the pipeline.
func (s *Summary) CountRecord() {
	s.records.Add(1)
}

// Records returns the number of records counted so far.
func (s *Summary) Records() int64 {
	return s.records.Load()
}

// SetDuration records how long the task ran.
func (s *Summary) SetDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration = d
}

// SetError records the task outcome.
func (s *Summary) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Render writes the summary as a tree.
func (s *Summary) Render(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n🚀 %s %s finished in %.2fs\n", s.serviceName, s.version, s.duration.Seconds())

	if len(s.sources) > 0 {
		b.WriteString("\n📥 Sources\n")
		for i, src := range s.sources {
			target := ""
			if src.Target != "" {
				target = " " + src.Target
			}
			fmt.Fprintf(&b, "   %s %s [%s]%s\n", branch(i, len(s.sources)), src.Name, src.Kind, target)
		}
	}

	if len(s.stages) > 0 {
		b.WriteString("\n🔧 Stages\n")
		for i, st := range s.stages {
			fmt.Fprintf(&b, "   %s %s\n", branch(i, len(s.stages)), st)
		}
	}

	if len(s.outputs) > 0 {
		b.WriteString("\n📤 Outputs\n")
		for i, out := range s.outputs {
			if out.Target == "" {
				fmt.Fprintf(&b, "   %s %s\n", branch(i, len(s.outputs)), out.Name)
				continue
			}
			fmt.Fprintf(&b, "   %s %s → %s\n", branch(i, len(s.outputs)), out.Name, out.Target)
		}
	}

	fmt.Fprintf(&b, "\n📊 Records: %d\n", s.records.Load())

	if len(s.columns) > 0 {
		b.WriteString("\n📈 Columns\n")
		for i, c := range s.columns {
			sum := c.Summary
			unit := ""
			if sum.Unit != "" {
				unit = " " + string(sum.Unit)
			}
			fmt.Fprintf(&b, "   %s %s: n=%d mean=%.4g sd=%.4g min=%.4g max=%.4g%s\n",
				branch(i, len(s.columns)), c.Key, sum.Count, sum.Mean, sum.StdDev, sum.Min, sum.Max, unit)
		}
	}

	if s.err != nil {
		fmt.Fprintf(&b, "\n❌ Failed: %v\n", s.err)
	} else {
		b.WriteString("\n✅ Completed\n")
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}
