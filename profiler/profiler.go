// Package profiler - per-stage timing for enhancement runs.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-clarity/images"
)

// TimeTracker accumulates timing statistics for one stage.
type TimeTracker struct {
	name      string
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int
	failures  int
}

// StageStat is a snapshot of one stage's timings.
type StageStat struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Failures int           `json:"failures"`
	Total    time.Duration `json:"total"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
	Avg      time.Duration `json:"avg"`
}

// StageTimer records how long each pipeline stage takes. It implements
// enhance.Hook and is safe for use by concurrent pipelines.
type StageTimer struct {
	mu     sync.Mutex
	stages map[string]*TimeTracker
	order  []string
}

// NewStageTimer creates an empty timer.
//
// Returns:
// - A StageTimer ready to be passed to enhance.WithHooks.
//
// @example
// timer := profiler.NewStageTimer()
// p := enhance.NewPipeline(stages, enhance.WithHooks(timer))
// _, _ = p.Run(buf)
// timer.Log(log)
func NewStageTimer() *StageTimer {
	return &StageTimer{stages: make(map[string]*TimeTracker)}
}

// BeforeStage implements enhance.Hook.
func (t *StageTimer) BeforeStage(string, *images.PixelBuffer) {}

// AfterStage implements enhance.Hook.
func (t *StageTimer) AfterStage(stage string, _ *images.PixelBuffer, elapsed time.Duration, err error) {
	t.Record(stage, elapsed, err != nil)
}

// StartOperation begins timing an operation outside a pipeline.
//
// Arguments:
// - name: The name of the operation to track.
//
// Returns:
// - A function to call when the operation completes.
func (t *StageTimer) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		t.Record(name, time.Since(start), false)
	}
}

// Record adds one observation for name.
func (t *StageTimer) Record(name string, duration time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracker, exists := t.stages[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		t.stages[name] = tracker
		t.order = append(t.order, name)
	}

	tracker.totalTime += duration
	tracker.count++
	if failed {
		tracker.failures++
	}

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Report returns the statistics of every stage in first-seen order.
func (t *StageTimer) Report() []StageStat {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make([]StageStat, 0, len(t.order))
	for _, name := range t.order {
		tracker := t.stages[name]
		stats = append(stats, StageStat{
			Name:     tracker.name,
			Count:    tracker.count,
			Failures: tracker.failures,
			Total:    tracker.totalTime,
			Min:      tracker.minTime,
			Max:      tracker.maxTime,
			Avg:      tracker.totalTime / time.Duration(tracker.count),
		})
	}
	return stats
}

// Slowest returns the stages ordered by total time, longest first.
func (t *StageTimer) Slowest() []StageStat {
	stats := t.Report()
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })
	return stats
}

// Reset discards all recorded timings.
func (t *StageTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages = make(map[string]*TimeTracker)
	t.order = nil
}

// Log writes one info line per stage.
func (t *StageTimer) Log(logger zerolog.Logger) {
	for _, s := range t.Report() {
		logger.Info().
			Str("stage", s.Name).
			Int("count", s.Count).
			Int("failures", s.Failures).
			Dur("avg", s.Avg.Truncate(time.Microsecond)).
			Dur("min", s.Min.Truncate(time.Microsecond)).
			Dur("max", s.Max.Truncate(time.Microsecond)).
			Dur("total", s.Total.Truncate(time.Microsecond)).
			Msg("stage timing")
	}
}
