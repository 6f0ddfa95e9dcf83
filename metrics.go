package contextgroups

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofhir/contextgroups/pkg/issue"
)

// Stage names recorded in Metrics.
const (
	StageLoad   = "load"
	StageClose  = "close"
	StageSelect = "select"
	StageWrite  = "write"
)

// Metrics tracks pipeline counts and stage timings using atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Runs
	runsTotal  atomic.Uint64
	runsFailed atomic.Uint64
	runTime    atomic.Uint64 // nanoseconds

	// Load
	sourcesLoaded     atomic.Uint64
	groupsLoaded      atomic.Uint64
	groupsOverwritten atomic.Uint64

	// Closure
	groupsClosed    atomic.Uint64
	missingIncludes atomic.Uint64

	// Selection
	groupsSelected atomic.Uint64
	groupsExcluded atomic.Uint64
	missingWanted  atomic.Uint64

	// Write
	groupsWritten   atomic.Uint64
	conceptsWritten atomic.Uint64

	// Expression cache
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Issues by severity
	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	stageTiming sync.Map // map[string]*stageMetrics
}

type stageMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func nanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d.Nanoseconds())
}

func count(n int) uint64 {
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// --- Recording Methods ---

// RecordRun records a finished run.
func (m *Metrics) RecordRun(duration time.Duration, ok bool) {
	m.runsTotal.Add(1)
	if !ok {
		m.runsFailed.Add(1)
	}
	m.runTime.Add(nanos(duration))
}

// RecordLoad records one loaded source.
func (m *Metrics) RecordLoad(groups, overwritten int) {
	m.sourcesLoaded.Add(1)
	m.groupsLoaded.Add(count(groups))
	m.groupsOverwritten.Add(count(overwritten))
}

// RecordClosure records the closure stage.
func (m *Metrics) RecordClosure(groups, missingIncludes int) {
	m.groupsClosed.Add(count(groups))
	m.missingIncludes.Add(count(missingIncludes))
}

// RecordSelection records the selection stage.
func (m *Metrics) RecordSelection(selected, excluded, missing int) {
	m.groupsSelected.Add(count(selected))
	m.groupsExcluded.Add(count(excluded))
	m.missingWanted.Add(count(missing))
}

// RecordWrite records the write stage.
func (m *Metrics) RecordWrite(groups, concepts int) {
	m.groupsWritten.Add(count(groups))
	m.conceptsWritten.Add(count(concepts))
}

// RecordCache adds expression cache lookups.
func (m *Metrics) RecordCache(hits, misses uint64) {
	m.cacheHits.Add(hits)
	m.cacheMisses.Add(misses)
}

// RecordIssue records an issue by severity.
func (m *Metrics) RecordIssue(severity issue.Severity) {
	switch severity {
	case issue.SeverityError, issue.SeverityFatal:
		m.errorsTotal.Add(1)
	case issue.SeverityWarning:
		m.warningsTotal.Add(1)
	case issue.SeverityInformation:
		m.infosTotal.Add(1)
	}
}

// RecordIssues records every issue of r.
func (m *Metrics) RecordIssues(r *issue.Result) {
	if r == nil {
		return
	}
	for _, is := range r.Issues {
		m.RecordIssue(is.Severity)
	}
}

// RecordStage records the duration of one stage execution.
func (m *Metrics) RecordStage(name string, duration time.Duration) {
	sm := m.getOrCreateStage(name)
	sm.invocations.Add(1)
	sm.totalTime.Add(nanos(duration))
}

func (m *Metrics) getOrCreateStage(name string) *stageMetrics {
	if v, ok := m.stageTiming.Load(name); ok {
		return v.(*stageMetrics)
	}
	actual, _ := m.stageTiming.LoadOrStore(name, &stageMetrics{})
	return actual.(*stageMetrics)
}

// --- Query Methods ---

// RunsTotal returns the number of runs.
func (m *Metrics) RunsTotal() uint64 { return m.runsTotal.Load() }

// RunsFailed returns the number of runs that returned an error.
func (m *Metrics) RunsFailed() uint64 { return m.runsFailed.Load() }

// SourcesLoaded returns the number of sources loaded.
func (m *Metrics) SourcesLoaded() uint64 { return m.sourcesLoaded.Load() }

// GroupsLoaded returns the number of group definitions read, counting
// redefinitions.
func (m *Metrics) GroupsLoaded() uint64 { return m.groupsLoaded.Load() }

// GroupsOverwritten returns how many definitions replaced an earlier one.
func (m *Metrics) GroupsOverwritten() uint64 { return m.groupsOverwritten.Load() }

// GroupsClosed returns the number of closed groups.
func (m *Metrics) GroupsClosed() uint64 { return m.groupsClosed.Load() }

// MissingIncludes returns the number of unresolved include edges.
func (m *Metrics) MissingIncludes() uint64 { return m.missingIncludes.Load() }

// GroupsSelected returns the number of groups kept by selection.
func (m *Metrics) GroupsSelected() uint64 { return m.groupsSelected.Load() }

// GroupsExcluded returns the number of wanted groups dropped by a predicate.
func (m *Metrics) GroupsExcluded() uint64 { return m.groupsExcluded.Load() }

// MissingWanted returns the number of wanted identifiers with no group.
func (m *Metrics) MissingWanted() uint64 { return m.missingWanted.Load() }

// GroupsWritten returns the number of groups written.
func (m *Metrics) GroupsWritten() uint64 { return m.groupsWritten.Load() }

// ConceptsWritten returns the number of concepts written.
func (m *Metrics) ConceptsWritten() uint64 { return m.conceptsWritten.Load() }

// CacheHitRate returns the expression cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ErrorsTotal returns the number of error and fatal issues.
func (m *Metrics) ErrorsTotal() uint64 { return m.errorsTotal.Load() }

// WarningsTotal returns the number of warning issues.
func (m *Metrics) WarningsTotal() uint64 { return m.warningsTotal.Load() }

// InfosTotal returns the number of informational issues.
func (m *Metrics) InfosTotal() uint64 { return m.infosTotal.Load() }

// StageStats holds the timing of one stage.
type StageStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time_ns"`
	AvgTime     time.Duration `json:"avg_time_ns"`
}

func (sm *stageMetrics) stats(name string) StageStats {
	invocations := sm.invocations.Load()
	total := sm.totalTime.Load()
	var avg time.Duration
	if invocations > 0 {
		avg = time.Duration(total / invocations) //nolint:gosec // nanoseconds within int64 range
	}
	return StageStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(total), //nolint:gosec // nanoseconds within int64 range
		AvgTime:     avg,
	}
}

// StageStats returns the timing of one stage.
func (m *Metrics) StageStats(name string) (StageStats, bool) {
	v, ok := m.stageTiming.Load(name)
	if !ok {
		return StageStats{Name: name}, false
	}
	return v.(*stageMetrics).stats(name), true
}

// AllStageStats returns the timing of every recorded stage in pipeline
// order; unknown stage names follow.
func (m *Metrics) AllStageStats() []StageStats {
	var out []StageStats
	seen := make(map[string]bool)
	for _, name := range []string{StageLoad, StageClose, StageSelect, StageWrite} {
		if s, ok := m.StageStats(name); ok {
			out = append(out, s)
			seen[name] = true
		}
	}
	m.stageTiming.Range(func(key, value any) bool {
		name := key.(string)
		if !seen[name] {
			out = append(out, value.(*stageMetrics).stats(name))
		}
		return true
	})
	return out
}

// --- Export Methods ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	RunsTotal  uint64 `json:"runs_total"`
	RunsFailed uint64 `json:"runs_failed"`

	SourcesLoaded     uint64 `json:"sources_loaded"`
	GroupsLoaded      uint64 `json:"groups_loaded"`
	GroupsOverwritten uint64 `json:"groups_overwritten"`
	GroupsClosed      uint64 `json:"groups_closed"`
	MissingIncludes   uint64 `json:"missing_includes"`
	GroupsSelected    uint64 `json:"groups_selected"`
	GroupsExcluded    uint64 `json:"groups_excluded"`
	MissingWanted     uint64 `json:"missing_wanted"`
	GroupsWritten     uint64 `json:"groups_written"`
	ConceptsWritten   uint64 `json:"concepts_written"`

	CacheHitRate float64 `json:"cache_hit_rate"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Stages []StageStats `json:"stages,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:         time.Now(),
		RunsTotal:         m.RunsTotal(),
		RunsFailed:        m.RunsFailed(),
		SourcesLoaded:     m.SourcesLoaded(),
		GroupsLoaded:      m.GroupsLoaded(),
		GroupsOverwritten: m.GroupsOverwritten(),
		GroupsClosed:      m.GroupsClosed(),
		MissingIncludes:   m.MissingIncludes(),
		GroupsSelected:    m.GroupsSelected(),
		GroupsExcluded:    m.GroupsExcluded(),
		MissingWanted:     m.MissingWanted(),
		GroupsWritten:     m.GroupsWritten(),
		ConceptsWritten:   m.ConceptsWritten(),
		CacheHitRate:      m.CacheHitRate(),
		ErrorsTotal:       m.ErrorsTotal(),
		WarningsTotal:     m.WarningsTotal(),
		InfosTotal:        m.InfosTotal(),
		Stages:            m.AllStageStats(),
	}
}
