package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Stage names in execution order.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageEnrich    = "enrich"
	StageAggregate = "aggregate"
	StageExport    = "export"
)

// ProgressUpdate is one observable progress event, pushed to any subscribed
// listener (the websocket hub, a CLI printer).
type ProgressUpdate struct {
	Stage      string  `json:"stage"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
}

// ProgressTracker tracks progress for long-running pipeline stages.
type ProgressTracker struct {
	mu        sync.Mutex
	stage     string
	total     int
	current   int
	message   string
	startTime time.Time
	onUpdate  func(ProgressUpdate)
}

// NewProgressTracker creates a tracker. onUpdate may be nil.
func NewProgressTracker(onUpdate func(ProgressUpdate)) *ProgressTracker {
	return &ProgressTracker{
		startTime: time.Now(),
		onUpdate:  onUpdate,
	}
}

// StartStage resets the tracker for a new stage.
func (p *ProgressTracker) StartStage(stage string, total int) {
	p.mu.Lock()
	p.stage = stage
	p.total = total
	p.current = 0
	p.message = ""
	p.mu.Unlock()

	p.publish()
}

// Update sets the current progress within the active stage.
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	p.current = current
	p.message = message
	p.mu.Unlock()

	p.publish()
}

// Increment advances progress by one.
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	p.current++
	p.message = message
	p.mu.Unlock()

	p.publish()
}

// Snapshot returns the current progress state.
func (p *ProgressTracker) Snapshot() ProgressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *ProgressTracker) snapshotLocked() ProgressUpdate {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}
	return ProgressUpdate{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Percentage: percentage,
		Message:    p.message,
	}
}

func (p *ProgressTracker) publish() {
	if p.onUpdate == nil {
		return
	}
	p.mu.Lock()
	update := p.snapshotLocked()
	p.mu.Unlock()
	p.onUpdate(update)
}

// ElapsedString returns a formatted elapsed time since tracker creation.
func (p *ProgressTracker) ElapsedString() string {
	elapsed := time.Since(p.startTime)
	if elapsed < time.Minute {
		return fmt.Sprintf("%.0f seconds", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.1f minutes", elapsed.Minutes())
	}
	return fmt.Sprintf("%.1f hours", elapsed.Hours())
}
