// Package feedhealth tracks per-feed fetch outcomes over a sliding window.
// It feeds the health endpoint's degraded verdict; it never gates requests.
package feedhealth

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Status is the windowed outcome summary for one feed.
type Status struct {
	Feed             string  `json:"feed"`
	Successes        int     `json:"successes"`
	Failures         int     `json:"failures"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
}

type outcomes struct {
	successes []time.Time
	failures  []time.Time
}

// Tracker records fetch outcomes keyed by feed name. Outcomes older than
// the window are pruned on every write and read. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	feeds  map[string]*outcomes

	// now is swappable for deterministic window tests.
	now func() time.Time
}

// New creates a Tracker with the given sliding window.
func New(window time.Duration) *Tracker {
	return &Tracker{
		window: window,
		feeds:  make(map[string]*outcomes),
		now:    time.Now,
	}
}

// RecordSuccess records one successful fetch for feed.
func (t *Tracker) RecordSuccess(feed string) {
	t.record(feed, true)
}

// RecordFailure records one failed fetch for feed.
func (t *Tracker) RecordFailure(feed string) {
	t.record(feed, false)
}

func (t *Tracker) record(feed string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.feeds[feed]
	if !ok {
		o = &outcomes{}
		t.feeds[feed] = o
	}
	now := t.now()
	if success {
		o.successes = append(o.successes, now)
	} else {
		o.failures = append(o.failures, now)
	}
	t.pruneLocked(o, now)
}

// ErrorRate returns the windowed error percentage for feed and the sample
// count it is based on. A feed with no samples reports 0 over 0.
func (t *Tracker) ErrorRate(feed string) (percent float64, samples int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.feeds[feed]
	if !ok {
		return 0, 0
	}
	t.pruneLocked(o, t.now())
	return rate(len(o.successes), len(o.failures)), len(o.successes) + len(o.failures)
}

// Snapshot returns the windowed status of every tracked feed, sorted by name.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	statuses := make([]Status, 0, len(t.feeds))
	for feed, o := range t.feeds {
		t.pruneLocked(o, now)
		statuses = append(statuses, Status{
			Feed:             feed,
			Successes:        len(o.successes),
			Failures:         len(o.failures),
			ErrorRatePercent: rate(len(o.successes), len(o.failures)),
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Feed < statuses[j].Feed })
	return statuses
}

// Degraded returns the feeds whose windowed error rate exceeds
// thresholdPercent. Feeds with no failures never qualify.
func (t *Tracker) Degraded(thresholdPercent float64) []string {
	var degraded []string
	for _, s := range t.Snapshot() {
		if s.Failures > 0 && s.ErrorRatePercent > thresholdPercent {
			degraded = append(degraded, s.Feed)
		}
	}
	return degraded
}

func (t *Tracker) pruneLocked(o *outcomes, now time.Time) {
	cutoff := now.Add(-t.window)
	o.successes = dropBefore(o.successes, cutoff)
	o.failures = dropBefore(o.failures, cutoff)
}

// dropBefore removes timestamps before cutoff; entries are appended in time
// order, so the first kept index bounds the slice.
func dropBefore(times []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range times {
		if !ts.Before(cutoff) {
			return times[i:]
		}
	}
	return times[:0]
}

func rate(successes, failures int) float64 {
	total := successes + failures
	if total == 0 {
		return 0
	}
	return math.Round(float64(failures)/float64(total)*100*100) / 100
}
