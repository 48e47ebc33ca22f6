package logic

import "time"

// ThresholdMonitor raises a warning when a sampled value drops below a low
// threshold and clears it only once the value recovers past low + margin.
type ThresholdMonitor struct {
	low      float64
	margin   float64
	interval time.Duration

	last      float64
	sampled   bool
	warned    bool
	lastCheck time.Time
	checked   bool
}

// NewThresholdMonitor creates a monitor sampling every interval.
func NewThresholdMonitor(low, margin float64, interval time.Duration) *ThresholdMonitor {
	return &ThresholdMonitor{low: low, margin: margin, interval: interval}
}

// Due reports whether a sample should be taken at now. The first call is always due.
func (m *ThresholdMonitor) Due(now time.Time) bool {
	return !m.checked || now.Sub(m.lastCheck) >= m.interval
}

// MarkChecked records that a sample attempt was made at now.
func (m *ThresholdMonitor) MarkChecked(now time.Time) {
	m.lastCheck = now
	m.checked = true
}

// Observe records a sample and reports whether the warning fired on this sample.
// The warning fires exactly once per false -> true transition.
func (m *ThresholdMonitor) Observe(v float64) (fire bool) {
	m.last = v
	m.sampled = true

	switch {
	case !m.warned && v < m.low:
		m.warned = true
		return true
	case m.warned && v >= m.low+m.margin:
		m.warned = false
	}
	return false
}

// Warned reports whether the warning is currently raised.
func (m *ThresholdMonitor) Warned() bool {
	return m.warned
}

// Last returns the last sampled value and whether any sample has been taken.
func (m *ThresholdMonitor) Last() (float64, bool) {
	return m.last, m.sampled
}
