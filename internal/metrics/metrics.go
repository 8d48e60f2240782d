package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	attempts      map[string]int64
	retries       map[string]int64
	successes     map[string]int64
	failures      map[string]int64
	rejections    map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	startTime     time.Time
}

type Snapshot struct {
	TotalAttempts int64                  `json:"total_attempts"`
	Uptime        time.Duration          `json:"uptime"`
	Hosts         map[string]HostMetrics `json:"hosts"`
}

type HostMetrics struct {
	Attempts    int64         `json:"attempts"`
	Retries     int64         `json:"retries"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Rejections  int64         `json:"rejections"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		attempts:      make(map[string]int64),
		retries:       make(map[string]int64),
		successes:     make(map[string]int64),
		failures:      make(map[string]int64),
		rejections:    make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordAttempt(host string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.attempts[host]++
}

func (m *Metrics) RecordRetry(host string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.retries[host]++
}

func (m *Metrics) RecordRejection(host string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[host]++
}

func (m *Metrics) RecordOutcome(host string, success bool, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if success {
		m.successes[host]++
	} else {
		m.failures[host]++
	}

	m.responseTimes[host] = append(m.responseTimes[host], duration)
	if len(m.responseTimes[host]) > 1000 {
		m.responseTimes[host] = m.responseTimes[host][1:]
	}

	if statusCode != 0 {
		if m.statusCodes[host] == nil {
			m.statusCodes[host] = make(map[int]int64)
		}
		m.statusCodes[host][statusCode]++
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime: time.Since(m.startTime),
		Hosts:  make(map[string]HostMetrics),
	}

	allHosts := make(map[string]bool)
	for host := range m.attempts {
		allHosts[host] = true
	}
	for host := range m.rejections {
		allHosts[host] = true
	}
	for host := range m.responseTimes {
		allHosts[host] = true
	}

	for host := range allHosts {
		snap.TotalAttempts += m.attempts[host]

		hm := HostMetrics{
			Attempts:    m.attempts[host],
			Retries:     m.retries[host],
			Successes:   m.successes[host],
			Failures:    m.failures[host],
			Rejections:  m.rejections[host],
			StatusCodes: m.statusCodes[host],
		}

		durations := m.responseTimes[host]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

			var total time.Duration
			for _, d := range sorted {
				total += d
			}

			hm.AvgResponse = total / time.Duration(len(sorted))
			hm.P50Response = percentile(sorted, 0.50)
			hm.P95Response = percentile(sorted, 0.95)
			hm.P99Response = percentile(sorted, 0.99)
		}

		snap.Hosts[host] = hm
	}

	return snap
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
