package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	Kind   string
	Id     string
	Params []any
}

// MemoryAPI keeps every report in memory, it is used by tests to assert
// that a component reported (or did not report) something.
type MemoryAPI struct {
	mutex   sync.Mutex
	reports []Report
	counts  map[string]int64
}

func NewMemoryAPI() *MemoryAPI {
	return &MemoryAPI{counts: map[string]int64{}}
}

func (m *MemoryAPI) add(kind, id string, params []any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reports = append(m.reports, Report{Kind: kind, Id: id, Params: params})
}

func (m *MemoryAPI) ReportBroken(id string, params ...any) {
	m.add("broken", id, params)
}

func (m *MemoryAPI) ReportWarning(id string, params ...any) {
	m.add("warning", id, params)
}

func (m *MemoryAPI) ReportDebug(msg string, params ...any) {
	m.add("debug", msg, params)
}

func (m *MemoryAPI) ReportCount(id string, count int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counts[id] = count
}

// Find returns every report of the given kind whose id ends with suffix.
func (m *MemoryAPI) Find(kind, suffix string) []Report {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []Report
	for _, r := range m.reports {
		if r.Kind == kind && strings.HasSuffix(r.Id, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryAPI) Count(id string) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.counts[id]
}
