package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"siav-svr/internal/model"
)

// MemoryStore es una implementación simple en memoria de EventStore.
// Útil para tests y desarrollo; no es indicada para producción.
//
// SetFail permite simular un store caído y Reads cuenta cuántas lecturas
// llegaron efectivamente al store (para verificar el comportamiento del
// cache sin tocar Redis).
type MemoryStore struct {
	mu          sync.Mutex
	events      []model.TelemetryEvent
	infractions []model.InfractionRecord
	reports     map[string]model.DailyReport
	fail        error
	reads       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]model.DailyReport)}
}

// SetFail hace que toda operación posterior devuelva err; nil restablece.
func (m *MemoryStore) SetFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Reads devuelve cuántas operaciones de lectura atendió el store.
func (m *MemoryStore) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Infractions devuelve una copia de los registros de infracción guardados.
func (m *MemoryStore) Infractions() []model.InfractionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.InfractionRecord, len(m.infractions))
	copy(out, m.infractions)
	return out
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev model.TelemetryEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	ev.ID = fmt.Sprintf("ev-%04d", len(m.events)+1)
	m.events = append(m.events, ev)
	return ev.ID, nil
}

func (m *MemoryStore) InsertInfraction(_ context.Context, rec model.InfractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.infractions = append(m.infractions, rec)
	return nil
}

func (m *MemoryStore) QueryRange(_ context.Context, start, end time.Time) ([]model.TelemetryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.fail != nil {
		return nil, m.fail
	}
	var out []model.TelemetryEvent
	for _, ev := range m.events {
		if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *MemoryStore) RecentEvents(_ context.Context, limit int) ([]model.TelemetryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]model.TelemetryEvent, len(m.events))
	copy(out, m.events)
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountEvents(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.fail != nil {
		return 0, m.fail
	}
	return int64(len(m.events)), nil
}

func (m *MemoryStore) CountInfractions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.fail != nil {
		return 0, m.fail
	}
	return int64(len(m.infractions)), nil
}

func (m *MemoryStore) UpsertDailyReport(_ context.Context, date string, rep model.DailyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.reports[date] = rep
	return nil
}

func (m *MemoryStore) DailyReports(_ context.Context, limit int) ([]model.DailyReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.fail != nil {
		return nil, m.fail
	}
	dates := make([]string, 0, len(m.reports))
	for d := range m.reports {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	out := make([]model.DailyReport, 0, len(dates))
	for _, d := range dates {
		out = append(out, m.reports[d])
	}
	return out, nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail
}

// Report devuelve el reporte persistido para una fecha, si existe.
func (m *MemoryStore) Report(date string) (model.DailyReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[date]
	return rep, ok
}
