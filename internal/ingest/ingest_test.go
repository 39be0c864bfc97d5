package ingest

import (
	"context"
	"testing"
	"time"

	"siav-svr/internal/cache"
	"siav-svr/internal/model"
	"siav-svr/internal/observability"
	"siav-svr/internal/store"
)

var testNow = time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)

func newTestHandler(st store.EventStore, ch *cache.Cache) *Handler {
	h := NewHandler(st, ch, observability.NewLogger())
	h.now = func() time.Time { return testNow }
	h.audit = func(string, string) {}
	return h
}

func TestHandleMessage_PersistsValidEvent(t *testing.T) {
	st := store.NewMemoryStore()
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	h.HandleMessage(context.Background(), []byte(
		`{"dispositivo_id": "radar-01", "velocidad": 45, "direccion": "norte", "esInfraccion": false}`))

	n, err := st.CountEvents(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("CountEvents = (%d, %v), want 1", n, err)
	}
}

func TestHandleMessage_InvalidEventNeverReachesStore(t *testing.T) {
	st := store.NewMemoryStore()
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	payloads := []string{
		`{"dispositivo_id": "radar-01", "velocidad": 400, "direccion": "norte", "esInfraccion": false}`,
		`{"dispositivo_id": "radar-01", "velocidad": 50, "direccion": "este", "esInfraccion": false}`,
		`{"dispositivo_id": "", "velocidad": 50, "direccion": "sur", "esInfraccion": false}`,
		`no es json`,
	}
	for _, p := range payloads {
		h.HandleMessage(context.Background(), []byte(p))
	}

	n, _ := st.CountEvents(context.Background())
	if n != 0 {
		t.Fatalf("store has %d events, want 0", n)
	}
}

func TestHandleMessage_DerivesInfractionRecord(t *testing.T) {
	st := store.NewMemoryStore()
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	h.HandleMessage(context.Background(), []byte(
		`{"dispositivo_id": "radar-01", "velocidad": 88, "direccion": "sur", "esInfraccion": true, "limiteVelocidad": 60}`))

	recs := st.Infractions()
	if len(recs) != 1 {
		t.Fatalf("got %d infraction records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.EventID == "" {
		t.Errorf("infraction lacks event back-reference")
	}
	if rec.Notified {
		t.Errorf("new infraction must start with notificada=false")
	}
	if rec.SpeedKmh != 88 || rec.SpeedLimitKmh != 60 {
		t.Errorf("infraction fields = %+v", rec)
	}
}

func TestHandleMessage_InvalidatesStatsSlot(t *testing.T) {
	st := store.NewMemoryStore()
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	ch.Stats.Write(statsFixture(), testNow)
	ch.Recent.Write([]model.TelemetryEvent{{DeviceID: "radar-01"}}, testNow)

	h.HandleMessage(context.Background(), []byte(
		`{"dispositivo_id": "radar-01", "velocidad": 45, "direccion": "norte", "esInfraccion": false}`))

	if _, fresh := ch.Stats.Read(testNow.Add(time.Second)); fresh {
		t.Fatalf("stats slot still fresh after ingestion")
	}
	if _, fresh := ch.Recent.Read(testNow.Add(time.Second)); fresh {
		t.Fatalf("recent slot still fresh after ingestion")
	}
}

func TestHandleMessage_StoreFailureGoesToFallback(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetFail(store.ErrUnavailable)
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	// infracción: debe sumar en ambos contadores
	h.HandleMessage(context.Background(), []byte(
		`{"dispositivo_id": "radar-01", "velocidad": 95, "direccion": "norte", "esInfraccion": true}`))

	det, infr, last := ch.Fallback.Snapshot()
	if det != 1 || infr != 1 {
		t.Fatalf("fallback counters = (%d, %d), want (1, 1)", det, infr)
	}
	if !last.Equal(testNow) {
		t.Errorf("lastUpdated = %v, want %v", last, testNow)
	}
}

func TestHandleMessage_InfractionInsertFailureKeepsEvent(t *testing.T) {
	st := store.NewMemoryStore()
	ch := cache.New(time.Minute, time.Minute)
	h := newTestHandler(st, ch)

	// el evento entra bien; la infracción falla después
	h.store = &flakyInfractions{MemoryStore: st}
	h.HandleMessage(context.Background(), []byte(
		`{"dispositivo_id": "radar-01", "velocidad": 95, "direccion": "norte", "esInfraccion": true}`))

	n, _ := st.CountEvents(context.Background())
	if n != 1 {
		t.Fatalf("event count = %d, want 1 (no rollback)", n)
	}
	det, _, _ := ch.Fallback.Snapshot()
	if det != 0 {
		t.Fatalf("fallback counters touched on best-effort infraction failure")
	}
}

// flakyInfractions deja pasar eventos pero rechaza toda infracción.
type flakyInfractions struct {
	*store.MemoryStore
}

func (f *flakyInfractions) InsertInfraction(context.Context, model.InfractionRecord) error {
	return store.ErrUnavailable
}

func statsFixture() model.StatsSnapshot {
	return model.StatsSnapshot{TotalDetections: 10, TotalInfractions: 2, UpdatedAt: testNow}
}
