package stats

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

func newTestService(st store.EventStore) (*Service, *cache.Cache, *time.Time) {
	ch := cache.New(10*time.Second, 5*time.Second)
	svc := NewService(st, ch, observability.NewLogger())
	now := testNow
	svc.now = func() time.Time { return now }
	return svc, ch, &now
}

func seedEvents(t *testing.T, st *store.MemoryStore, speeds []float64, infractions int) {
	t.Helper()
	ctx := context.Background()
	for i, speed := range speeds {
		ev := model.TelemetryEvent{
			DeviceID:      "radar-01",
			SpeedKmh:      speed,
			Direction:     model.DirectionNorth,
			IsInfraction:  i < infractions,
			Timestamp:     testNow.Add(time.Duration(i) * time.Minute),
			SpeedLimitKmh: 60,
			ReceivedAt:    testNow.Add(time.Duration(i) * time.Minute),
		}
		id, err := st.InsertEvent(ctx, ev)
		if err != nil {
			t.Fatalf("seed insert: %v", err)
		}
		if ev.IsInfraction {
			ev.ID = id
			if err := st.InsertInfraction(ctx, model.NewInfraction(ev, testNow)); err != nil {
				t.Fatalf("seed infraction: %v", err)
			}
		}
	}
}

func TestGetStats_ComputesFromStore(t *testing.T) {
	st := store.NewMemoryStore()
	// dos infracciones (70 y 90), velocidades {40,70,90}
	seedEvents(t, st, []float64{70, 90, 40}, 2)
	svc, _, _ := newTestService(st)

	snap, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if snap.TotalDetections != 3 || snap.TotalInfractions != 2 {
		t.Errorf("totals = (%d, %d), want (3, 2)", snap.TotalDetections, snap.TotalInfractions)
	}
	// 2/3 -> 66.67 -> 67
	if snap.InfractionPct != 67 {
		t.Errorf("InfractionPct = %d, want 67", snap.InfractionPct)
	}
	// (40+70+90)/3 -> 67
	if snap.MeanSpeedKmh != 67 {
		t.Errorf("MeanSpeedKmh = %d, want 67", snap.MeanSpeedKmh)
	}
	if snap.Fallback {
		t.Errorf("snapshot flagged as fallback with healthy store")
	}
}

func TestGetStats_CacheHitSkipsStore(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvents(t, st, []float64{50}, 0)
	svc, _, now := newTestService(st)

	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("first GetStats: %v", err)
	}
	reads := st.Reads()

	// segunda lectura dentro del TTL: mismo valor, cero consultas nuevas
	*now = testNow.Add(5 * time.Second)
	snap, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("second GetStats: %v", err)
	}
	if st.Reads() != reads {
		t.Fatalf("store reads went %d -> %d within TTL", reads, st.Reads())
	}
	if snap.TotalDetections != 1 {
		t.Errorf("cached snapshot = %+v", snap)
	}
}

func TestGetStats_TTLExpiryRecomputes(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvents(t, st, []float64{50}, 0)
	svc, _, now := newTestService(st)

	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("first GetStats: %v", err)
	}
	reads := st.Reads()

	*now = testNow.Add(11 * time.Second)
	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("second GetStats: %v", err)
	}
	if st.Reads() == reads {
		t.Fatalf("expected a new store query after TTL expiry")
	}
}

func TestGetStats_InvalidationRecomputes(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvents(t, st, []float64{50}, 0)
	svc, ch, _ := newTestService(st)

	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("first GetStats: %v", err)
	}
	reads := st.Reads()

	ch.Stats.Invalidate()
	if _, err := svc.GetStats(context.Background()); err != nil {
		t.Fatalf("second GetStats: %v", err)
	}
	if st.Reads() == reads {
		t.Fatalf("expected a new store query after invalidation")
	}
}

func TestGetStats_FallbackWhenStoreUnavailable(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetFail(store.ErrUnavailable)
	svc, ch, _ := newTestService(st)

	ch.Fallback.Record(true, testNow)
	ch.Fallback.Record(false, testNow)

	snap, err := svc.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats during outage: %v", err)
	}
	if !snap.Fallback {
		t.Fatalf("snapshot not flagged as fallback")
	}
	if snap.TotalDetections != 2 || snap.TotalInfractions != 1 {
		t.Errorf("fallback totals = (%d, %d), want (2, 1)", snap.TotalDetections, snap.TotalInfractions)
	}
	if snap.InfractionPct != 50 {
		t.Errorf("fallback pct = %d, want 50", snap.InfractionPct)
	}
}

func TestRecentEvents_ClampsLimit(t *testing.T) {
	st := store.NewMemoryStore()
	speeds := make([]float64, 150)
	for i := range speeds {
		speeds[i] = 50
	}
	seedEvents(t, st, speeds, 0)
	svc, _, _ := newTestService(st)

	events, err := svc.RecentEvents(context.Background(), 1000)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != MaxRecentLimit {
		t.Fatalf("got %d events, want clamp at %d", len(events), MaxRecentLimit)
	}
}

func TestRecentEvents_ServesPrefixFromCache(t *testing.T) {
	st := store.NewMemoryStore()
	seedEvents(t, st, []float64{50, 60, 70}, 0)
	svc, _, _ := newTestService(st)

	if _, err := svc.RecentEvents(context.Background(), 100); err != nil {
		t.Fatalf("warm read: %v", err)
	}
	reads := st.Reads()

	events, err := svc.RecentEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if st.Reads() != reads {
		t.Fatalf("prefix read hit the store")
	}
}

func TestHourlyChart_UsesLast24Hours(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	old := model.TelemetryEvent{
		DeviceID: "radar-01", SpeedKmh: 50, Direction: model.DirectionNorth,
		Timestamp: testNow.Add(-30 * time.Hour), ReceivedAt: testNow.Add(-30 * time.Hour),
	}
	recent := model.TelemetryEvent{
		DeviceID: "radar-01", SpeedKmh: 80, Direction: model.DirectionNorth,
		Timestamp: testNow.Add(-time.Hour), ReceivedAt: testNow.Add(-time.Hour),
	}
	for _, ev := range []model.TelemetryEvent{old, recent} {
		if _, err := st.InsertEvent(ctx, ev); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	svc, _, _ := newTestService(st)
	buckets, err := svc.HourlyChart(ctx)
	if err != nil {
		t.Fatalf("HourlyChart: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1 (old event outside window)", len(buckets))
	}
	if buckets[0].MeanSpeedKmh != 80 {
		t.Errorf("bucket = %+v", buckets[0])
	}
}
