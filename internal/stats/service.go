package stats

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"siav-svr/internal/cache"
	"siav-svr/internal/model"
	"siav-svr/internal/observability"
	"siav-svr/internal/store"
)

const (
	// MaxRecentLimit acota /eventos/recientes: el caller no controla el
	// tamaño del scan.
	MaxRecentLimit     = 100
	DefaultRecentLimit = 10

	// recentSampleSize es la muestra para velocidad promedio, igual que
	// el endpoint del dashboard.
	recentSampleSize = 100

	chartWindow = 24 * time.Hour
)

// Service es la superficie de lectura del dashboard: cache primero, store
// después, contadores fallback como último recurso.
type Service struct {
	store store.EventStore
	cache *cache.Cache
	log   *slog.Logger
	now   func() time.Time
}

func NewService(st store.EventStore, ch *cache.Cache, log *slog.Logger) *Service {
	return &Service{
		store: st,
		cache: ch,
		log:   log.With("component", "stats"),
		now:   time.Now,
	}
}

// GetStats devuelve el snapshot agregado. Dentro del TTL sirve el valor
// cacheado sin tocar el store; vencido o invalidado, recomputa. Si el store
// no responde, sintetiza desde los contadores fallback y marca el snapshot:
// degradado pero honesto, nunca pantalla de error.
func (s *Service) GetStats(ctx context.Context) (model.StatsSnapshot, error) {
	now := s.now()
	if snap, fresh := s.cache.Stats.Read(now); fresh {
		return snap, nil
	}

	snap, err := s.computeStats(ctx, now)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			observability.FallbackReads.Inc()
			s.log.Warn("store no disponible, stats desde contadores fallback", "error", err)
			return s.fallbackStats(now), nil
		}
		return model.StatsSnapshot{}, err
	}

	s.cache.Stats.Write(snap, now)
	return snap, nil
}

func (s *Service) computeStats(ctx context.Context, now time.Time) (model.StatsSnapshot, error) {
	total, err := s.store.CountEvents(ctx)
	if err != nil {
		return model.StatsSnapshot{}, err
	}
	infractions, err := s.store.CountInfractions(ctx)
	if err != nil {
		return model.StatsSnapshot{}, err
	}
	sample, err := s.store.RecentEvents(ctx, recentSampleSize)
	if err != nil {
		return model.StatsSnapshot{}, err
	}

	mean := 0
	if len(sample) > 0 {
		var sum float64
		for _, ev := range sample {
			sum += ev.SpeedKmh
		}
		mean = int(math.Round(sum / float64(len(sample))))
	}

	return model.StatsSnapshot{
		TotalDetections:  total,
		TotalInfractions: infractions,
		InfractionPct:    roundPct(infractions, total),
		MeanSpeedKmh:     mean,
		UpdatedAt:        now,
	}, nil
}

// fallbackStats arma el snapshot desde los contadores en memoria. No hay
// velocidad promedio ahí: queda en 0 y el flag avisa al operador.
func (s *Service) fallbackStats(now time.Time) model.StatsSnapshot {
	det, infr, last := s.cache.Fallback.Snapshot()
	if last.IsZero() {
		last = now
	}
	return model.StatsSnapshot{
		TotalDetections:  det,
		TotalInfractions: infr,
		InfractionPct:    roundPct(infr, det),
		Fallback:         true,
		UpdatedAt:        last,
	}
}

// RecentEvents devuelve los últimos eventos, límite acotado server-side.
// El slot cachea una página de tamaño máximo y los límites menores se
// sirven como prefijo mientras siga fresca.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]model.TelemetryEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	now := s.now()
	if events, fresh := s.cache.Recent.Read(now); fresh {
		return clip(events, limit), nil
	}

	events, err := s.store.RecentEvents(ctx, MaxRecentLimit)
	if err != nil {
		return nil, err
	}
	s.cache.Recent.Write(events, now)
	return clip(events, limit), nil
}

// HourlyChart agrupa los eventos de las últimas 24h en cubetas por hora.
func (s *Service) HourlyChart(ctx context.Context) ([]model.HourlyBucket, error) {
	now := s.now()
	events, err := s.store.QueryRange(ctx, now.Add(-chartWindow), now)
	if err != nil {
		return nil, err
	}
	return BucketByHour(events), nil
}

func clip(events []model.TelemetryEvent, limit int) []model.TelemetryEvent {
	if len(events) > limit {
		return events[:limit]
	}
	return events
}

func roundPct(part, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
