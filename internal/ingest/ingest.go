package ingest

import (
	"context"
	"log/slog"
	"time"

	"siav-svr/internal/cache"
	"siav-svr/internal/model"
	"siav-svr/internal/observability"
	"siav-svr/internal/store"
	"siav-svr/internal/utilities"
	"siav-svr/internal/validate"
)

// Handler procesa cada mensaje que entrega el transporte. Nunca devuelve
// error hacia el broker: un rechazo se descarta y una falla del store se
// absorbe en los contadores fallback. La redelivery cruda, si existe, es
// problema del transporte.
type Handler struct {
	store store.EventStore
	cache *cache.Cache
	log   *slog.Logger

	now   func() time.Time
	audit func(prefix, message string)
}

func NewHandler(st store.EventStore, ch *cache.Cache, log *slog.Logger) *Handler {
	return &Handler{
		store: st,
		cache: ch,
		log:   log.With("component", "ingest"),
		now:   time.Now,
		audit: utilities.CreateLog,
	}
}

// HandleMessage valida, persiste e invalida cache para un payload crudo.
// Dos mensajes en vuelo no se serializan entre sí: las escrituras al cache
// son replace-if-newer y los contadores son atómicos.
func (h *Handler) HandleMessage(ctx context.Context, payload []byte) {
	start := h.now()
	observability.EventsReceived.Inc()

	out := validate.Normalize(payload, start)
	if !out.Accepted() {
		observability.EventsRejected.WithLabelValues(string(out.Reason)).Inc()
		h.audit("RECHAZADOS", string(payload))
		h.log.Warn("evento rechazado", "reason", out.Reason)
		return
	}

	ev := out.Event
	id, err := h.store.InsertEvent(ctx, ev)
	if err != nil {
		// aceptado pero no durable: cuenta en fallback, el health check
		// expone la divergencia
		observability.StoreErrors.Inc()
		h.cache.Fallback.Record(ev.IsInfraction, start)
		h.log.Error("store no disponible, evento contado en fallback",
			"device", ev.DeviceID, "error", err)
		return
	}
	ev.ID = id
	observability.EventsAccepted.Inc()

	if ev.IsInfraction {
		rec := model.NewInfraction(ev, start)
		if err := h.store.InsertInfraction(ctx, rec); err != nil {
			// best-effort: el evento ya quedó confirmado, no se revierte
			h.log.Error("no se pudo registrar la infracción",
				"evento", id, "error", err)
		} else {
			observability.InfractionsRecorded.Inc()
		}
	}

	// invalidación write-through: la próxima lectura recomputa del store
	h.cache.Stats.Invalidate()
	h.cache.Recent.Invalidate()

	observability.ObserveIngestLatency(start)
	h.log.Info("evento persistido",
		"id", id,
		"device", ev.DeviceID,
		"velocidad", ev.SpeedKmh,
		"infraccion", ev.IsInfraction)
}
