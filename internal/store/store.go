package store

import (
	"context"
	"errors"
	"time"

	"siav-svr/internal/model"
)

// Taxonomía de errores del adaptador. El resto del backend decide política
// con errors.Is sobre estos sentinelas, nunca inspeccionando el error crudo
// del driver.
var (
	ErrUnavailable = errors.New("store: unavailable")
	ErrNotFound    = errors.New("store: not found")
	ErrConstraint  = errors.New("store: constraint violation")
)

// EventStore es la frontera de persistencia del backend. El store es el
// sistema de registro; cache y contadores fallback son vistas derivadas.
type EventStore interface {
	// InsertEvent persiste un evento validado y devuelve su id asignado.
	InsertEvent(ctx context.Context, ev model.TelemetryEvent) (string, error)

	// InsertInfraction es best-effort: si falla, el evento ya confirmado
	// no se revierte.
	InsertInfraction(ctx context.Context, rec model.InfractionRecord) error

	// QueryRange devuelve los eventos con timestamp en [start, end],
	// ambos inclusive.
	QueryRange(ctx context.Context, start, end time.Time) ([]model.TelemetryEvent, error)

	// RecentEvents devuelve los últimos eventos por hora de recepción,
	// más reciente primero.
	RecentEvents(ctx context.Context, limit int) ([]model.TelemetryEvent, error)

	CountEvents(ctx context.Context) (int64, error)
	CountInfractions(ctx context.Context) (int64, error)

	// UpsertDailyReport escribe el reporte con la fecha como clave natural;
	// sobreescribe en conflicto.
	UpsertDailyReport(ctx context.Context, date string, rep model.DailyReport) error

	// DailyReports devuelve reportes por fecha descendente.
	DailyReports(ctx context.Context, limit int) ([]model.DailyReport, error)

	Ping(ctx context.Context) error
}
