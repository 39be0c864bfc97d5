package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"siav-svr/internal/model"
	"siav-svr/internal/store"
)

// MaxReportsLimit acota el listado histórico, como el dashboard original.
const MaxReportsLimit = 30

// Generator computa y persiste un reporte por día calendario. El upsert por
// fecha lo hace idempotente: regenerar sobreescribe, nunca duplica.
type Generator struct {
	store store.EventStore
	log   *slog.Logger
	now   func() time.Time
}

func NewGenerator(st store.EventStore, log *slog.Logger) *Generator {
	return &Generator{
		store: st,
		log:   log.With("component", "report"),
		now:   time.Now,
	}
}

// Generate arma el reporte de la fecha dada (formato "2006-01-02", ventana
// [00:00:00, 23:59:59] UTC). Corre hasta completarse: si el store falla a
// mitad, devuelve el error en vez de un reporte parcial.
func (g *Generator) Generate(ctx context.Context, date string) (model.DailyReport, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return model.DailyReport{}, fmt.Errorf("%w: fecha inválida %q", store.ErrConstraint, date)
	}

	start := day
	end := day.Add(24*time.Hour - time.Second)

	events, err := g.store.QueryRange(ctx, start, end)
	if err != nil {
		return model.DailyReport{}, err
	}

	rep := build(date, events, g.now())
	if rep.Outcome != model.ReportOK {
		g.log.Info("reporte sin datos", "fecha", date, "estado", rep.Outcome)
		return rep, nil
	}

	if err := g.store.UpsertDailyReport(ctx, date, rep); err != nil {
		return model.DailyReport{}, err
	}
	g.log.Info("reporte generado",
		"fecha", date,
		"eventos", rep.TotalDetections,
		"infracciones", rep.TotalInfractions)
	return rep, nil
}

// Reports devuelve los reportes persistidos, fecha descendente, límite
// acotado server-side.
func (g *Generator) Reports(ctx context.Context, limit int) ([]model.DailyReport, error) {
	if limit <= 0 || limit > MaxReportsLimit {
		limit = MaxReportsLimit
	}
	return g.store.DailyReports(ctx, limit)
}

// build computa las estadísticas del día. Revalida velocidad por las dudas:
// el store puede contener eventos escritos por un productor menos estricto.
func build(date string, events []model.TelemetryEvent, generatedAt time.Time) model.DailyReport {
	rep := model.DailyReport{Date: date, GeneratedAt: generatedAt}

	if len(events) == 0 {
		rep.Outcome = model.ReportNoEvents
		return rep
	}

	var speeds []float64
	for _, ev := range events {
		if ev.SpeedKmh < 0 || ev.SpeedKmh > model.MaxSpeedKmh || math.IsNaN(ev.SpeedKmh) {
			continue
		}
		rep.TotalDetections++
		if ev.IsInfraction {
			rep.TotalInfractions++
		}
		speeds = append(speeds, ev.SpeedKmh)
		if ev.Direction == model.DirectionNorth {
			rep.Directions.North++
		} else {
			rep.Directions.South++
		}
	}

	// había eventos pero ninguno pasó la revalidación: distinto de
	// "día sin eventos"
	if rep.TotalDetections == 0 {
		return model.DailyReport{
			Date:        date,
			GeneratedAt: generatedAt,
			Outcome:     model.ReportNoValidData,
		}
	}

	sum, maxSpeed, minSpeed := speeds[0], speeds[0], speeds[0]
	for _, v := range speeds[1:] {
		sum += v
		if v > maxSpeed {
			maxSpeed = v
		}
		if v < minSpeed {
			minSpeed = v
		}
	}

	rep.MeanSpeedKmh = round2(sum / float64(len(speeds)))
	rep.MaxSpeedKmh = maxSpeed
	rep.MinSpeedKmh = minSpeed
	rep.InfractionPct = round2(float64(rep.TotalInfractions) / float64(rep.TotalDetections) * 100)
	rep.Outcome = model.ReportOK
	return rep
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
