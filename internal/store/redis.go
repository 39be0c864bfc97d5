package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"siav-svr/internal/model"
)

// RedisStore implementa EventStore sobre Redis: documentos JSON por clave y
// sorted sets como índices temporales.
//
// Claves:
//
//	<prefix>:evento:<id>        documento del evento
//	<prefix>:eventos:por_ts     zset id -> timestamp (ms)
//	<prefix>:eventos:recientes  zset id -> recibidoEn (ms)
//	<prefix>:infraccion:<id>    documento de la infracción
//	<prefix>:infracciones       zset id -> timestamp (ms)
//	<prefix>:reporte:<fecha>    documento del reporte diario
//	<prefix>:reportes           zset fecha -> medianoche UTC (s)
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore conecta y verifica con un ping: sin store no hay backend
// que levantar.
func NewRedisStore(addr string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, prefix: "siav"}, nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// wrapErr traduce errores del driver a la taxonomía del adaptador.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *RedisStore) InsertEvent(ctx context.Context, ev model.TelemetryEvent) (string, error) {
	ev.ID = uuid.NewString()
	doc, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("%w: marshal event: %v", ErrConstraint, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key("evento", ev.ID), doc, 0)
	pipe.ZAdd(ctx, s.key("eventos", "por_ts"), redis.Z{
		Score:  float64(ev.Timestamp.UnixMilli()),
		Member: ev.ID,
	})
	pipe.ZAdd(ctx, s.key("eventos", "recientes"), redis.Z{
		Score:  float64(ev.ReceivedAt.UnixMilli()),
		Member: ev.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", wrapErr(err)
	}
	return ev.ID, nil
}

func (s *RedisStore) InsertInfraction(ctx context.Context, rec model.InfractionRecord) error {
	id := uuid.NewString()
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal infraction: %v", ErrConstraint, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key("infraccion", id), doc, 0)
	pipe.ZAdd(ctx, s.key("infracciones"), redis.Z{
		Score:  float64(rec.Timestamp.UnixMilli()),
		Member: id,
	})
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *RedisStore) QueryRange(ctx context.Context, start, end time.Time) ([]model.TelemetryEvent, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.key("eventos", "por_ts"), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixMilli(), 10),
		Max: strconv.FormatInt(end.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return s.fetchEvents(ctx, ids)
}

func (s *RedisStore) RecentEvents(ctx context.Context, limit int) ([]model.TelemetryEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.rdb.ZRevRange(ctx, s.key("eventos", "recientes"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return s.fetchEvents(ctx, ids)
}

// fetchEvents resuelve ids a documentos. Entradas del índice sin documento
// se saltan en vez de tirar la consulta completa.
func (s *RedisStore) fetchEvents(ctx context.Context, ids []string) ([]model.TelemetryEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("evento", id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}

	events := make([]model.TelemetryEvent, 0, len(vals))
	for _, v := range vals {
		doc, ok := v.(string)
		if !ok {
			continue
		}
		var ev model.TelemetryEvent
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *RedisStore) CountEvents(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.key("eventos", "por_ts")).Result()
	return n, wrapErr(err)
}

func (s *RedisStore) CountInfractions(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.key("infracciones")).Result()
	return n, wrapErr(err)
}

func (s *RedisStore) UpsertDailyReport(ctx context.Context, date string, rep model.DailyReport) error {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: bad report date %q", ErrConstraint, date)
	}
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("%w: marshal report: %v", ErrConstraint, err)
	}

	// SET sobre la misma clave = upsert; el zset de fechas es idempotente.
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key("reporte", date), doc, 0)
	pipe.ZAdd(ctx, s.key("reportes"), redis.Z{
		Score:  float64(day.Unix()),
		Member: date,
	})
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *RedisStore) DailyReports(ctx context.Context, limit int) ([]model.DailyReport, error) {
	if limit <= 0 {
		return nil, nil
	}
	dates, err := s.rdb.ZRevRange(ctx, s.key("reportes"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(dates) == 0 {
		return nil, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = s.key("reporte", d)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}

	reports := make([]model.DailyReport, 0, len(vals))
	for _, v := range vals {
		doc, ok := v.(string)
		if !ok {
			continue
		}
		var rep model.DailyReport
		if err := json.Unmarshal([]byte(doc), &rep); err != nil {
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return wrapErr(s.rdb.Ping(ctx).Err())
}
