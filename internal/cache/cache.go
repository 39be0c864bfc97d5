package cache

import (
	"sync/atomic"
	"time"

	"siav-svr/internal/model"
)

// entry es el contenido publicado de un slot. Se reemplaza entero por
// puntero: nunca hay una entrada a medio escribir visible para un lector.
type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Slot es una ranura de cache con TTL. Las entradas vencidas no se purgan,
// solo se ignoran hasta que alguien las sobreescriba.
type Slot[T any] struct {
	ttl time.Duration
	cur atomic.Pointer[entry[T]]
}

func NewSlot[T any](ttl time.Duration) *Slot[T] {
	return &Slot[T]{ttl: ttl}
}

// Read devuelve el valor publicado y si sigue fresco respecto de now.
func (s *Slot[T]) Read(now time.Time) (T, bool) {
	e := s.cur.Load()
	if e == nil {
		var zero T
		return zero, false
	}
	return e.value, now.Sub(e.storedAt) < s.ttl
}

// Write publica un valor con swap atómico replace-if-newer: si otro writer
// concurrente ya publicó algo más nuevo, el nuestro se descarta. Dos
// recomputaciones entrelazadas son aceptables porque el valor cacheado es
// una aproximación acotada por TTL, no un valor de correctitud.
func (s *Slot[T]) Write(v T, at time.Time) {
	next := &entry[T]{value: v, storedAt: at}
	for {
		cur := s.cur.Load()
		if cur != nil && cur.storedAt.After(at) {
			return
		}
		if s.cur.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Invalidate descarta la entrada publicada: la próxima lectura recomputa.
func (s *Slot[T]) Invalidate() {
	s.cur.Store(nil)
}

// FallbackCounters son los contadores en memoria que sostienen /stats
// cuando el store no responde. Son aproximados por diseño y NO se
// reconcilian con el store cuando éste vuelve: todo snapshot derivado de
// acá sale marcado como fallback.
type FallbackCounters struct {
	detections  atomic.Int64
	infractions atomic.Int64
	lastUpdated atomic.Int64 // unix ms; 0 = nunca usado
}

// Record cuenta un evento aceptado que no pudo persistirse.
func (f *FallbackCounters) Record(isInfraction bool, at time.Time) {
	f.detections.Add(1)
	if isInfraction {
		f.infractions.Add(1)
	}
	f.lastUpdated.Store(at.UnixMilli())
}

// Snapshot devuelve los contadores y la última actualización (cero si
// nunca se usaron).
func (f *FallbackCounters) Snapshot() (detections, infractions int64, lastUpdated time.Time) {
	detections = f.detections.Load()
	infractions = f.infractions.Load()
	if ms := f.lastUpdated.Load(); ms != 0 {
		lastUpdated = time.UnixMilli(ms)
	}
	return
}

// Cache agrupa las dos ranuras TTL y los contadores fallback. Se inyecta
// tanto al handler de ingesta como al lector de estadísticas; nunca es un
// global escondido.
type Cache struct {
	Stats    *Slot[model.StatsSnapshot]
	Recent   *Slot[[]model.TelemetryEvent]
	Fallback *FallbackCounters
}

func New(statsTTL, recentTTL time.Duration) *Cache {
	return &Cache{
		Stats:    NewSlot[model.StatsSnapshot](statsTTL),
		Recent:   NewSlot[[]model.TelemetryEvent](recentTTL),
		Fallback: &FallbackCounters{},
	}
}
