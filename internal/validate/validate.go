package validate

import (
	"encoding/json"
	"math"
	"time"

	"siav-svr/internal/model"
)

// RejectReason etiqueta por qué se descartó un payload. Sirve de label de
// métrica, así que el set es cerrado y de cardinalidad baja.
type RejectReason string

const (
	ReasonBadPayload   RejectReason = "payload_malformado"
	ReasonBadDeviceID  RejectReason = "dispositivo_invalido"
	ReasonBadSpeed     RejectReason = "velocidad_fuera_de_rango"
	ReasonBadDirection RejectReason = "direccion_invalida"
	ReasonBadFlag      RejectReason = "esInfraccion_no_booleano"
)

// Outcome es el resultado de la cadena: evento aceptado o razón de rechazo.
type Outcome struct {
	Event  model.TelemetryEvent
	Reason RejectReason
}

func (o Outcome) Accepted() bool { return o.Reason == "" }

// rawEvent recibe el JSON del broker sin tipar: cada regla inspecciona el
// tipo crudo de su campo. Un bind tipado rechazaría el documento entero y
// no podríamos distinguir rechazo de degradación por campo.
type rawEvent struct {
	DeviceID     any          `json:"dispositivo_id"`
	Speed        any          `json:"velocidad"`
	Direction    any          `json:"direccion"`
	IsInfraction any          `json:"esInfraccion"`
	Timestamp    any          `json:"timestamp"`
	Location     *rawLocation `json:"ubicacion"`
	SpeedLimit   any          `json:"limiteVelocidad"`
}

type rawLocation struct {
	Lat  any `json:"lat"`
	Lng  any `json:"lng"`
	Name any `json:"nombre"`
}

type candidate struct {
	raw rawEvent
	out model.TelemetryEvent
	now time.Time
}

// rule devuelve "" si acepta. Las reglas de rechazo cortan la cadena; las de
// normalización degradan el campo y continúan.
type rule func(*candidate) RejectReason

var chain = []rule{
	checkDeviceID,
	checkSpeed,
	checkDirection,
	checkInfractionFlag,
	normalizeTimestamp,
	normalizeLocation,
	normalizeSpeedLimit,
}

// Normalize decodifica un payload crudo y corre la cadena de reglas en orden.
// Es pura: no hace I/O, el caller decide qué loguear.
func Normalize(payload []byte, now time.Time) Outcome {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Outcome{Reason: ReasonBadPayload}
	}

	c := &candidate{raw: raw, now: now}
	c.out.ReceivedAt = now

	for _, r := range chain {
		if reason := r(c); reason != "" {
			return Outcome{Reason: reason}
		}
	}
	return Outcome{Event: c.out}
}

func checkDeviceID(c *candidate) RejectReason {
	id, ok := c.raw.DeviceID.(string)
	if !ok || id == "" {
		return ReasonBadDeviceID
	}
	c.out.DeviceID = id
	return ""
}

func checkSpeed(c *candidate) RejectReason {
	v, ok := asNumber(c.raw.Speed)
	if !ok || v < 0 || v > model.MaxSpeedKmh {
		return ReasonBadSpeed
	}
	c.out.SpeedKmh = v
	return ""
}

func checkDirection(c *candidate) RejectReason {
	d, ok := c.raw.Direction.(string)
	if !ok || (d != model.DirectionNorth && d != model.DirectionSouth) {
		return ReasonBadDirection
	}
	c.out.Direction = d
	return ""
}

// checkInfractionFlag exige booleano real, sin coerción de truthy/falsy.
func checkInfractionFlag(c *candidate) RejectReason {
	b, ok := c.raw.IsInfraction.(bool)
	if !ok {
		return ReasonBadFlag
	}
	c.out.IsInfraction = b
	return ""
}

// normalizeTimestamp nunca rechaza: timestamp ausente o no parseable se
// sustituye por la hora de ingesta.
func normalizeTimestamp(c *candidate) RejectReason {
	c.out.Timestamp = c.now
	if s, ok := c.raw.Timestamp.(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			c.out.Timestamp = ts
		}
	}
	return ""
}

// normalizeLocation descarta la ubicación fuera de rango pero conserva el
// evento: degradación de campo, no rechazo.
func normalizeLocation(c *candidate) RejectReason {
	loc := c.raw.Location
	if loc == nil {
		return ""
	}
	lat, okLat := asNumber(loc.Lat)
	lng, okLng := asNumber(loc.Lng)
	if !okLat || !okLng || !coordsValid(lat, lng) {
		return ""
	}
	name, _ := loc.Name.(string)
	c.out.Location = &model.Location{Lat: lat, Lng: lng, Name: name}
	return ""
}

func normalizeSpeedLimit(c *candidate) RejectReason {
	c.out.SpeedLimitKmh = model.DefaultSpeedLimitKmh
	if v, ok := asNumber(c.raw.SpeedLimit); ok && v > 0 {
		c.out.SpeedLimitKmh = v
	}
	return ""
}

func asNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coordsValid(lat, lng float64) bool {
	if lat < -90 || lat > 90 {
		return false
	}
	if lng < -180 || lng > 180 {
		return false
	}
	return true
}
