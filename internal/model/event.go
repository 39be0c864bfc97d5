package model

import "time"

// Direcciones válidas tal como llegan del detector.
const (
	DirectionNorth = "norte"
	DirectionSouth = "sur"
)

const (
	// MaxSpeedKmh es el tope físico plausible de una detección; todo lo que
	// exceda esto se trata como lectura corrupta.
	MaxSpeedKmh = 300.0

	// DefaultSpeedLimitKmh se aplica cuando el detector no manda límite.
	DefaultSpeedLimitKmh = 50.0
)

// Location es el punto de instalación reportado por el detector.
type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"nombre,omitempty"`
}

// TelemetryEvent es una detección de velocidad ya normalizada. Un evento
// persistido siempre tiene velocidad, dirección y dispositivo válidos.
type TelemetryEvent struct {
	ID            string    `json:"id,omitempty"`
	DeviceID      string    `json:"dispositivo_id"`
	SpeedKmh      float64   `json:"velocidad"`
	Direction     string    `json:"direccion"`
	IsInfraction  bool      `json:"esInfraccion"`
	Timestamp     time.Time `json:"timestamp"`
	Location      *Location `json:"ubicacion,omitempty"`
	SpeedLimitKmh float64   `json:"limiteVelocidad"`
	ReceivedAt    time.Time `json:"recibidoEn"`
}

// InfractionRecord se deriva 1:1 de un evento con esInfraccion=true.
// Notified lo muta el notificador, fuera de este backend.
type InfractionRecord struct {
	EventID       string    `json:"eventoId"`
	DeviceID      string    `json:"dispositivo_id"`
	SpeedKmh      float64   `json:"velocidad"`
	Direction     string    `json:"direccion"`
	Location      *Location `json:"ubicacion,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SpeedLimitKmh float64   `json:"limiteVelocidad"`
	Notified      bool      `json:"notificada"`
	CreatedAt     time.Time `json:"creadoEn"`
}

// NewInfraction arma el registro derivado de un evento ya persistido.
func NewInfraction(ev TelemetryEvent, createdAt time.Time) InfractionRecord {
	return InfractionRecord{
		EventID:       ev.ID,
		DeviceID:      ev.DeviceID,
		SpeedKmh:      ev.SpeedKmh,
		Direction:     ev.Direction,
		Location:      ev.Location,
		Timestamp:     ev.Timestamp,
		SpeedLimitKmh: ev.SpeedLimitKmh,
		Notified:      false,
		CreatedAt:     createdAt,
	}
}
