package model

import "time"

// StatsSnapshot es la vista agregada que consume el dashboard. Cuando el
// store no responde se reconstruye desde los contadores fallback y Fallback
// queda en true: el número es aproximado, nunca autoritativo.
type StatsSnapshot struct {
	TotalDetections  int64     `json:"totalVehiculos"`
	TotalInfractions int64     `json:"totalInfracciones"`
	InfractionPct    int       `json:"porcentajeInfracciones"`
	MeanSpeedKmh     int       `json:"velocidadPromedio"`
	Fallback         bool      `json:"modoFallback,omitempty"`
	UpdatedAt        time.Time `json:"ultimaActualizacion"`
}

// HourlyBucket es una cubeta del gráfico de 24h, etiquetada "HH:00".
// Efímera: se arma en cada llamada, nunca se persiste.
type HourlyBucket struct {
	Hour         string `json:"hora"`
	Vehicles     int    `json:"vehiculos"`
	Infractions  int    `json:"infracciones"`
	MeanSpeedKmh int    `json:"velocidadPromedio"`
}

// ReportOutcome distingue un reporte con datos de los dos resultados vacíos:
// día sin eventos vs. día cuyos eventos no pasaron la revalidación.
type ReportOutcome string

const (
	ReportOK          ReportOutcome = "ok"
	ReportNoEvents    ReportOutcome = "sin_eventos"
	ReportNoValidData ReportOutcome = "sin_datos_validos"
)

type DirectionTally struct {
	North int `json:"norte"`
	South int `json:"sur"`
}

// DailyReport es el rollup de un día calendario, clave natural la fecha.
// Regenerarlo sobreescribe el anterior (upsert).
type DailyReport struct {
	Date             string         `json:"fecha"`
	Outcome          ReportOutcome  `json:"estado"`
	TotalDetections  int            `json:"totalEventos"`
	TotalInfractions int            `json:"totalInfracciones"`
	InfractionPct    float64        `json:"porcentajeInfracciones"`
	MeanSpeedKmh     float64        `json:"velocidadPromedio"`
	MaxSpeedKmh      float64        `json:"velocidadMaxima"`
	MinSpeedKmh      float64        `json:"velocidadMinima"`
	Directions       DirectionTally `json:"direcciones"`
	GeneratedAt      time.Time      `json:"generadoEn"`
}
