package stats

import (
	"fmt"
	"math"
	"sort"

	"siav-svr/internal/model"
)

// maxChartBuckets es un tope duro del gráfico, no una opción: quien
// necesite más historia pide una ventana más ancha por otra vía.
const maxChartBuckets = 12

// hourlyAcc acumula una cubeta mientras se consume el set de eventos.
type hourlyAcc struct {
	vehicles    int
	infractions int
	speeds      []float64
}

// BucketByHour agrupa eventos en cubetas por hora de recepción ("HH:00",
// hora local del proceso), calcula el promedio entero de velocidad por
// cubeta y devuelve a lo sumo las últimas 12 en orden lexicográfico, que
// dentro de un día equivale al cronológico.
func BucketByHour(events []model.TelemetryEvent) []model.HourlyBucket {
	byHour := make(map[string]*hourlyAcc)

	for _, ev := range events {
		if ev.SpeedKmh < 0 || math.IsNaN(ev.SpeedKmh) {
			continue
		}
		hour := fmt.Sprintf("%02d:00", ev.ReceivedAt.Hour())
		acc := byHour[hour]
		if acc == nil {
			acc = &hourlyAcc{}
			byHour[hour] = acc
		}
		acc.vehicles++
		if ev.IsInfraction {
			acc.infractions++
		}
		acc.speeds = append(acc.speeds, ev.SpeedKmh)
	}

	buckets := make([]model.HourlyBucket, 0, len(byHour))
	for hour, acc := range byHour {
		mean := 0
		if len(acc.speeds) > 0 {
			var sum float64
			for _, v := range acc.speeds {
				sum += v
			}
			mean = int(math.Round(sum / float64(len(acc.speeds))))
		}
		buckets = append(buckets, model.HourlyBucket{
			Hour:         hour,
			Vehicles:     acc.vehicles,
			Infractions:  acc.infractions,
			MeanSpeedKmh: mean,
		})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Hour < buckets[j].Hour })
	if len(buckets) > maxChartBuckets {
		buckets = buckets[len(buckets)-maxChartBuckets:]
	}
	return buckets
}
