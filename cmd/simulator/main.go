// El simulador publica eventos de detección sintéticos al tópico MQTT,
// a ritmo acotado, para probar el backend sin hardware en la vía.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"siav-svr/internal/config"
	"siav-svr/internal/model"
	"siav-svr/internal/observability"
)

func main() {
	count := flag.Int("n", 50, "cantidad de eventos a publicar")
	rps := flag.Float64("rps", 2, "eventos por segundo")
	flag.Parse()

	cfg := config.Load()
	logger := observability.NewLogger()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("siav-sim-" + uuid.NewString()[:8]).
		SetConnectTimeout(30 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("MQTT connect failed", "error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	logger.Info("publicando eventos", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic, "n", *count)

	lim := rate.NewLimiter(rate.Limit(*rps), 1)
	ctx := context.Background()

	for i := 0; i < *count; i++ {
		if err := lim.Wait(ctx); err != nil {
			logger.Error("rate limiter", "error", err)
			return
		}

		payload, _ := json.Marshal(randomEvent())
		token := client.Publish(cfg.MQTTTopic, 1, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			logger.Error("publish failed", "error", err)
			continue
		}
	}

	logger.Info("listo", "publicados", *count)
}

func randomEvent() map[string]any {
	speed := 20 + rand.Float64()*100
	limit := 50.0
	direction := model.DirectionNorth
	if rand.Intn(2) == 1 {
		direction = model.DirectionSouth
	}

	return map[string]any{
		"dispositivo_id":  "radar-sim-01",
		"velocidad":       float64(int(speed*10)) / 10,
		"direccion":       direction,
		"esInfraccion":    speed > limit,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"limiteVelocidad": limit,
		"ubicacion": map[string]any{
			"lat":    -0.9549 + rand.Float64()*0.01,
			"lng":    -80.7288 + rand.Float64()*0.01,
			"nombre": "Av. Circunvalación",
		},
	}
}
