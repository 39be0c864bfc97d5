package transport

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"siav-svr/internal/config"
)

// MessageHandler recibe cada payload crudo. No devuelve error: la política
// de ingesta absorbe todas las fallas (ver ingest.Handler).
type MessageHandler func(ctx context.Context, payload []byte)

// MQTTConsumer suscribe al tópico de eventos con QoS 1. La reconexión y la
// resuscripción las maneja el cliente; acá solo registramos el estado para
// el health check.
type MQTTConsumer struct {
	client  mqtt.Client
	broker  string
	topic   string
	handler MessageHandler
	log     *slog.Logger
}

func NewMQTTConsumer(cfg config.Config, handler MessageHandler, log *slog.Logger) *MQTTConsumer {
	c := &MQTTConsumer{
		broker:  cfg.MQTTBroker,
		topic:   cfg.MQTTTopic,
		handler: handler,
		log:     log.With("component", "mqtt"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("siav-backend-" + uuid.NewString()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(30 * time.Second).
		// los mensajes no se serializan entre sí: dos entregas seguidas
		// pueden tener sus escrituras en vuelo a la vez
		SetOrderMatters(false)

	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		c.log.Info("conectado al broker MQTT", "broker", c.broker)
		token := cl.Subscribe(c.topic, 1, c.onMessage)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				c.log.Error("suscripción fallida", "topic", c.topic, "error", err)
				return
			}
			c.log.Info("suscrito al tópico", "topic", c.topic, "qos", 1)
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Error("conexión MQTT perdida, reintentando", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Start conecta con el broker. Con auto-reconnect activo, una caída
// posterior se reintenta sola cada 5s.
func (c *MQTTConsumer) Start() error {
	token := c.client.Connect()
	token.Wait()
	return token.Error()
}

// Stop corta la conexión dándole un margen para los ACK en vuelo.
func (c *MQTTConsumer) Stop() {
	c.client.Disconnect(250)
}

func (c *MQTTConsumer) Connected() bool {
	return c.client.IsConnectionOpen()
}

func (c *MQTTConsumer) Broker() string { return c.broker }
func (c *MQTTConsumer) Topic() string  { return c.topic }

func (c *MQTTConsumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.handler(context.Background(), msg.Payload())
}
