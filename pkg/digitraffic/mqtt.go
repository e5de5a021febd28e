package digitraffic

import (
	"context"
	"errors"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

var errSubscribeTimeout = errors.New("timed out waiting for subscription")

type mqttTransport struct {
	options TransportOptions
	client  mqtt.Client
}

func newMQTTTransport(options TransportOptions) *mqttTransport {
	clientOptions := mqtt.NewClientOptions().
		AddBroker(options.URL).
		SetClientID(options.ClientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetConnectTimeout(options.ConnectTimeout).
		SetKeepAlive(options.KeepAlive).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			options.OnConnectionLost(err)
		})

	if options.Username != "" {
		clientOptions.SetUsername(options.Username)
		clientOptions.SetPassword(options.Password)
	}

	return &mqttTransport{
		options: options,
		client:  mqtt.NewClient(clientOptions),
	}
}

func (t *mqttTransport) Connect(ctx context.Context) error {
	log.Debug().Str("broker", t.options.URL).Msg("Connecting to MQTT")

	return waitToken(ctx, t.client.Connect())
}

func (t *mqttTransport) Subscribe(topic string, handler MessageHandler) error {
	token := t.client.Subscribe(topic, 0, func(_ mqtt.Client, message mqtt.Message) {
		handler(message.Topic(), message.Payload())
	})
	if !token.WaitTimeout(t.options.ConnectTimeout) {
		return errSubscribeTimeout
	}

	return token.Error()
}

// Disconnect always returns nil, paho's Disconnect does not report errors
func (t *mqttTransport) Disconnect() error {
	t.client.Disconnect(250)
	return nil
}

func (t *mqttTransport) IsConnected() bool {
	return t.client.IsConnected()
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
