package digitraffic

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// MessageHandler receives one message with the concrete topic it arrived on
type MessageHandler func(topic string, payload []byte)

// Transport is a publish/subscribe connection to the streaming feed. It does
// not reconnect by itself: after OnConnectionLost fires the owner decides
// when to Connect again, and subscriptions must be made again.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, handler MessageHandler) error
	Disconnect() error
	IsConnected() bool
}

type TransportOptions struct {
	URL      string
	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration
	KeepAlive      time.Duration

	OnConnectionLost func(err error)
}

// NewTransport picks the protocol from the URL scheme. MQTT is used for
// ws, wss, tcp, ssl, mqtt and mqtts URLs; STOMP for stomp and stomp+ssl.
func NewTransport(options TransportOptions) (Transport, error) {
	parsed, err := url.Parse(options.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream url: %w", err)
	}

	if options.ClientID == "" {
		options.ClientID = DefaultClientName + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	if options.ConnectTimeout == 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	if options.KeepAlive == 0 {
		options.KeepAlive = DefaultKeepAlive
	}
	if options.OnConnectionLost == nil {
		options.OnConnectionLost = func(error) {}
	}

	switch parsed.Scheme {
	case "ws", "wss", "tcp", "ssl", "mqtt", "mqtts":
		return newMQTTTransport(options), nil
	case "stomp", "stomp+ssl":
		return newStompTransport(options, parsed), nil
	default:
		return nil, fmt.Errorf("unsupported stream scheme %q", parsed.Scheme)
	}
}
