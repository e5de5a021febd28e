package digitraffic

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
)

var errNotConnected = errors.New("not connected")

const stompTopicPrefix = "/topic/"

type stompTransport struct {
	options TransportOptions
	address string
	useTLS  bool
	host    string

	mu      sync.Mutex
	conn    *stomp.Conn
	closing atomic.Bool
	lost    *sync.Once

	// serialises delivery across subscriptions, like a single MQTT router
	deliver sync.Mutex
	readers sync.WaitGroup
}

func newStompTransport(options TransportOptions, parsed *url.URL) *stompTransport {
	if options.Username == "" && parsed.User != nil {
		options.Username = parsed.User.Username()
		options.Password, _ = parsed.User.Password()
	}

	return &stompTransport{
		options: options,
		address: parsed.Host,
		useTLS:  parsed.Scheme == "stomp+ssl",
		host:    parsed.Hostname(),
	}
}

func (t *stompTransport) Connect(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: t.options.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return err
	}

	if t.useTLS {
		tlsConn := tls.Client(netConn, &tls.Config{ServerName: t.host})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = netConn.Close()
			return err
		}
		netConn = tlsConn
	}

	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(t.host),
		stomp.ConnOpt.HeartBeat(t.options.KeepAlive, t.options.KeepAlive),
	}
	if t.options.Username != "" {
		stompOptions = append(stompOptions, stomp.ConnOpt.Login(t.options.Username, t.options.Password))
	}

	conn, err := stomp.Connect(netConn, stompOptions...)
	if err != nil {
		_ = netConn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.lost = &sync.Once{}
	t.closing.Store(false)
	t.mu.Unlock()

	return nil
}

func (t *stompTransport) Subscribe(topic string, handler MessageHandler) error {
	t.mu.Lock()
	conn := t.conn
	lost := t.lost
	t.mu.Unlock()

	if conn == nil {
		return errNotConnected
	}

	destination := stompDestination(topic)
	sub, err := conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return err
	}

	t.readers.Add(1)
	go func() {
		defer t.readers.Done()

		for msg := range sub.C {
			if msg.Err != nil {
				t.connectionLost(lost, msg.Err)
				return
			}

			t.deliver.Lock()
			handler(mqttTopic(msg.Destination), msg.Body)
			t.deliver.Unlock()
		}

		t.connectionLost(lost, io.EOF)
	}()

	log.Debug().Str("destination", destination).Msg("Subscribed to STOMP destination")

	return nil
}

func (t *stompTransport) connectionLost(lost *sync.Once, err error) {
	if t.closing.Load() {
		return
	}

	lost.Do(func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()

		t.options.OnConnectionLost(err)
	})
}

func (t *stompTransport) Disconnect() error {
	t.closing.Store(true)

	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	var err error
	if conn != nil {
		if err = conn.Disconnect(); err != nil {
			_ = conn.MustDisconnect()
		}
	}

	t.readers.Wait()

	return err
}

func (t *stompTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.closing.Load()
}

// stompDestination maps an MQTT topic filter onto a broker destination using
// '.' separators and '*' single level wildcards
func stompDestination(topic string) string {
	destination := strings.ReplaceAll(topic, "/", ".")
	destination = strings.ReplaceAll(destination, "+", "*")

	return stompTopicPrefix + destination
}

func mqttTopic(destination string) string {
	return strings.ReplaceAll(strings.TrimPrefix(destination, stompTopicPrefix), ".", "/")
}
