package digitraffic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/vesseltracker/pkg/ais"
	"go.uber.org/goleak"
)

const (
	waitTimeout  = 5 * time.Second
	pollInterval = 5 * time.Millisecond

	locationPayload = `{"time":1700000000,"sog":10.7,"cog":326.6,"navStat":0,"rot":0,"posAcc":true,"raim":false,"heading":325,"lon":24.9,"lat":60.1}`
	metadataPayload = `{"timestamp":1700000000000,"destination":"HELSINKI","name":"SILJA SERENADE","draught":68,"eta":0,"posType":1,"refA":10,"refB":20,"refC":5,"refD":5,"callSign":"OJMT","imo":9999999,"type":60}`
)

type fakeTransport struct {
	mu              sync.Mutex
	connectErrs     []error
	loseOnSubscribe int
	connects        int
	disconnects     int
	connected       bool
	subscriptions   []string
	handlers        map[string]MessageHandler
	onLost          func(error)
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	f.connected = true
	f.handlers = map[string]MessageHandler{}

	return nil
}

func (f *fakeTransport) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()

	f.subscriptions = append(f.subscriptions, topic)
	f.handlers[topic] = handler

	lose := f.loseOnSubscribe > 0
	if lose {
		f.loseOnSubscribe--
		f.connected = false
	}
	f.mu.Unlock()

	if lose {
		f.onLost(errors.New("connection reset during subscribe"))
	}

	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects++
	f.connected = false

	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *fakeTransport) loseConnection() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()

	f.onLost(errors.New("connection reset"))
}

// deliver mimics the broker routing a message to the matching subscription
func (f *fakeTransport) deliver(filter string, topic string, payload string) {
	f.mu.Lock()
	handler := f.handlers[filter]
	f.mu.Unlock()

	if handler != nil {
		handler(topic, []byte(payload))
	}
}

func (f *fakeTransport) counts() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connects, append([]string{}, f.subscriptions...)
}

type streamFixture struct {
	stream    *Stream
	transport *fakeTransport
	clock     *testclock.Clock
}

func newStreamFixture(t *testing.T, queueSize int, connectErrs ...error) *streamFixture {
	t.Helper()

	return newStreamFixtureWithTransport(t, queueSize, &fakeTransport{connectErrs: connectErrs})
}

func newStreamFixtureWithTransport(t *testing.T, queueSize int, fake *fakeTransport) *streamFixture {
	t.Helper()

	clk := testclock.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	stream, err := NewStream(StreamConfig{
		Transport:             TransportOptions{URL: "wss://example.invalid/mqtt"},
		NotificationQueueSize: queueSize,
		Clock:                 clk,
		Registerer:            prometheus.NewRegistry(),
		NewTransport: func(options TransportOptions) (Transport, error) {
			fake.onLost = options.OnConnectionLost
			return fake, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(stream.Destroy)

	return &streamFixture{stream: stream, transport: fake, clock: clk}
}

func (f *streamFixture) waitForState(t *testing.T, state State) {
	t.Helper()

	require.Eventually(t, func() bool { return f.stream.State() == state }, waitTimeout, pollInterval,
		"stream never reached %s, is %s", state, f.stream.State())
}

func TestStreamConnectsAndSubscribes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newStreamFixture(t, 10)
	f.waitForState(t, StateConnected)

	connects, subscriptions := f.transport.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, Topics, subscriptions)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.connectionsOpened))

	f.stream.Destroy()
	f.stream.Destroy()

	assert.False(t, f.transport.IsConnected())
	assert.Equal(t, StateDisconnected, f.stream.State())
}

func TestStreamReconnectsAfterRetryInterval(t *testing.T) {
	f := newStreamFixture(t, 10)
	f.waitForState(t, StateConnected)

	f.transport.loseConnection()
	assert.Equal(t, StateReconnectScheduled, f.stream.State())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.connectionsLost))

	// a duplicate lost signal is ignored
	f.transport.onLost(errors.New("again"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.connectionsLost))

	require.NoError(t, f.clock.WaitAdvance(DefaultRetryInterval-time.Second, waitTimeout, 1))
	assert.Never(t, func() bool {
		connects, _ := f.transport.counts()
		return connects > 1
	}, 100*time.Millisecond, pollInterval)
	assert.Equal(t, StateReconnectScheduled, f.stream.State())

	f.clock.Advance(time.Second)
	f.waitForState(t, StateConnected)

	connects, subscriptions := f.transport.counts()
	assert.Equal(t, 2, connects)
	assert.Equal(t, append(append([]string{}, Topics...), Topics...), subscriptions)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.stream.metrics.connectionsOpened))
}

func TestStreamReconnectsWhenLostDuringSubscribe(t *testing.T) {
	f := newStreamFixtureWithTransport(t, 10, &fakeTransport{loseOnSubscribe: 1})
	f.waitForState(t, StateReconnectScheduled)

	assert.Equal(t, float64(0), testutil.ToFloat64(f.stream.metrics.connectionsOpened))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.stream.metrics.connectionsLost))

	require.NoError(t, f.clock.WaitAdvance(DefaultRetryInterval, waitTimeout, 1))
	f.waitForState(t, StateConnected)

	connects, subscriptions := f.transport.counts()
	assert.Equal(t, 2, connects)
	assert.Equal(t, append(append([]string{}, Topics...), Topics...), subscriptions)
	assert.True(t, f.transport.IsConnected())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.connectionsOpened))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.stream.metrics.connectionsLost))
}

func TestStreamRetriesFailedConnect(t *testing.T) {
	f := newStreamFixture(t, 10, errors.New("refused"), errors.New("refused"))
	f.waitForState(t, StateReconnectScheduled)

	require.NoError(t, f.clock.WaitAdvance(DefaultRetryInterval, waitTimeout, 1))
	require.Eventually(t, func() bool {
		connects, _ := f.transport.counts()
		return connects == 2
	}, waitTimeout, pollInterval)
	f.waitForState(t, StateReconnectScheduled)

	require.NoError(t, f.clock.WaitAdvance(DefaultRetryInterval, waitTimeout, 1))
	f.waitForState(t, StateConnected)

	connects, subscriptions := f.transport.counts()
	assert.Equal(t, 3, connects)
	assert.Equal(t, Topics, subscriptions)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.stream.metrics.connectionsLost))
}

func TestStreamDecodesMessages(t *testing.T) {
	f := newStreamFixture(t, 10)
	f.waitForState(t, StateConnected)

	events := make(chan ais.Event, 10)
	f.stream.Subscribe(func(e ais.Event) { events <- e })

	f.transport.deliver(LocationTopic, "vessels-v2/230123456/location", locationPayload)
	f.transport.deliver(MetadataTopic, "vessels-v2/230123456/metadata", metadataPayload)
	f.transport.deliver(StatusTopic, StatusTopic, `{"status":"ok"}`)

	var received []ais.Event
	for len(received) < 2 {
		select {
		case e := <-events:
			received = append(received, e)
		case <-time.After(waitTimeout):
			t.Fatal("timed out waiting for events")
		}
	}

	require.IsType(t, ais.LocationUpdated{}, received[0])
	location := received[0].(ais.LocationUpdated).Location
	assert.Equal(t, ais.MMSI("230123456"), location.MMSI)
	assert.Equal(t, f.clock.Now(), location.Timestamp)
	assert.Equal(t, ais.Position{Latitude: 60.1, Longitude: 24.9, Accurate: true}, location.Position)
	assert.Equal(t, ais.Heading(325), location.Heading)

	require.IsType(t, ais.MetadataUpdated{}, received[1])
	metadata := received[1].(ais.MetadataUpdated).Metadata
	assert.Equal(t, "SILJA SERENADE", metadata.Name)
	assert.Equal(t, "OJMT", metadata.CallSign)
	assert.Equal(t, 60, metadata.ShipType)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), metadata.Timestamp)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.received.WithLabelValues(string(KindStatus))))
}

func TestStreamDropsInvalidMessages(t *testing.T) {
	f := newStreamFixture(t, 10)
	f.waitForState(t, StateConnected)

	events := make(chan ais.Event, 10)
	f.stream.Subscribe(func(e ais.Event) { events <- e })

	f.transport.deliver(LocationTopic, "vessels-v2/230123456/location", `{"lat":91,"lon":0,"heading":0}`)
	f.transport.deliver(LocationTopic, "vessels-v2/2301/location", locationPayload)
	f.transport.deliver(MetadataTopic, "vessels-v2/230123456/metadata", `not json`)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.stream.metrics.decodeErrors.WithLabelValues(string(KindLocation))))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.decodeErrors.WithLabelValues(string(KindMetadata))))

	f.transport.deliver(LocationTopic, "vessels-v2/230123456/location", locationPayload)
	select {
	case e := <-events:
		assert.Equal(t, ais.MMSI("230123456"), e.MMSI())
	case <-time.After(waitTimeout):
		t.Fatal("valid message after invalid ones was not delivered")
	}
	assert.Empty(t, events)
}

func TestStreamDropsMessagesWhileDisconnected(t *testing.T) {
	f := newStreamFixture(t, 10)
	f.waitForState(t, StateConnected)

	events := make(chan ais.Event, 10)
	f.stream.Subscribe(func(e ais.Event) { events <- e })

	f.transport.loseConnection()
	f.transport.deliver(LocationTopic, "vessels-v2/230123456/location", locationPayload)

	assert.Never(t, func() bool { return len(events) > 0 }, 100*time.Millisecond, pollInterval)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.stream.metrics.received.WithLabelValues(string(KindLocation))))
}

func TestStreamDropsNotificationsWhenQueueIsFull(t *testing.T) {
	f := newStreamFixture(t, 1)
	f.waitForState(t, StateConnected)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	f.stream.Subscribe(func(ais.Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	// first event occupies the worker
	f.transport.deliver(LocationTopic, "vessels-v2/230123456/location", locationPayload)
	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("notification worker never started")
	}

	// second fills the queue, third has nowhere to go
	f.transport.deliver(LocationTopic, "vessels-v2/230123457/location", locationPayload)
	f.transport.deliver(LocationTopic, "vessels-v2/230123458/location", locationPayload)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.stream.metrics.notificationsDropped))
	close(release)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnect-scheduled", StateReconnectScheduled.String())
}

func TestSourceHealth(t *testing.T) {
	f := newStreamFixture(t, 10)
	source := &Source{Client: NewClient(DefaultLocationsURL, DefaultMetadataURL, DefaultClientName), Stream: f.stream}

	f.waitForState(t, StateConnected)
	assert.NoError(t, source.Health())

	f.transport.loseConnection()
	assert.ErrorIs(t, source.Health(), ErrNotConnected)

	assert.NoError(t, MockSource{}.Health())
}
