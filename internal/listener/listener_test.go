package listener

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apm-collector/internal/infrastructure/monitoring"
)

// fakeServer accepts nothing; Serve blocks until Stop.
type fakeServer struct {
	addr    string
	stopped chan struct{}
	once    sync.Once
	served  atomic.Int32
}

type fakeDriver struct {
	created atomic.Int32
}

func (d *fakeDriver) New(host string, port int) *fakeServer {
	d.created.Add(1)
	return &fakeServer{addr: key(host, port), stopped: make(chan struct{})}
}

func (d *fakeDriver) Serve(s *fakeServer, l net.Listener) error {
	s.served.Add(1)
	<-s.stopped
	return l.Close()
}

func (d *fakeDriver) Stop(ctx context.Context, s *fakeServer) error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

func countingBinder(calls *atomic.Int32) BindFunc {
	return func(network, address string) (net.Listener, error) {
		calls.Add(1)
		return net.Listen(network, address)
	}
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	var binds atomic.Int32
	driver := &fakeDriver{}
	m := NewManager[*fakeServer]("fake", driver, WithBinder(countingBinder(&binds)))
	defer m.Close(context.Background())

	const callers = 32
	handles := make([]*Endpoint[*fakeServer], callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i], errs[i] = m.CreateIfAbsent("127.0.0.1", 0)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
	assert.Equal(t, int32(1), binds.Load())
	assert.Equal(t, int32(1), driver.created.Load())
	assert.Len(t, m.Endpoints(), 1)
}

func TestDistinctPairsBindSeparately(t *testing.T) {
	m := NewManager[*fakeServer]("fake", &fakeDriver{})
	defer m.Close(context.Background())

	a, err := m.CreateIfAbsent("127.0.0.1", 0)
	require.NoError(t, err)
	b, err := m.CreateIfAbsent("localhost", 0)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "127.0.0.1", a.Host())
	assert.Equal(t, 0, a.Port())
	assert.NotEqual(t, a.Addr(), b.Addr())
}

func TestBindFailureStoresNothing(t *testing.T) {
	fail := true
	var binds atomic.Int32
	bind := func(network, address string) (net.Listener, error) {
		binds.Add(1)
		if fail {
			return nil, errors.New("address already in use")
		}
		return net.Listen(network, address)
	}
	m := NewManager[*fakeServer]("fake", &fakeDriver{}, WithBinder(bind))
	defer m.Close(context.Background())

	e, err := m.CreateIfAbsent("127.0.0.1", 0)
	assert.ErrorIs(t, err, ErrBind)
	assert.Nil(t, e)
	assert.Empty(t, m.Endpoints())

	// the next caller attempts its own bind rather than seeing a cached failure
	fail = false
	e, err = m.CreateIfAbsent("127.0.0.1", 0)
	require.NoError(t, err)
	assert.NotNil(t, e)
	assert.Equal(t, int32(2), binds.Load())
}

func TestBindConflict(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	m := NewManager[*fakeServer]("fake", &fakeDriver{})
	defer m.Close(context.Background())

	_, err = m.CreateIfAbsent("127.0.0.1", port)
	assert.ErrorIs(t, err, ErrBind)
}

func TestStartAllAndClose(t *testing.T) {
	metrics := monitoring.NewMetrics(nil)
	m := NewManager[*fakeServer]("fake", &fakeDriver{}, WithMetrics(metrics))

	before, err := m.CreateIfAbsent("127.0.0.1", 0)
	require.NoError(t, err)
	require.NoError(t, m.StartAll())
	require.Eventually(t, func() bool { return before.Server().served.Load() == 1 }, time.Second, 5*time.Millisecond)

	// an endpoint added after StartAll serves immediately
	after, err := m.CreateIfAbsent("localhost", 0)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return after.Server().served.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.Listeners.WithLabelValues("fake")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))
	assert.Equal(t, 0.0, promtest.ToFloat64(metrics.Listeners.WithLabelValues("fake")))

	_, err = m.CreateIfAbsent("127.0.0.1", 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.StartAll(), ErrClosed)
}

func TestCloseReleasesUnservedListener(t *testing.T) {
	m := NewManager[*fakeServer]("fake", &fakeDriver{})
	e, err := m.CreateIfAbsent("127.0.0.1", 0)
	require.NoError(t, err)
	addr := e.Addr()

	require.NoError(t, m.Close(context.Background()))

	l, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port should be free after Close")
	l.Close()
}
