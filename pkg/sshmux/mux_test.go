package sshmux

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/nlsh-dev/nlsh/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a transport stand-in that tracks liveness and closure.
type fakeClient struct {
	key    string
	alive  bool
	closed bool
	mu     sync.Mutex
}

func (f *fakeClient) Exec(cmd string) ([]byte, []byte, int, error) {
	return []byte("ok"), nil, 0, nil
}

func (f *fakeClient) ExecStreamContext(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	_, _ = stdout.Write([]byte("ok"))
	return 0, nil
}

func (f *fakeClient) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive && !f.closed
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) Key() string { return f.key }

func newTestMux(dial DialFunc) *Mux {
	m := New(nil)
	m.SetDialFunc(dial)
	return m
}

func TestMux_ReusesTransport(t *testing.T) {
	var dials int32
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		atomic.AddInt32(&dials, 1)
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	target := config.Target{Host: "10.0.0.1", Port: 22, User: "deploy"}

	first, err := mux.Connect(target)
	require.NoError(t, err)
	second, err := mux.Connect(target)
	require.NoError(t, err)

	assert.Same(t, first, second, "same target should reuse one transport")
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
	assert.Equal(t, 1, mux.Size())
}

func TestMux_KeyedByUserHostPort(t *testing.T) {
	var dials int32
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		atomic.AddInt32(&dials, 1)
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	a := config.Target{Host: "10.0.0.1", Port: 22, User: "deploy"}
	b := config.Target{Host: "10.0.0.1", Port: 22, User: "root"}

	_, err := mux.Connect(a)
	require.NoError(t, err)
	_, err = mux.Connect(b)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&dials), "different user means a different transport")
	assert.Equal(t, 2, mux.Size())
}

func TestMux_RedialsDeadTransport(t *testing.T) {
	var dials int32
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		atomic.AddInt32(&dials, 1)
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	target := config.Target{Host: "10.0.0.1", User: "deploy"}

	first, err := mux.Connect(target)
	require.NoError(t, err)
	first.(*fakeClient).alive = false

	second, err := mux.Connect(target)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
	assert.True(t, first.(*fakeClient).closed, "dead transport should be closed before redial")
}

func TestMux_DialFailure(t *testing.T) {
	stubSSHConfig(t, "")
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		return nil, &ConnectionError{Target: s.Key(), Cause: errors.New("connection refused")}
	})

	_, err := mux.Connect(config.Target{Host: "10.0.0.1", User: "deploy"})
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "deploy@10.0.0.1:22", connErr.Target)
	assert.Equal(t, 0, mux.Size(), "failed dial must not leave an entry live")
}

func TestMux_ConcurrentConnectSerializes(t *testing.T) {
	var dials int32
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		atomic.AddInt32(&dials, 1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	target := config.Target{Host: "10.0.0.1", User: "deploy"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mux.Connect(target)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dials),
		"concurrent calls to the same target must not race to create two transports")
}

func TestMux_Close(t *testing.T) {
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	target := config.Target{Host: "10.0.0.1", User: "deploy"}

	// Close with no transport is a no-op
	require.NoError(t, mux.Close(target))

	client, err := mux.Connect(target)
	require.NoError(t, err)
	require.NoError(t, mux.Close(target))

	assert.True(t, client.(*fakeClient).closed)
	assert.Equal(t, 0, mux.Size())
}

func TestMux_CloseAll(t *testing.T) {
	mux := newTestMux(func(s Settings, timeout time.Duration) (Client, error) {
		return &fakeClient{key: s.Key(), alive: true}, nil
	})

	_, err := mux.Connect(config.Target{Host: "a", User: "u"})
	require.NoError(t, err)
	_, err = mux.Connect(config.Target{Host: "b", User: "u"})
	require.NoError(t, err)

	mux.CloseAll()
	assert.Equal(t, 0, mux.Size())
}

// stubSSHConfig points Resolve at decoded fixture content instead of the
// machine's ~/.ssh/config, restoring the real lookup afterwards.
func stubSSHConfig(t *testing.T, content string) {
	t.Helper()
	cfg, err := ssh_config.Decode(strings.NewReader(content))
	require.NoError(t, err)
	prev := sshConfigGet
	sshConfigGet = func(alias, key string) string {
		value, err := cfg.Get(alias, key)
		if err != nil {
			return ""
		}
		return value
	}
	t.Cleanup(func() { sshConfigGet = prev })
}

func TestSettings_Key(t *testing.T) {
	stubSSHConfig(t, "")

	tests := []struct {
		name   string
		target config.Target
		want   string
	}{
		{
			name:   "explicit everything",
			target: config.Target{Host: "192.168.1.50", Port: 2222, User: "riley"},
			want:   "riley@192.168.1.50:2222",
		},
		{
			name:   "default port",
			target: config.Target{Host: "192.168.1.50", User: "riley"},
			want:   "riley@192.168.1.50:22",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.target).Key())
		})
	}
}

func TestResolve_FillsBlanksFromSSHConfig(t *testing.T) {
	stubSSHConfig(t, `Host web
  HostName 10.1.2.3
  Port 2200
  User deploy
`)

	got := Resolve(config.Target{Host: "web"})
	assert.Equal(t, "10.1.2.3", got.Host)
	assert.Equal(t, 2200, got.Port)
	assert.Equal(t, "deploy", got.User)

	// Explicit target fields beat the config file.
	got = Resolve(config.Target{Host: "web", Port: 22, User: "root"})
	assert.Equal(t, 22, got.Port)
	assert.Equal(t, "root", got.User)
}

func TestConnectionError_Format(t *testing.T) {
	err := &ConnectionError{Target: "deploy@host:22", Cause: errors.New("auth failed")}
	assert.Contains(t, err.Error(), "deploy@host:22")
	assert.Contains(t, err.Error(), "auth failed")
	assert.ErrorContains(t, errors.Unwrap(err), "auth failed")
}
