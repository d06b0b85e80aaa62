package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/config"
)

func startManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestManager_Lifecycle(t *testing.T) {
	m := startManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	assert.True(t, m.IsRunning())
	assert.Equal(t, "127.0.0.1:0", m.Addr())

	addr := m.ListenAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()), "shutdown is idempotent")
	assert.False(t, m.IsRunning())
	assert.Empty(t, m.ListenAddr())

	err = m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestManager_ShutdownDrainsInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	m := startManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte("reply"))
	}))

	type result struct {
		body string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Post("http://"+m.ListenAddr()+"/api/http_trigger", "application/json", nil)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		done <- result{body: string(b)}
	}()

	<-entered
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- m.Shutdown(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "reply", r.body)
	assert.NoError(t, <-shutdownErr)
}

func TestManager_Wait(t *testing.T) {
	t.Run("returns nil when the context ends", func(t *testing.T) {
		m := startManager(t, http.NewServeMux())
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.NoError(t, m.Wait(ctx))
		select {
		case err := <-m.Errors():
			t.Fatalf("unexpected server error: %v", err)
		default:
		}
	})

	t.Run("surfaces a TLS serve failure", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Addr = "127.0.0.1:0"
		cfg.TLSCertFile = filepath.Join(t.TempDir(), "missing.crt")
		cfg.TLSKeyFile = filepath.Join(t.TempDir(), "missing.key")
		m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
		require.NotNil(t, m.server.TLSConfig)
		assert.Equal(t, uint16(tls.VersionTLS12), m.server.TLSConfig.MinVersion)

		require.NoError(t, m.Start())
		t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.Error(t, m.Wait(ctx), "unreadable certificate must surface as a server error")
	})
}

func TestConfigFromServer(t *testing.T) {
	cfg := ConfigFromServer(config.ServerConfig{
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    20 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		TLSCertFile:     "/etc/moneta/tls.crt",
	}, 9091)

	assert.Equal(t, ":9091", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 20*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.TLSEnabled(), "a certificate without a key does not enable TLS")

	assert.Equal(t, DefaultConfig(), ConfigFromServer(config.ServerConfig{}, 8080))
}
