package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

func TestNewServerAddress(t *testing.T) {
	srv := NewServer(config.AppConfig{Host: "127.0.0.1", Port: "8765"}, http.NotFoundHandler())
	assert.Equal(t, "127.0.0.1:8765", srv.Addr)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	srv := NewServer(config.AppConfig{Host: "127.0.0.1", Port: "0"}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, logger.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
