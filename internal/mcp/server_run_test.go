package mcp

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Run_StdioMode(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context"),
				"Run() error = %v, expected context-related error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stdio transport did not stop after cancellation")
	}
}

func TestServer_Run_ServerMode(t *testing.T) {
	server, _ := newTestServer(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	server.config.Mode = "server"
	server.config.Port = port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", server.config.Address())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond, "SSE transport never started listening")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("SSE transport did not stop after cancellation")
	}
}

func TestServer_Run_ServerMode_AddressInUse(t *testing.T) {
	server, _ := newTestServer(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	server.config.Mode = "server"
	server.config.Port = listener.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = server.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to serve SSE")
}

func TestServer_Run_InvalidMode(t *testing.T) {
	server, _ := newTestServer(t)
	server.config.Mode = "invalid"

	err := server.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
