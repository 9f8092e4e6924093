package mcp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu       sync.Mutex
	tools    []mcpproto.Tool
	listErr  error
	handler  func(req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error)
	requests []mcpproto.CallToolRequest
	closed   atomic.Int32
	closeErr error
}

func (f *fakeClient) ListTools(ctx context.Context, req mcpproto.ListToolsRequest) (*mcpproto.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcpproto.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeClient) CallTool(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeClient) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

func staticFactory(cli Client, err error) TransportFactory {
	return func(TransportType) (Transport, error) {
		return func(ctx context.Context, cfg ServerConfig) (Client, error) {
			if err != nil {
				return nil, err
			}
			return cli, nil
		}, nil
	}
}

func TestPool_Add(t *testing.T) {
	tests := []struct {
		name       string
		factory    TransportFactory
		cfg        ServerConfig
		wantErr    bool
		wantInPool bool
	}{
		{
			name:       "successful add",
			factory:    staticFactory(&fakeClient{}, nil),
			cfg:        ServerConfig{Command: "echo"},
			wantInPool: true,
		},
		{
			name:    "invalid config",
			factory: staticFactory(&fakeClient{}, nil),
			cfg:     ServerConfig{},
			wantErr: true,
		},
		{
			name: "unsupported transport",
			factory: func(TransportType) (Transport, error) {
				return nil, errors.New("unsupported transport")
			},
			cfg:     ServerConfig{Command: "echo"},
			wantErr: true,
		},
		{
			name:    "connection error",
			factory: staticFactory(nil, errors.New("connection failed")),
			cfg:     ServerConfig{Command: "echo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoolWithFactory(tt.factory)

			cli, err := p.Add(context.Background(), "server", tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cli)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "server", cli.Name())
			}

			_, ok := p.Get("server")
			assert.Equal(t, tt.wantInPool, ok)
		})
	}
}

func TestPool_AddReplacesAndClosesOld(t *testing.T) {
	first := &fakeClient{}
	p := NewPoolWithFactory(staticFactory(first, nil))
	_, err := p.Add(context.Background(), "server", ServerConfig{Command: "a"})
	require.NoError(t, err)

	second := &fakeClient{}
	p.transportFactory = staticFactory(second, nil)
	_, err = p.Add(context.Background(), "server", ServerConfig{Command: "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, int32(1), first.closed.Load())
	assert.Equal(t, int32(0), second.closed.Load())
}

func TestPool_Close(t *testing.T) {
	ok := &fakeClient{}
	bad := &fakeClient{closeErr: errors.New("stuck")}

	p := NewPoolWithFactory(staticFactory(ok, nil))
	_, err := p.Add(context.Background(), "ok", ServerConfig{Command: "a"})
	require.NoError(t, err)
	p.transportFactory = staticFactory(bad, nil)
	_, err = p.Add(context.Background(), "bad", ServerConfig{Command: "b"})
	require.NoError(t, err)

	err = p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")
	assert.Equal(t, 0, p.Len())

	// Closing twice must not reach the sessions again.
	require.NoError(t, p.Close())
	assert.Equal(t, int32(1), ok.closed.Load())
}

func TestManagedClient_CloseOnce(t *testing.T) {
	inner := &fakeClient{}
	mc := &ManagedClient{Client: inner, name: "x"}

	require.NoError(t, mc.Close())
	require.NoError(t, mc.Close())
	assert.True(t, mc.IsClosed())
	assert.Equal(t, int32(1), inner.closed.Load())

	assert.NoError(t, (&ManagedClient{}).Close())
}
