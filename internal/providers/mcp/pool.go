package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type TransportFactory func(TransportType) (Transport, error)

// Pool owns the connected MCP sessions by server name.
type Pool struct {
	mu               sync.RWMutex
	clients          map[string]*ManagedClient
	transportFactory TransportFactory
}

func NewPool() *Pool {
	return NewPoolWithFactory(NewTransport)
}

func NewPoolWithFactory(factory TransportFactory) *Pool {
	return &Pool{
		clients:          make(map[string]*ManagedClient),
		transportFactory: factory,
	}
}

func (p *Pool) Add(ctx context.Context, name string, cfg ServerConfig) (*ManagedClient, error) {
	tType, err := cfg.GetTransport()
	if err != nil {
		return nil, err
	}

	transport, err := p.transportFactory(tType)
	if err != nil {
		return nil, err
	}

	cli, err := transport(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport creation failed: %w", err)
	}

	managed := &ManagedClient{
		Client: cli,
		name:   name,
	}

	p.mu.Lock()
	old, exists := p.clients[name]
	p.clients[name] = managed
	p.mu.Unlock()

	if exists {
		_ = old.Close()
	}
	return managed, nil
}

func (p *Pool) Get(name string) (*ManagedClient, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cli, ok := p.clients[name]
	return cli, ok
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func (p *Pool) Close() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*ManagedClient)
	p.mu.Unlock()

	var errs []error
	for name, cli := range clients {
		if err := cli.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
