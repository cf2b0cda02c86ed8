package memory

import (
	"context"
	"sync"
)

// Presence tracks attached websocket connections within a single process.
type Presence struct {
	mu    sync.Mutex
	owner map[string]string
}

func NewPresence() *Presence {
	return &Presence{owner: make(map[string]string)}
}

func (p *Presence) Acquire(_ context.Context, sessionID, connID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, taken := p.owner[sessionID]; taken {
		return false, nil
	}
	p.owner[sessionID] = connID
	return true, nil
}

func (p *Presence) Refresh(context.Context, string, string) error { return nil }

func (p *Presence) Release(_ context.Context, sessionID, connID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owner[sessionID] == connID {
		delete(p.owner, sessionID)
	}
	return nil
}
