package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway stands in for Stripe when no secret key is configured.
// Intents succeed as soon as they are created.
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]Intent
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{intents: make(map[string]Intent)}
}

func (g *SandboxGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	id := "pi_sandbox_" + uuid.NewString()
	intent := Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Amount:       req.Amount,
		Currency:     Currency,
		Status:       StatusSucceeded,
		Metadata:     req.Metadata,
	}

	g.mu.Lock()
	g.intents[id] = intent
	g.mu.Unlock()
	return &intent, nil
}

func (g *SandboxGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %s not found", id)
	}
	return &intent, nil
}

func (g *SandboxGateway) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	return "cus_sandbox_" + uuid.NewString(), nil
}

// SetStatus overrides the status of an existing intent, e.g. to simulate a
// declined card.
func (g *SandboxGateway) SetStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[id]; ok {
		intent.Status = status
		g.intents[id] = intent
	}
}
