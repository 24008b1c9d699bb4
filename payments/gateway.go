// Package payments talks to the card payment provider.
package payments

import (
	"context"
	"errors"
)

// Currency is the store currency, charged in minor units (paisa).
const Currency = "pkr"

const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Intent is a provider payment intent reduced to what the shop needs.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"clientSecret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

type IntentRequest struct {
	Amount      int64
	CustomerID  string
	Description string
	Metadata    map[string]string
}

// Gateway creates and looks up payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CreateCustomer(ctx context.Context, email, name string) (string, error)
}
