package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planpilot/planpilot-go/routes"
)

// PlanStep is one step of a generated plan.
type PlanStep struct {
	Description string `json:"description"`
	Timeline    string `json:"timeline"`
	Resources   string `json:"resources"`
}

// PlanRisk pairs a risk with its mitigation.
type PlanRisk struct {
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation"`
}

// Plan is a generated plan. Its contents are opaque to the session layer;
// the SDK only moves it over the authenticated pipeline.
type Plan struct {
	Title     string     `json:"title"`
	Objective string     `json:"objective"`
	Steps     []PlanStep `json:"steps"`
	Risks     []PlanRisk `json:"risks"`
}

// PlanMetadata describes how a plan was produced.
type PlanMetadata struct {
	GeneratedAt   time.Time `json:"generatedAt"`
	OriginalInput string    `json:"originalInput"`
}

// PlanRecord is a saved plan as returned by the history endpoint.
type PlanRecord struct {
	ID       uuid.UUID    `json:"id"`
	Plan     Plan         `json:"plan"`
	Metadata PlanMetadata `json:"metadata"`
}

// GenerateResult is the outcome of a plan generation call.
type GenerateResult struct {
	Plan     Plan
	Metadata PlanMetadata
}

// PlansClient provides plan generation and persistence over the
// authenticated pipeline.
type PlansClient struct {
	client *Client
}

func (p *PlansClient) ensureInitialized() error {
	if p == nil || p.client == nil {
		return fmt.Errorf("planpilot: plans client not initialized")
	}
	return nil
}

// Generate produces a plan from free-form input.
func (p *PlansClient) Generate(ctx context.Context, input string) (GenerateResult, error) {
	if err := p.ensureInitialized(); err != nil {
		return GenerateResult{}, err
	}
	if strings.TrimSpace(input) == "" {
		return GenerateResult{}, ConfigError{Reason: "input is required"}
	}
	payload := struct {
		Input string `json:"input"`
	}{Input: input}
	var resp struct {
		Success  bool         `json:"success"`
		Message  string       `json:"message,omitempty"`
		Data     Plan         `json:"data"`
		Metadata PlanMetadata `json:"metadata"`
	}
	if err := p.client.sendAndDecode(ctx, http.MethodPost, routes.PlansGenerate, payload, &resp); err != nil {
		return GenerateResult{}, err
	}
	if !resp.Success {
		return GenerateResult{}, &APIError{Status: http.StatusOK, Message: resp.Message}
	}
	return GenerateResult{Plan: resp.Data, Metadata: resp.Metadata}, nil
}

// Save persists a generated plan together with the input it came from.
func (p *PlansClient) Save(ctx context.Context, plan Plan, originalInput string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	payload := struct {
		PlanData Plan         `json:"planData"`
		Metadata PlanMetadata `json:"metadata"`
	}{
		PlanData: plan,
		Metadata: PlanMetadata{GeneratedAt: time.Now().UTC(), OriginalInput: originalInput},
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
	if err := p.client.sendAndDecode(ctx, http.MethodPost, routes.PlansSave, payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Status: http.StatusOK, Message: resp.Message}
	}
	return nil
}

// History lists previously saved plans, newest first.
func (p *PlansClient) History(ctx context.Context) ([]PlanRecord, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	var resp struct {
		Success bool         `json:"success"`
		Message string       `json:"message,omitempty"`
		Data    []PlanRecord `json:"data"`
	}
	if err := p.client.sendAndDecode(ctx, http.MethodGet, routes.PlansHistory, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Message}
	}
	return resp.Data, nil
}
