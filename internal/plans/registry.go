package plans

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Plan is one entry of the pricing catalog the marketing site renders.
// Billing reconciliation only distinguishes free from paid; the catalog may
// list more tiers than the webhook flow ever assigns.
type Plan struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	PriceMonthlyCents int      `json:"price_monthly_cents"`
	PriceYearlyCents  int      `json:"price_yearly_cents"`
	Features          []string `json:"features"`
	ProviderProducts  []string `json:"provider_products"`
	DailyMessageLimit int      `json:"daily_message_limit"` // 0 = unlimited
	Highlight         bool     `json:"highlight"`
}

type catalogFile struct {
	Plans []Plan `json:"plans"`
}

type Registry struct {
	mu    sync.RWMutex
	plans map[string]*Plan
	order []string
}

func NewRegistry() *Registry {
	return &Registry{plans: make(map[string]*Plan)}
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Plans {
		registry.Register(&file.Plans[i])
	}
	return registry, nil
}

func (r *Registry) Register(plan *Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[plan.ID]; !ok {
		r.order = append(r.order, plan.ID)
	}
	r.plans[plan.ID] = plan
}

func (r *Registry) Get(id string) *Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.plans[id]
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plans[id]
	return ok
}

// All returns plans in catalog order.
func (r *Registry) All() []*Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Plan, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.plans[id])
	}
	return result
}

// DailyMessageLimit returns the chat quota for a tier; 0 means unlimited.
// Unknown tiers fall back to the free plan's limit.
func (r *Registry) DailyMessageLimit(tier string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if plan, ok := r.plans[tier]; ok {
		return plan.DailyMessageLimit
	}
	if free, ok := r.plans["free"]; ok {
		return free.DailyMessageLimit
	}
	return 0
}
