package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"vintrail/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	plans  map[string]model.Plan // id -> plan
	byUser map[string][]string   // userId -> plan ids, insertion order

	subs map[string]model.Subscription // id -> subscription

	deliveries  map[string]*memDelivery // id -> delivery state
	deliverySeq []string                // insertion order

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		plans:      map[string]model.Plan{},
		byUser:     map[string][]string{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
		now:        time.Now,
	}
}

// memDelivery augments WebhookDelivery with scheduling state
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
}

// expireStaleLocked flips isActive on any plan whose window has passed.
// Reads call this so expiry never depends on a background sweep.
func (m *Memory) expireStaleLocked(userID string) {
	now := m.now()
	for _, id := range m.byUser[userID] {
		p := m.plans[id]
		if p.IsActive && p.Expired(now) {
			p.IsActive = false
			m.plans[id] = p
		}
	}
}

func (m *Memory) GetActiveDraft(ctx context.Context, userID string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireStaleLocked(userID)
	for _, id := range m.byUser[userID] {
		p := m.plans[id]
		if p.IsActive && p.Draft() {
			return clonePlan(p), nil
		}
	}
	return model.Plan{}, ErrNotFound
}

func (m *Memory) UpsertDraft(ctx context.Context, userID string, in model.DraftInput) (model.Plan, error) {
	if len(in.Vineyards) == 0 || len(in.Vineyards) > model.MaxVineyards {
		return model.Plan{}, ErrInvalidDraft
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireStaleLocked(userID)

	title := in.Title
	if title == "" {
		title = model.DeriveTitle(in.Vineyards)
	}
	var restaurants []model.RestaurantStop
	if in.Restaurant != nil {
		restaurants = []model.RestaurantStop{*in.Restaurant}
	}
	now := m.now()

	for _, id := range m.byUser[userID] {
		p := m.plans[id]
		if !p.IsActive || !p.Draft() {
			continue
		}
		// Mutate the existing draft in place: full replace, not merge.
		p.Title = title
		p.Vineyards = append([]model.VineyardStop(nil), in.Vineyards...)
		p.Restaurants = restaurants
		p.ExpiresAt = nil
		p.UpdatedAt = now
		m.plans[id] = p
		return clonePlan(p), nil
	}

	p := model.Plan{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Vineyards:   append([]model.VineyardStop(nil), in.Vineyards...),
		Restaurants: restaurants,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.plans[p.ID] = p
	m.byUser[userID] = append(m.byUser[userID], p.ID)
	return clonePlan(p), nil
}

func (m *Memory) ConfirmPlan(ctx context.Context, userID, planID string, ttl time.Duration) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID {
		return model.Plan{}, ErrNotFound
	}
	now := m.now()
	if p.Expired(now) {
		p.IsActive = false
		m.plans[planID] = p
		return model.Plan{}, ErrExpired
	}
	if p.ConfirmedAt == nil {
		t := now
		p.ConfirmedAt = &t
	}
	// TTL is only set once, so a repeated confirm never pushes expiry out.
	if p.ExpiresAt == nil {
		t := now.Add(ttl)
		p.ExpiresAt = &t
	}
	p.UpdatedAt = now
	m.plans[planID] = p
	return clonePlan(p), nil
}

func (m *Memory) GetPlan(ctx context.Context, userID, planID string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID {
		return model.Plan{}, ErrNotFound
	}
	if p.Expired(m.now()) {
		p.IsActive = false
		m.plans[planID] = p
		return model.Plan{}, ErrNotFound
	}
	return clonePlan(p), nil
}

func (m *Memory) ListConfirmed(ctx context.Context, userID string) ([]model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireStaleLocked(userID)
	now := m.now()
	out := []model.Plan{}
	for _, id := range m.byUser[userID] {
		p := m.plans[id]
		if p.ConfirmedAt != nil && !p.Expired(now) {
			out = append(out, clonePlan(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfirmedAt.After(*out[j].ConfirmedAt) })
	return out, nil
}

func (m *Memory) UpdateStopTime(ctx context.Context, userID, planID, stopID, at string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID {
		return model.Plan{}, ErrNotFound
	}
	if p.Expired(m.now()) {
		p.IsActive = false
		m.plans[planID] = p
		return model.Plan{}, ErrNotFound
	}
	p = clonePlan(p)
	if !applyStopTime(&p, stopID, at) {
		return model.Plan{}, ErrNotFound
	}
	p.UpdatedAt = m.now()
	m.plans[planID] = p
	return clonePlan(p), nil
}

func (m *Memory) UpdateCustomOrder(ctx context.Context, userID, planID string, order []model.OrderEntry) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID {
		return model.Plan{}, ErrNotFound
	}
	if p.Expired(m.now()) {
		p.IsActive = false
		m.plans[planID] = p
		return model.Plan{}, ErrNotFound
	}
	// Wholesale replace. Entries referencing stops that no longer exist are
	// kept; the ordering engine tolerates partial or stale orders.
	p.CustomOrder = append([]model.OrderEntry(nil), order...)
	p.UpdatedAt = m.now()
	m.plans[planID] = p
	return clonePlan(p), nil
}

// Webhook subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[s.ID] = s
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: m.now()}
	m.deliveries[id] = d
	m.deliverySeq = append(m.deliverySeq, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []WebhookDelivery{}
	for _, id := range m.deliverySeq {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
	} else {
		d.Status = "retry"
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = m.now().Add(time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
	}
	return nil
}
