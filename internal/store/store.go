package store

import (
	"context"
	"errors"
	"time"

	"vintrail/internal/model"
)

// Store is the persistence interface used by the API server.
//
// Every plan operation is owner-scoped: a plan that exists but belongs to a
// different user behaves exactly like a missing plan (ErrNotFound). Reads
// evaluate expiry lazily; an expired plan is never returned as active or
// confirmed even if its stored isActive flag has not been flipped yet.
type Store interface {
	// Plans
	GetActiveDraft(ctx context.Context, userID string) (model.Plan, error)
	UpsertDraft(ctx context.Context, userID string, in model.DraftInput) (model.Plan, error)
	ConfirmPlan(ctx context.Context, userID, planID string, ttl time.Duration) (model.Plan, error)
	GetPlan(ctx context.Context, userID, planID string) (model.Plan, error)
	ListConfirmed(ctx context.Context, userID string) ([]model.Plan, error)
	UpdateStopTime(ctx context.Context, userID, planID, stopID, at string) (model.Plan, error)
	UpdateCustomOrder(ctx context.Context, userID, planID string, order []model.OrderEntry) (model.Plan, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrExpired signals a confirm attempt on a plan whose window has passed.
	ErrExpired = errors.New("plan expired")
	// ErrInvalidDraft signals a draft with no vineyards or more than the cap.
	ErrInvalidDraft = errors.New("invalid draft")
)

// WebhookDelivery is a queued outbound notification.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string // pending, retry, delivered, failed
	Attempts       int
}
