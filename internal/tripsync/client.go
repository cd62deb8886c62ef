package tripsync

import (
	"context"
	"errors"

	"vintrail/internal/model"
	"vintrail/internal/store"
)

// StorePlanner adapts a store.Store to the Planner interface for one user.
// It is what server-side consumers (and tests) hand to New; browser-facing
// deployments would substitute an HTTP-backed Planner with the same shape.
type StorePlanner struct {
	Store  store.Store
	UserID string
}

func (sp StorePlanner) ActiveDraft(ctx context.Context) (model.Plan, bool, error) {
	p, err := sp.Store.GetActiveDraft(ctx, sp.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Plan{}, false, nil
	}
	if err != nil {
		return model.Plan{}, false, err
	}
	return p, true, nil
}

func (sp StorePlanner) SaveDraft(ctx context.Context, in model.DraftInput) (model.Plan, error) {
	return sp.Store.UpsertDraft(ctx, sp.UserID, in)
}
