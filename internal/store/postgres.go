package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vintrail/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies .sql files from dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Plans are stored as one row per plan with the stop lists in jsonb columns.
// The store only ever needs "find one active by owner", "get by id", and
// whole-document read-modify-write, so no relational stop table exists.

const planColumns = `id::text, user_id, title, vineyards, restaurants, custom_order, is_active, confirmed_at, expires_at, created_at, updated_at`

func scanPlan(row interface{ Scan(...any) error }) (model.Plan, error) {
	var pl model.Plan
	var title sql.NullString
	var vineyards, restaurants, customOrder []byte
	var confirmedAt, expiresAt sql.NullTime
	err := row.Scan(&pl.ID, &pl.UserID, &title, &vineyards, &restaurants, &customOrder,
		&pl.IsActive, &confirmedAt, &expiresAt, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return model.Plan{}, err
	}
	pl.Title = title.String
	if len(vineyards) > 0 {
		_ = json.Unmarshal(vineyards, &pl.Vineyards)
	}
	if len(restaurants) > 0 {
		_ = json.Unmarshal(restaurants, &pl.Restaurants)
	}
	if len(customOrder) > 0 {
		_ = json.Unmarshal(customOrder, &pl.CustomOrder)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		pl.ConfirmedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		pl.ExpiresAt = &t
	}
	return pl, nil
}

func (p *Postgres) GetActiveDraft(ctx context.Context, userID string) (model.Plan, error) {
	// Flip any plans whose window has passed before reading; the stored
	// is_active flag is advisory between reads.
	if err := p.expireStale(ctx, userID); err != nil {
		return model.Plan{}, err
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans
		 WHERE user_id=$1 AND is_active AND confirmed_at IS NULL
		 ORDER BY updated_at DESC LIMIT 1`, userID)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

func (p *Postgres) expireStale(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE plans SET is_active=false WHERE user_id=$1 AND is_active AND expires_at IS NOT NULL AND expires_at < now()`, userID)
	return err
}

func (p *Postgres) UpsertDraft(ctx context.Context, userID string, in model.DraftInput) (model.Plan, error) {
	if len(in.Vineyards) == 0 || len(in.Vineyards) > model.MaxVineyards {
		return model.Plan{}, ErrInvalidDraft
	}
	if err := p.expireStale(ctx, userID); err != nil {
		return model.Plan{}, err
	}
	title := in.Title
	if title == "" {
		title = model.DeriveTitle(in.Vineyards)
	}
	var restaurants []model.RestaurantStop
	if in.Restaurant != nil {
		restaurants = []model.RestaurantStop{*in.Restaurant}
	}

	// Mutate an existing draft in place when one exists. Two concurrent
	// saves both land on the same row; the later write wins.
	row := p.db.QueryRowContext(ctx,
		`UPDATE plans SET title=$2, vineyards=$3, restaurants=$4, expires_at=NULL, updated_at=now()
		 WHERE id = (SELECT id FROM plans WHERE user_id=$1 AND is_active AND confirmed_at IS NULL LIMIT 1)
		 RETURNING `+planColumns, userID, title, toJSON(in.Vineyards), toJSON(restaurants))
	pl, err := scanPlan(row)
	if err == nil {
		return pl, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, err
	}

	row = p.db.QueryRowContext(ctx,
		`INSERT INTO plans (id, user_id, title, vineyards, restaurants, is_active)
		 VALUES ($1,$2,$3,$4,$5,true) RETURNING `+planColumns,
		uuid.New(), userID, title, toJSON(in.Vineyards), toJSON(restaurants))
	return scanPlan(row)
}

func (p *Postgres) ConfirmPlan(ctx context.Context, userID, planID string, ttl time.Duration) (model.Plan, error) {
	pl, err := p.getOwned(ctx, userID, planID)
	if err != nil {
		return model.Plan{}, err
	}
	now := time.Now()
	if pl.Expired(now) {
		_, _ = p.db.ExecContext(ctx, `UPDATE plans SET is_active=false WHERE id=$1::uuid`, planID)
		return model.Plan{}, ErrExpired
	}
	// confirmed_at and expires_at are set at most once; a second confirm
	// returns the row untouched.
	row := p.db.QueryRowContext(ctx,
		`UPDATE plans SET
		   confirmed_at = COALESCE(confirmed_at, now()),
		   expires_at   = COALESCE(expires_at, now() + make_interval(secs => $2)),
		   updated_at   = now()
		 WHERE id=$1::uuid RETURNING `+planColumns,
		planID, ttl.Seconds())
	return scanPlan(row)
}

func (p *Postgres) getOwned(ctx context.Context, userID, planID string) (model.Plan, error) {
	if _, err := uuid.Parse(planID); err != nil {
		return model.Plan{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id=$1::uuid AND user_id=$2`, planID, userID)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

func (p *Postgres) GetPlan(ctx context.Context, userID, planID string) (model.Plan, error) {
	pl, err := p.getOwned(ctx, userID, planID)
	if err != nil {
		return model.Plan{}, err
	}
	if pl.Expired(time.Now()) {
		_, _ = p.db.ExecContext(ctx, `UPDATE plans SET is_active=false WHERE id=$1::uuid`, planID)
		return model.Plan{}, ErrNotFound
	}
	return pl, nil
}

func (p *Postgres) ListConfirmed(ctx context.Context, userID string) ([]model.Plan, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans
		 WHERE user_id=$1 AND confirmed_at IS NOT NULL AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY confirmed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateStopTime(ctx context.Context, userID, planID, stopID, at string) (model.Plan, error) {
	// Single-document read-modify-write; no row lock, matching the rest of
	// the plan operations. GetPlan applies the expiry flip so an expired
	// plan is gone here the same as on reads.
	pl, err := p.GetPlan(ctx, userID, planID)
	if err != nil {
		return model.Plan{}, err
	}
	if !applyStopTime(&pl, stopID, at) {
		return model.Plan{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx,
		`UPDATE plans SET vineyards=$2, restaurants=$3, updated_at=now() WHERE id=$1::uuid RETURNING `+planColumns,
		planID, toJSON(pl.Vineyards), toJSON(pl.Restaurants))
	return scanPlan(row)
}

func (p *Postgres) UpdateCustomOrder(ctx context.Context, userID, planID string, order []model.OrderEntry) (model.Plan, error) {
	if _, err := p.GetPlan(ctx, userID, planID); err != nil {
		return model.Plan{}, err
	}
	row := p.db.QueryRowContext(ctx,
		`UPDATE plans SET custom_order=$2, updated_at=now() WHERE id=$1::uuid RETURNING `+planColumns,
		planID, toJSON(order))
	return scanPlan(row)
}

// Webhook subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, toJSON(req.Events), req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id.String(), URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events, secret FROM subscriptions WHERE events @> to_jsonb(ARRAY[$1::text])`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1::uuid`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, secret, payload, status, attempts
		 FROM webhook_deliveries
		 WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, delivered_at=now() WHERE id=$1::uuid`,
			id, responseCode)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, last_error=$2, response_code=$3, next_attempt_at=$4 WHERE id=$1::uuid`,
		id, lastError, responseCode, next)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3 WHERE id=$1::uuid`,
		id, lastError, responseCode)
	return err
}

// helpers

func toJSON(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
