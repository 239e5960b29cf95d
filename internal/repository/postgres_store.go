package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

const (
	subscriptionColumns = `organization_id, stripe_subscription_id, stripe_customer_id, stripe_price_id,
               quantity, status, current_period_start, current_period_end, updated_at`
	memberColumns = `id, organization_id, user_id, name, email, role, status, joined_date`
	slotColumns   = `organization_id, total_purchased, used_slots, exempted_slots, available_slots,
               current_period_start, current_period_end`
)

type subscriptionRow struct {
	OrganizationID       string       `db:"organization_id"`
	StripeSubscriptionID string       `db:"stripe_subscription_id"`
	StripeCustomerID     string       `db:"stripe_customer_id"`
	StripePriceID        string       `db:"stripe_price_id"`
	Quantity             int          `db:"quantity"`
	Status               string       `db:"status"`
	CurrentPeriodStart   sql.NullTime `db:"current_period_start"`
	CurrentPeriodEnd     sql.NullTime `db:"current_period_end"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

func (r subscriptionRow) toDomain() domain.UserLicenseSubscription {
	return domain.UserLicenseSubscription{
		OrganizationID:       r.OrganizationID,
		StripeSubscriptionID: r.StripeSubscriptionID,
		StripeCustomerID:     r.StripeCustomerID,
		StripePriceID:        r.StripePriceID,
		Quantity:             r.Quantity,
		Status:               domain.SubscriptionStatus(r.Status),
		CurrentPeriodStart:   r.CurrentPeriodStart.Time,
		CurrentPeriodEnd:     r.CurrentPeriodEnd.Time,
		UpdatedAt:            r.UpdatedAt,
	}
}

type slotRow struct {
	OrganizationID     string       `db:"organization_id"`
	TotalPurchased     int          `db:"total_purchased"`
	UsedSlots          int          `db:"used_slots"`
	ExemptedSlots      int          `db:"exempted_slots"`
	AvailableSlots     int          `db:"available_slots"`
	CurrentPeriodStart sql.NullTime `db:"current_period_start"`
	CurrentPeriodEnd   sql.NullTime `db:"current_period_end"`
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// PostgresStore implements Store on PostgreSQL through sqlx and the pgx driver.
type PostgresStore struct {
	db  *sqlx.DB
	log *logger.Logger
	pgQueries
}

// NewPostgresStore creates a store over an open sqlx connection
func NewPostgresStore(db *sqlx.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:        db,
		log:       log,
		pgQueries: pgQueries{q: db, log: log},
	}
}

// WithinTx runs fn inside a database transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.log.Errorw("Failed to begin transaction", "error", err)
		return fmt.Errorf("repository: begin transaction: %w", err)
	}

	if err := fn(&pgTx{pgQueries{q: tx, log: s.log}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Errorw("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		s.log.Errorw("Failed to commit transaction", "error", err)
		return fmt.Errorf("repository: commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	var org domain.Organization
	query := `SELECT id, name, storage_used_gb, fleet_map_enabled FROM organizations WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.db, &org, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: get organization: %w", err)
	}
	return &org, nil
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context) ([]domain.UserLicenseSubscription, error) {
	var rows []subscriptionRow
	query := `SELECT ` + subscriptionColumns + ` FROM user_license_subscriptions ORDER BY stripe_subscription_id`
	if err := sqlx.SelectContext(ctx, s.db, &rows, query); err != nil {
		return nil, fmt.Errorf("repository: list subscriptions: %w", err)
	}
	subs := make([]domain.UserLicenseSubscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// pgQueries holds the statements shared by the pool and a transaction.
type pgQueries struct {
	q   sqlx.ExtContext
	log *logger.Logger
}

func (p pgQueries) GetSubscription(ctx context.Context, id string) (*domain.UserLicenseSubscription, error) {
	var row subscriptionRow
	query := `SELECT ` + subscriptionColumns + ` FROM user_license_subscriptions WHERE stripe_subscription_id = $1`
	if err := sqlx.GetContext(ctx, p.q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		p.log.Errorw("Failed to get subscription", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("repository: get subscription: %w", err)
	}
	sub := row.toDomain()
	return &sub, nil
}

func (p pgQueries) ListOrganizationSubscriptions(ctx context.Context, orgID string) ([]domain.UserLicenseSubscription, error) {
	var rows []subscriptionRow
	query := `SELECT ` + subscriptionColumns + ` FROM user_license_subscriptions
        WHERE organization_id = $1 ORDER BY stripe_subscription_id`
	if err := sqlx.SelectContext(ctx, p.q, &rows, query, orgID); err != nil {
		return nil, fmt.Errorf("repository: list organization subscriptions: %w", err)
	}
	subs := make([]domain.UserLicenseSubscription, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}

func (p pgQueries) ListMembers(ctx context.Context, orgID string) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	query := `SELECT ` + memberColumns + ` FROM organization_members
        WHERE organization_id = $1
        ORDER BY joined_date, id`
	if err := sqlx.SelectContext(ctx, p.q, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("repository: list members: %w", err)
	}
	return members, nil
}

func (p pgQueries) ListNonOwnerMembers(ctx context.Context, orgID string, status domain.MemberStatus, limit int) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	query := `SELECT ` + memberColumns + ` FROM organization_members
        WHERE organization_id = $1 AND status = $2 AND role <> 'owner'
        ORDER BY joined_date DESC, id DESC`
	args := []interface{}{orgID, string(status)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	if err := sqlx.SelectContext(ctx, p.q, &members, query, args...); err != nil {
		return nil, fmt.Errorf("repository: list %s members: %w", status, err)
	}
	return members, nil
}

func (p pgQueries) FindActiveOwner(ctx context.Context, orgID string) (*domain.OrganizationMember, error) {
	var m domain.OrganizationMember
	query := `SELECT ` + memberColumns + ` FROM organization_members
        WHERE organization_id = $1 AND role = 'owner' AND status = 'active'
        LIMIT 1`
	if err := sqlx.GetContext(ctx, p.q, &m, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: find owner: %w", err)
	}
	return &m, nil
}

func (p pgQueries) GetSlotAvailability(ctx context.Context, orgID string) (*domain.SlotAvailability, error) {
	var row slotRow
	query := `SELECT ` + slotColumns + ` FROM organization_slots WHERE organization_id = $1`
	if err := sqlx.GetContext(ctx, p.q, &row, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: get slot availability: %w", err)
	}
	return &domain.SlotAvailability{
		OrganizationID:     row.OrganizationID,
		TotalPurchased:     row.TotalPurchased,
		UsedSlots:          row.UsedSlots,
		ExemptedSlots:      row.ExemptedSlots,
		AvailableSlots:     row.AvailableSlots,
		CurrentPeriodStart: row.CurrentPeriodStart.Time,
		CurrentPeriodEnd:   row.CurrentPeriodEnd.Time,
	}, nil
}

// pgTx adds the write side on top of an open transaction.
type pgTx struct {
	pgQueries
}

// TryMarkEvent inserts the event id with ON CONFLICT DO NOTHING so that a
// duplicate leaves the transaction usable and the caller can still commit. A
// concurrent insert of the same id blocks on the primary key until the other
// transaction ends, then affects no rows if that one committed.
func (t *pgTx) TryMarkEvent(ctx context.Context, eventID string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, fmt.Errorf("repository: mark event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: mark event: %w", err)
	}
	if n == 0 {
		t.log.Infow("Webhook event already processed", "eventID", eventID)
		return false, nil
	}
	return true, nil
}

func (t *pgTx) UpsertSubscription(ctx context.Context, sub *domain.UserLicenseSubscription) error {
	query := `
        INSERT INTO user_license_subscriptions (
            organization_id, stripe_subscription_id, stripe_customer_id, stripe_price_id,
            quantity, status, current_period_start, current_period_end, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        ON CONFLICT (stripe_subscription_id) DO UPDATE SET
            stripe_customer_id   = EXCLUDED.stripe_customer_id,
            stripe_price_id      = EXCLUDED.stripe_price_id,
            quantity             = EXCLUDED.quantity,
            status               = EXCLUDED.status,
            current_period_start = EXCLUDED.current_period_start,
            current_period_end   = EXCLUDED.current_period_end,
            updated_at           = NOW()`
	_, err := t.q.ExecContext(ctx, query,
		sub.OrganizationID, sub.StripeSubscriptionID, sub.StripeCustomerID, sub.StripePriceID,
		sub.Quantity, string(sub.Status), nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd))
	if err != nil {
		t.log.Errorw("Failed to upsert subscription", "error", err, "subscriptionID", sub.StripeSubscriptionID)
		return fmt.Errorf("repository: upsert subscription: %w", classifyPgError(err))
	}
	return nil
}

func (t *pgTx) UpdateSubscription(ctx context.Context, sub *domain.UserLicenseSubscription) error {
	query := `
        UPDATE user_license_subscriptions SET
            stripe_price_id      = $2,
            quantity             = $3,
            status               = $4,
            current_period_start = $5,
            current_period_end   = $6,
            updated_at           = NOW()
        WHERE stripe_subscription_id = $1`
	result, err := t.q.ExecContext(ctx, query,
		sub.StripeSubscriptionID, sub.StripePriceID, sub.Quantity, string(sub.Status),
		nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd))
	if err != nil {
		t.log.Errorw("Failed to update subscription", "error", err, "subscriptionID", sub.StripeSubscriptionID)
		return fmt.Errorf("repository: update subscription: %w", classifyPgError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: update subscription rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetMemberStatus(ctx context.Context, orgID string, memberIDs []string, status domain.MemberStatus) error {
	if len(memberIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE organization_members SET status = ?
        WHERE organization_id = ? AND role <> 'owner' AND id IN (?)`, string(status), orgID, memberIDs)
	if err != nil {
		return fmt.Errorf("repository: build member status update: %w", err)
	}
	if _, err := t.q.ExecContext(ctx, t.q.Rebind(query), args...); err != nil {
		t.log.Errorw("Failed to set member status", "error", err, "organizationID", orgID, "status", status)
		return fmt.Errorf("repository: set member status: %w", err)
	}
	return nil
}

func (t *pgTx) DeactivateNonOwnerMembers(ctx context.Context, orgID string) ([]string, error) {
	var ids []string
	query := `
        WITH deactivated AS (
            UPDATE organization_members SET status = 'inactive'
            WHERE organization_id = $1 AND role <> 'owner' AND status = 'active'
            RETURNING id, joined_date
        )
        SELECT id FROM deactivated ORDER BY joined_date DESC, id DESC`
	if err := sqlx.SelectContext(ctx, t.q, &ids, query, orgID); err != nil {
		t.log.Errorw("Failed to deactivate members", "error", err, "organizationID", orgID)
		return nil, fmt.Errorf("repository: deactivate members: %w", err)
	}
	return ids, nil
}

func (t *pgTx) SyncSubscriptionSlots(ctx context.Context, orgID, subscriptionID string, quantity int, periodStart, periodEnd time.Time) error {
	_, err := t.q.ExecContext(ctx, `SELECT sync_stripe_subscription_slots($1, $2, $3, $4, $5)`,
		orgID, subscriptionID, quantity, nullTime(periodStart), nullTime(periodEnd))
	if err != nil {
		t.log.Errorw("Slot sync failed", "error", err, "organizationID", orgID, "subscriptionID", subscriptionID)
		return fmt.Errorf("repository: sync slots: %w", err)
	}
	return nil
}

func (t *pgTx) InsertNotification(ctx context.Context, n *domain.Notification) error {
	data := []byte(n.Data)
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := t.q.ExecContext(ctx, `
        INSERT INTO notifications (id, organization_id, user_id, type, title, message, data)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.OrganizationID, n.UserID, n.Type, n.Title, n.Message, data)
	if err != nil {
		return fmt.Errorf("repository: insert notification: %w", classifyPgError(err))
	}
	return nil
}

func (t *pgTx) InsertEventLog(ctx context.Context, l *domain.EventLog) error {
	_, err := t.q.ExecContext(ctx, `
        INSERT INTO stripe_event_logs (event_id, event_type, subscription_id, payload)
        VALUES ($1, $2, $3, $4)`,
		l.EventID, l.EventType, sql.NullString{String: l.SubscriptionID, Valid: l.SubscriptionID != ""}, []byte(l.Payload))
	if err != nil {
		return fmt.Errorf("repository: insert event log: %w", err)
	}
	return nil
}
