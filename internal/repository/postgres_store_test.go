package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/seatsync/internal/domain"
	"github.com/Dhoini/seatsync/pkg/logger"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "pgx"), logger.NewNop()), mock
}

var subscriptionRowColumns = []string{
	"organization_id", "stripe_subscription_id", "stripe_customer_id", "stripe_price_id",
	"quantity", "status", "current_period_start", "current_period_end", "updated_at",
}

func TestPostgresStore_GetSubscription(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT (.+) FROM user_license_subscriptions WHERE stripe_subscription_id = \\$1").
		WithArgs("sub_1").
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
			AddRow("org-1", "sub_1", "cus_1", "price_1", 4, "active", start, end, end))

	sub, err := store.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", sub.OrganizationID)
	assert.Equal(t, 4, sub.Quantity)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.True(t, end.Equal(sub.CurrentPeriodEnd))

	mock.ExpectQuery("SELECT (.+) FROM user_license_subscriptions").
		WithArgs("sub_missing").
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns))

	_, err = store.GetSubscription(ctx, "sub_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSubscriptionNullPeriod(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM user_license_subscriptions").
		WithArgs("sub_1").
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
			AddRow("org-1", "sub_1", "cus_1", "", 1, "past_due", nil, nil, time.Now()))

	sub, err := store.GetSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.True(t, sub.CurrentPeriodStart.IsZero())
	assert.Equal(t, domain.SubscriptionPastDue, sub.Status)
}

func TestPostgresStore_ListNonOwnerMembers(t *testing.T) {
	store, mock := newMockStore(t)
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "organization_id", "user_id", "name", "email", "role", "status", "joined_date"}

	mock.ExpectQuery("SELECT (.+) FROM organization_members (.+) ORDER BY joined_date DESC, id DESC LIMIT \\$3").
		WithArgs("org-1", "inactive", 3).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("m2", "org-1", "u2", "B", "b@example.com", "member", "inactive", joined.AddDate(0, 1, 0)).
			AddRow("m1", "org-1", "u1", "A", "a@example.com", "viewer", "inactive", joined))

	members, err := store.ListNonOwnerMembers(context.Background(), "org-1", domain.MemberInactive, 3)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "m2", members[0].ID)
	assert.Equal(t, domain.RoleViewer, members[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOrganizationSubscriptions(t *testing.T) {
	store, mock := newMockStore(t)
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM user_license_subscriptions\\s+WHERE organization_id = \\$1 ORDER BY stripe_subscription_id").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(subscriptionRowColumns).
			AddRow("org-1", "sub_a", "cus_1", "price_1", 3, "cancelled", nil, nil, end).
			AddRow("org-1", "sub_b", "cus_1", "price_1", 5, "active", end.AddDate(0, -1, 0), end, end))

	subs, err := store.ListOrganizationSubscriptions(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, domain.SubscriptionCancelled, subs[0].Status)
	assert.True(t, subs[0].CurrentPeriodEnd.IsZero())
	assert.Equal(t, 5, subs[1].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithinTxCommits(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhook_events (event_id) VALUES ($1)")).
		WithArgs("evt_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stripe_event_logs").
		WithArgs("evt_1", "invoice.payment_failed", "sub_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		first, err := tx.TryMarkEvent(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, first)
		return tx.InsertEventLog(ctx, &domain.EventLog{
			EventID:        "evt_1",
			EventType:      "invoice.payment_failed",
			SubscriptionID: "sub_1",
			Payload:        []byte(`{"id":"evt_1"}`),
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TryMarkEventDuplicateCommits(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING")).
		WithArgs("evt_1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		first, err := tx.TryMarkEvent(ctx, "evt_1")
		require.NoError(t, err)
		assert.False(t, first)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TryMarkEventFailure(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO webhook_events").
		WithArgs("evt_1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.TryMarkEvent(ctx, "evt_1")
		return err
	})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSubscriptionNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE user_license_subscriptions SET").
		WithArgs("sub_x", "price_1", 2, "active", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.UpdateSubscription(ctx, &domain.UserLicenseSubscription{
			StripeSubscriptionID: "sub_x",
			StripePriceID:        "price_1",
			Quantity:             2,
			Status:               domain.SubscriptionActive,
		})
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MemberWrites(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE organization_members SET status = \\$1 (.+) id IN \\(\\$3, \\$4\\)").
		WithArgs("inactive", "org-1", "m3", "m4").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("WITH deactivated AS").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m2").AddRow("m1"))
	mock.ExpectExec(regexp.QuoteMeta("SELECT sync_stripe_subscription_slots($1, $2, $3, $4, $5)")).
		WithArgs("org-1", "sub_1", 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.SetMemberStatus(ctx, "org-1", []string{"m3", "m4"}, domain.MemberInactive); err != nil {
			return err
		}
		ids, err := tx.DeactivateNonOwnerMembers(ctx, "org-1")
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"m2", "m1"}, ids)
		return tx.SyncSubscriptionSlots(ctx, "org-1", "sub_1", 0, start, start.AddDate(0, 1, 0))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMemberStatusNoIDs(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.SetMemberStatus(ctx, "org-1", nil, domain.MemberActive)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSlotAvailability(t *testing.T) {
	store, mock := newMockStore(t)
	columns := []string{"organization_id", "total_purchased", "used_slots", "exempted_slots", "available_slots",
		"current_period_start", "current_period_end"}

	mock.ExpectQuery("SELECT (.+) FROM organization_slots WHERE organization_id = \\$1").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("org-1", 5, 2, 1, 4, nil, nil))

	slots, err := store.GetSlotAvailability(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 4, slots.AvailableSlots)
	assert.Equal(t, 1, slots.ExemptedSlots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrganization(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, storage_used_gb, fleet_map_enabled FROM organizations").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "storage_used_gb", "fleet_map_enabled"}).
			AddRow("org-1", "Acme", 12.5, true))

	org, err := store.GetOrganization(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, org.StorageUsedGB)
	assert.True(t, org.FleetMapEnabled)

	mock.ExpectQuery("SELECT (.+) FROM organizations").
		WithArgs("org-2").
		WillReturnError(errors.New("boom"))

	_, err = store.GetOrganization(context.Background(), "org-2")
	assert.ErrorContains(t, err, "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyPgError(t *testing.T) {
	assert.ErrorIs(t, classifyPgError(&pgconn.PgError{Code: "23505"}), ErrDuplicate)
	assert.ErrorIs(t, classifyPgError(&pgconn.PgError{Code: "23514"}), ErrInvalidData)

	other := errors.New("other")
	assert.Equal(t, other, classifyPgError(other))
}
