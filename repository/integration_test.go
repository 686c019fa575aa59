package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	apptesting "github.com/dkortekaas/invoicing-engine/testing"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireTestDB provisions a throwaway database, or skips when no test
// Postgres is reachable
func requireTestDB(t *testing.T) (*apptesting.TestDB, *apptesting.TestFixtures) {
	t.Helper()

	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set, skipping database integration test")
	}

	testDB, err := apptesting.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testDB.TeardownTestDB(); err != nil {
			t.Logf("failed to tear down test database: %v", err)
		}
	})

	return testDB, apptesting.NewTestFixtures(testDB)
}

func TestScheduleRepositoryListDue(t *testing.T) {
	testDB, fixtures := requireTestDB(t)
	ctx := context.Background()

	account, err := fixtures.CreateTestAccount()
	require.NoError(t, err)
	customer, err := fixtures.CreateTestCustomer(account.ID)
	require.NoError(t, err)

	due, err := fixtures.CreateTestSchedule(account.ID, customer.ID,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	notYetDue, err := fixtures.CreateTestSchedule(account.ID, customer.ID,
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	paused, err := fixtures.CreateTestSchedule(account.ID, customer.ID,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	repo := NewScheduleRepository(testDB.DB)
	require.NoError(t, repo.UpdateStatus(ctx, paused.ID, models.ScheduleStatusPaused))

	schedules, err := repo.ListDue(ctx, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	ids := make([]uint, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, due.ID)
	assert.NotContains(t, ids, notYetDue.ID)
	assert.NotContains(t, ids, paused.ID)
}

func TestScheduleRepositoryAdvanceCursor(t *testing.T) {
	testDB, fixtures := requireTestDB(t)
	ctx := context.Background()

	account, err := fixtures.CreateTestAccount()
	require.NoError(t, err)
	customer, err := fixtures.CreateTestCustomer(account.ID)
	require.NoError(t, err)

	schedule, err := fixtures.CreateTestSchedule(account.ID, customer.ID,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	repo := NewScheduleRepository(testDB.DB)

	lastDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	nextDate := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AdvanceCursor(ctx, schedule.ID, lastDate, nextDate))

	stored, err := repo.ByIDWithTemplate(ctx, schedule.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "2025-04-01", stored.NextDate.Format("2006-01-02"))
	require.NotNil(t, stored.LastDate)
	assert.Equal(t, "2025-03-01", stored.LastDate.Format("2006-01-02"))
	require.Len(t, stored.LineItems, 1)
}

func TestInvoiceRepositoryNumberUniqueness(t *testing.T) {
	testDB, fixtures := requireTestDB(t)
	ctx := context.Background()

	account, err := fixtures.CreateTestAccount()
	require.NoError(t, err)
	customer, err := fixtures.CreateTestCustomer(account.ID)
	require.NoError(t, err)

	invoiceDate := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	first, err := fixtures.CreateTestInvoice(account.ID, customer.ID, nil, "2025-0001", invoiceDate)
	require.NoError(t, err)

	repo := NewInvoiceRepository(testDB.DB)

	seq, err := repo.MaxSequenceForYear(ctx, account.ID, 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	// Same number under the same account must be rejected
	duplicate := &models.Invoice{
		AccountID:     account.ID,
		CustomerID:    customer.ID,
		InvoiceNumber: first.InvoiceNumber,
		InvoiceDate:   invoiceDate,
		DueDate:       invoiceDate.AddDate(0, 0, 30),
		Subtotal:      first.Subtotal,
		VATAmount:     first.VATAmount,
		Total:         first.Total,
	}
	err = repo.Save(ctx, duplicate)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// The same number under another account is fine
	otherAccount, err := fixtures.CreateTestAccount()
	require.NoError(t, err)
	otherCustomer, err := fixtures.CreateTestCustomer(otherAccount.ID)
	require.NoError(t, err)
	_, err = fixtures.CreateTestInvoice(otherAccount.ID, otherCustomer.ID, nil, "2025-0001", invoiceDate)
	require.NoError(t, err)
}

func TestPriceChangeRepositoryMarkApplied(t *testing.T) {
	testDB, fixtures := requireTestDB(t)
	ctx := context.Background()

	account, err := fixtures.CreateTestAccount()
	require.NoError(t, err)
	customer, err := fixtures.CreateTestCustomer(account.ID)
	require.NoError(t, err)
	schedule, err := fixtures.CreateTestSchedule(account.ID, customer.ID,
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	change, err := fixtures.CreateTestPriceChange(schedule.ID,
		time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	repo := NewPriceChangeRepository(testDB.DB)

	pending, err := repo.ListUnappliedBySchedule(ctx, schedule.ID,
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.MarkApplied(ctx, change.ID, utils.UTCNow()))

	pending, err = repo.ListUnappliedBySchedule(ctx, schedule.ID,
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, pending)
}
