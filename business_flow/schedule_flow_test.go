package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/dkortekaas/invoicing-engine/app/dto"
	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduleFixture struct {
	flow      *ScheduleFlowImpl
	schedules *fakeScheduleRepo
	accounts  *fakeAccountRepo
	customers *fakeCustomerRepo
	changes   *fakePriceChangeRepo
	logs      *fakeScheduleLogRepo
	now       time.Time
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()

	f := &scheduleFixture{
		schedules: newFakeScheduleRepo(),
		accounts:  newFakeAccountRepo(),
		customers: newFakeCustomerRepo(),
		changes:   newFakePriceChangeRepo(),
		logs:      newFakeScheduleLogRepo(),
		now:       time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC),
	}

	f.flow = &ScheduleFlowImpl{
		scheduleRepo:    f.schedules,
		accountRepo:     f.accounts,
		customerRepo:    f.customers,
		priceChangeRepo: f.changes,
		scheduleLogRepo: f.logs,
		now:             func() time.Time { return f.now },
		runTx:           passthroughTx,
	}

	for _, id := range []uint{1, 2} {
		require.NoError(t, f.accounts.Save(context.Background(), &models.Account{
			ID:       id,
			Name:     "Kortekaas Administratie",
			Email:    "admin@kortekaas.example",
			IsActive: true,
		}))
	}

	return f
}

func (f *scheduleFixture) seedCustomer(t *testing.T, accountID uint) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		AccountID:       accountID,
		Name:            "De Vries Webdesign",
		Email:           "facturen@devries.example",
		PaymentTermDays: 30,
		IsActive:        true,
	}
	require.NoError(t, f.customers.Save(context.Background(), customer))
	return customer
}

func validCreateRequest(customer *models.Customer) *dto.CreateScheduleRequest {
	return &dto.CreateScheduleRequest{
		AccountID:    customer.AccountID,
		CustomerUUID: customer.UUID.String(),
		Frequency:    "MONTHLY",
		Interval:     1,
		StartDate:    time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		LineItems: []dto.ScheduleLineItemDTO{
			{Position: 0, Description: "Onderhoudscontract", Quantity: "1", UnitPrice: "150.00", VATRate: "21"},
		},
	}
}

func TestCreateSchedule(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	resp, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ScheduleStatusActive.String(), resp.Status)
	assert.Equal(t, "2025-04-01", resp.StartDate)
	assert.Equal(t, "2025-04-01", resp.NextDate)
	assert.Equal(t, customer.ID, resp.CustomerID)

	stored, err := f.schedules.ByUUID(ctx, mustParseUUID(t, resp.UUID))
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.LineItems, 1)
	assert.Equal(t, "150", stored.LineItems[0].UnitPrice.String())

	assert.Contains(t, f.logs.actions(stored.ID), models.ScheduleEventCreated)
}

func TestCreateScheduleValidation(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	t.Run("unknown frequency", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.Frequency = "FORTNIGHTLY"
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrInvalidFrequency)
	})

	t.Run("day of month above 28", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.DayOfMonth = utils.ToPtr(31)
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrInvalidDayOfMonth)
	})

	t.Run("end date before start", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.EndDate = utils.ToPtr(req.StartDate.AddDate(0, 0, -1))
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrEndDateBeforeStart)
	})

	t.Run("no line items", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.LineItems = nil
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrLineItemsRequired)
	})

	t.Run("customer of another account", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.AccountID = 2
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("malformed amount", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.LineItems[0].UnitPrice = "veel"
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		req := validCreateRequest(customer)
		req.AccountID = 99
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("inactive account", func(t *testing.T) {
		require.NoError(t, f.accounts.Save(ctx, &models.Account{
			ID:       3,
			Name:     "Opgeheven BV",
			Email:    "info@opgeheven.example",
			IsActive: false,
		}))
		req := validCreateRequest(customer)
		req.AccountID = 3
		_, err := f.flow.Create(ctx, req, nil)
		assert.ErrorIs(t, err, ErrAccountInactive)
	})
}

func TestPauseResumeCancel(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	created, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)

	paused, err := f.flow.Pause(ctx, created.UUID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusPaused.String(), paused.Status)

	resumed, err := f.flow.Resume(ctx, created.UUID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusActive.String(), resumed.Status)

	cancelled, err := f.flow.Cancel(ctx, created.UUID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleStatusCancelled.String(), cancelled.Status)

	// cancelled is terminal
	_, err = f.flow.Resume(ctx, created.UUID, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	stored, err := f.schedules.ByUUID(ctx, mustParseUUID(t, created.UUID))
	require.NoError(t, err)
	actions := f.logs.actions(stored.ID)
	assert.Contains(t, actions, models.ScheduleEventPaused)
	assert.Contains(t, actions, models.ScheduleEventResumed)
	assert.Contains(t, actions, models.ScheduleEventCancelled)
}

func TestUpdateRejectsTerminalSchedule(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	created, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)
	_, err = f.flow.Cancel(ctx, created.UUID, 1, nil)
	require.NoError(t, err)

	_, err = f.flow.Update(ctx, &dto.UpdateScheduleRequest{
		UUID:      created.UUID,
		AccountID: 1,
		AutoSend:  utils.ToPtr(true),
	}, nil)
	assert.ErrorIs(t, err, ErrScheduleUpdateNotAllowed)
}

func TestUpdateReplacesLineItems(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	created, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)

	_, err = f.flow.Update(ctx, &dto.UpdateScheduleRequest{
		UUID:      created.UUID,
		AccountID: 1,
		LineItems: []dto.ScheduleLineItemDTO{
			{Position: 0, Description: "Onderhoudscontract plus", Quantity: "1", UnitPrice: "175.00", VATRate: "21"},
			{Position: 1, Description: "Extra domein", Quantity: "2", UnitPrice: "12.50", VATRate: "21"},
		},
	}, nil)
	require.NoError(t, err)

	stored, err := f.schedules.ByUUID(ctx, mustParseUUID(t, created.UUID))
	require.NoError(t, err)
	require.Len(t, stored.LineItems, 2)
	assert.Equal(t, "Onderhoudscontract plus", stored.LineItems[0].Description)
}

func TestRegisterPriceChange(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	created, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)

	err = f.flow.RegisterPriceChange(ctx, &dto.RegisterPriceChangeRequest{
		ScheduleUUID:  created.UUID,
		AccountID:     1,
		EffectiveDate: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		Revisions: []dto.PriceRevisionDTO{
			{Position: 0, UnitPrice: utils.ToPtr("165.00")},
		},
	}, nil)
	require.NoError(t, err)

	stored, err := f.schedules.ByUUID(ctx, mustParseUUID(t, created.UUID))
	require.NoError(t, err)

	pending, err := f.changes.ListUnappliedBySchedule(ctx, stored.ID, date(2025, time.July, 1))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "165", pending[0].Revisions[0].UnitPrice.String())

	assert.Contains(t, f.logs.actions(stored.ID), models.ScheduleEventPriceChangeAdded)
}

func TestGetRejectsForeignAccount(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()
	customer := f.seedCustomer(t, 1)

	created, err := f.flow.Create(ctx, validCreateRequest(customer), nil)
	require.NoError(t, err)

	_, err = f.flow.Get(ctx, created.UUID, 2)
	assert.ErrorIs(t, err, ErrScheduleAccessDenied)
}
