// Package testing provides test utilities and database setup for testing the invoicing engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dkortekaas/invoicing-engine/models"
	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/shopspring/decimal"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAccount creates an active account with a unique email
func (tf *TestFixtures) CreateTestAccount() (*models.Account, error) {
	randomDigits := fmt.Sprintf("%08d", rand.Intn(90000000)+10000000)

	account := &models.Account{
		Name:     fmt.Sprintf("Testbedrijf %s BV", randomDigits),
		Email:    fmt.Sprintf("administratie.%s@example.com", randomDigits),
		IsActive: true,
	}

	err := tf.DB.DB.Create(account).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test account: %w", err)
	}

	return account, nil
}

// CreateTestCustomer creates a billable customer under the given account
func (tf *TestFixtures) CreateTestCustomer(accountID uint) (*models.Customer, error) {
	randomDigits := fmt.Sprintf("%08d", rand.Intn(90000000)+10000000)
	vatNumber := fmt.Sprintf("NL%sB01", randomDigits)

	customer := &models.Customer{
		AccountID:       accountID,
		Name:            fmt.Sprintf("Klant %s", randomDigits),
		Email:           fmt.Sprintf("facturen.%s@example.com", randomDigits),
		VATNumber:       &vatNumber,
		PaymentTermDays: 30,
		IsActive:        true,
	}

	err := tf.DB.DB.Create(customer).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	return customer, nil
}

// CreateTestSchedule creates an active monthly schedule with a single line item
func (tf *TestFixtures) CreateTestSchedule(accountID, customerID uint, startDate time.Time) (*models.RecurringSchedule, error) {
	schedule := &models.RecurringSchedule{
		AccountID:  accountID,
		CustomerID: customerID,
		Frequency:  models.FrequencyMonthly,
		Interval:   1,
		StartDate:  utils.StartOfDayUTC(startDate),
		NextDate:   utils.StartOfDayUTC(startDate),
		Status:     models.ScheduleStatusActive,
		LineItems: []models.ScheduleLineItem{
			{
				Position:    0,
				Description: "Onderhoudscontract",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString("150.00"),
				VATRate:     decimal.NewFromInt(21),
			},
		},
	}

	err := tf.DB.DB.Create(schedule).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test schedule: %w", err)
	}

	return schedule, nil
}

// CreateTestInvoice creates a draft invoice for the given schedule occurrence
func (tf *TestFixtures) CreateTestInvoice(accountID, customerID uint, scheduleID *uint, invoiceNumber string, invoiceDate time.Time) (*models.Invoice, error) {
	subtotal := decimal.RequireFromString("150.00")
	vatAmount := decimal.RequireFromString("31.50")

	invoice := &models.Invoice{
		AccountID:     accountID,
		CustomerID:    customerID,
		ScheduleID:    scheduleID,
		InvoiceNumber: invoiceNumber,
		InvoiceDate:   utils.StartOfDayUTC(invoiceDate),
		DueDate:       utils.StartOfDayUTC(invoiceDate).AddDate(0, 0, 30),
		Subtotal:      subtotal,
		VATAmount:     vatAmount,
		Total:         subtotal.Add(vatAmount),
		Status:        models.InvoiceStatusDraft,
		LineItems: []models.InvoiceLineItem{
			{
				Position:    0,
				Description: "Onderhoudscontract",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   subtotal,
				VATRate:     decimal.NewFromInt(21),
				Subtotal:    subtotal,
				VATAmount:   vatAmount,
				Total:       subtotal.Add(vatAmount),
			},
		},
	}

	err := tf.DB.DB.Create(invoice).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test invoice: %w", err)
	}

	return invoice, nil
}

// CreateTestPriceChange registers a pending price change for the schedule
func (tf *TestFixtures) CreateTestPriceChange(scheduleID uint, effectiveDate time.Time) (*models.PendingPriceChange, error) {
	change := &models.PendingPriceChange{
		ScheduleID:    scheduleID,
		EffectiveDate: utils.StartOfDayUTC(effectiveDate),
		Revisions: models.PriceRevisions{
			{Position: 0, UnitPrice: utils.ToPtr(decimal.RequireFromString("175.00"))},
		},
	}

	err := tf.DB.DB.Create(change).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test price change: %w", err)
	}

	return change, nil
}

// CreateMultipleTestSchedules creates schedules across the supported frequencies
func (tf *TestFixtures) CreateMultipleTestSchedules(accountID, customerID uint, startDate time.Time) ([]*models.RecurringSchedule, error) {
	frequencies := []models.Frequency{
		models.FrequencyWeekly,
		models.FrequencyMonthly,
		models.FrequencyQuarterly,
		models.FrequencyAnnual,
	}

	var schedules []*models.RecurringSchedule
	for i, frequency := range frequencies {
		schedule, err := tf.CreateTestSchedule(accountID, customerID, startDate)
		if err != nil {
			return nil, fmt.Errorf("failed to create schedule %d: %w", i, err)
		}

		schedule.Frequency = frequency
		err = tf.DB.DB.Save(schedule).Error
		if err != nil {
			return nil, fmt.Errorf("failed to update schedule %d: %w", i, err)
		}

		schedules = append(schedules, schedule)
	}

	return schedules, nil
}
