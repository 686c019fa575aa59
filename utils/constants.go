package utils

import (
	"time"
)

// Token time constants
const (
	// ServiceTokenTTL is the time-to-live for internal service tokens (24 hours)
	ServiceTokenTTL = 24 * time.Hour

	// ServiceTokenTTLSeconds is the same TTL expressed in seconds
	ServiceTokenTTLSeconds = 86400
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Billing constants
const (
	// DefaultPaymentTermDays is used when a customer has no configured payment term
	DefaultPaymentTermDays = 30

	// DefaultVATRatePercent is the standard Dutch VAT rate (21%)
	DefaultVATRatePercent = 21

	// InvoiceNumberSequenceDigits is the zero-padded width of the yearly sequence
	InvoiceNumberSequenceDigits = 4

	// BusinessTimezone is the timezone used for office-hours heuristics
	BusinessTimezone = "Europe/Amsterdam"
)
