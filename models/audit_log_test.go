package models

import (
	"testing"
	"time"

	"github.com/dkortekaas/invoicing-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	entry := AuditLog{
		UserID:     utils.ToPtr(uint(7)),
		UserEmail:  utils.ToPtr("jan@voorbeeld.nl"),
		Action:     AuditActionUpdate,
		EntityType: AuditEntityInvoice,
		EntityID:   utils.ToPtr("42"),
		Changes: FieldChanges{
			"total": {OldValue: "100.00", NewValue: "121.00"},
		},
		CreatedAt: time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("hash is deterministic", func(t *testing.T) {
		h1, err := entry.ComputeHash()
		require.NoError(t, err)
		h2, err := entry.ComputeHash()
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})

	t.Run("hash depends on previous hash", func(t *testing.T) {
		base, err := entry.ComputeHash()
		require.NoError(t, err)

		chained := entry
		chained.PreviousHash = utils.ToPtr(base)
		linked, err := chained.ComputeHash()
		require.NoError(t, err)
		assert.NotEqual(t, base, linked)
	})

	t.Run("hash depends on content fields", func(t *testing.T) {
		base, err := entry.ComputeHash()
		require.NoError(t, err)

		tampered := entry
		tampered.Changes = FieldChanges{
			"total": {OldValue: "100.00", NewValue: "999.00"},
		}
		altered, err := tampered.ComputeHash()
		require.NoError(t, err)
		assert.NotEqual(t, base, altered)
	})
}

func TestHashChainReplay(t *testing.T) {
	// Build a three-entry chain, then verify a front-to-back replay
	// reproduces every stored hash and that tampering breaks it.
	var prev *string
	entries := make([]AuditLog, 0, 3)
	for i, action := range []string{AuditActionCreate, AuditActionUpdate, AuditActionDelete} {
		e := AuditLog{
			UserID:       utils.ToPtr(uint(1)),
			Action:       action,
			EntityType:   AuditEntityInvoice,
			EntityID:     utils.ToPtr("9"),
			PreviousHash: prev,
			CreatedAt:    time.Date(2025, time.May, 1, 10, i, 0, 0, time.UTC),
		}
		hash, err := e.ComputeHash()
		require.NoError(t, err)
		e.Hash = hash
		prev = &e.Hash
		entries = append(entries, e)
	}

	t.Run("intact chain verifies", func(t *testing.T) {
		for _, e := range entries {
			recomputed, err := e.ComputeHash()
			require.NoError(t, err)
			assert.Equal(t, e.Hash, recomputed)
		}
	})

	t.Run("tampering with one entry is detected", func(t *testing.T) {
		tampered := entries[1]
		tampered.Action = AuditActionView
		recomputed, err := tampered.ComputeHash()
		require.NoError(t, err)
		assert.NotEqual(t, tampered.Hash, recomputed)
	})
}

func TestDetectChanges(t *testing.T) {
	t.Run("create records every field against nil", func(t *testing.T) {
		changes := DetectChanges(nil, map[string]any{
			"status": "DRAFT",
			"total":  "121.00",
		})

		require.Len(t, changes, 2)
		assert.Nil(t, changes["status"].OldValue)
		assert.Equal(t, "DRAFT", changes["status"].NewValue)
	})

	t.Run("update records only differing fields", func(t *testing.T) {
		changes := DetectChanges(
			map[string]any{"status": "DRAFT", "total": "121.00"},
			map[string]any{"status": "SENT", "total": "121.00"},
		)

		require.Len(t, changes, 1)
		assert.Equal(t, "DRAFT", changes["status"].OldValue)
		assert.Equal(t, "SENT", changes["status"].NewValue)
	})

	t.Run("removed fields appear with nil new value", func(t *testing.T) {
		changes := DetectChanges(
			map[string]any{"reference": "abc"},
			map[string]any{},
		)

		require.Len(t, changes, 1)
		assert.Equal(t, "abc", changes["reference"].OldValue)
		assert.Nil(t, changes["reference"].NewValue)
	})

	t.Run("bookkeeping timestamps are skipped", func(t *testing.T) {
		changes := DetectChanges(
			map[string]any{"updatedAt": "2025-01-01", "created_at": "2025-01-01"},
			map[string]any{"updatedAt": "2025-02-01", "created_at": "2025-02-01"},
		)
		assert.Empty(t, changes)
	})
}

func TestSuspicionReason(t *testing.T) {
	entry := AuditLog{
		IsSuspicious:     true,
		SuspicionReasons: []string{"reden een", "reden twee"},
	}
	assert.Equal(t, "reden een; reden twee", entry.SuspicionReason())
}

func TestAuditScope(t *testing.T) {
	assert.Equal(t, "user:12", AuditScopeForUser(12))
	assert.Equal(t, "global", AuditScopeGlobal)
}
