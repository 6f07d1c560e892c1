package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(sessionID)
		s.Stage = domain.StageVerification
		s.Record.LoanAmount = domain.Float(200000)
		s.Record.Salary = domain.Float(60000)
		s.Record.EmploymentStatus = domain.EmploymentSalaried
		s.Record.City = "Mumbai"
		s.Customer["email"] = "asha@example.com"
		s.Append(domain.Message{Role: domain.RoleUser, Content: "I need 2 lakhs"})
		s.PendingEMIAdjustment = &domain.EMIAdjustment{
			EMI:          6000,
			InterestRate: 10.5,
			Options:      []domain.TenureOption{{TenureMonths: 36, Principal: 185000}},
		}

		require.NoError(t, store.Save(ctx, sessionID, s), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, domain.StageVerification, loaded.Stage)
		assert.Equal(t, 200000.0, domain.Deref(loaded.Record.LoanAmount))
		assert.Equal(t, domain.EmploymentSalaried, loaded.Record.EmploymentStatus)
		assert.Equal(t, "asha@example.com", loaded.Customer["email"])
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "I need 2 lakhs", loaded.History[0].Content)
		require.NotNil(t, loaded.PendingEMIAdjustment)
		assert.Equal(t, 6000.0, loaded.PendingEMIAdjustment.EMI)
	})

	t.Run("Loaded copy is isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Stage = domain.StageClosure
		loaded.Customer["email"] = "changed@example.com"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StageVerification, again.Stage)
		assert.Equal(t, "asha@example.com", again.Customer["email"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewSession(sessionID)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSession(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewSession(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
