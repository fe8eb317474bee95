package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
)

type leaveFixture struct {
	svc          *LeaveService
	competitions *fakeCompetitionStore
	participants *fakeParticipantStore
	profiles     *fakeProfileStore
	verifier     *fakeVerifier
	cache        *fakeStandingsCache
	dispatcher   *fakeDispatcher
}

func newLeaveFixture(t *testing.T) *leaveFixture {
	t.Helper()

	competitions := newFakeCompetitionStore()
	participants := newFakeParticipantStore()
	profiles := &fakeProfileStore{profiles: map[string]*domain.Profile{
		"creator": {UserID: "creator", Tier: domain.TierFree},
		"alice":   {UserID: "alice", Tier: domain.TierFree},
		"bob":     {UserID: "bob", Tier: domain.TierPro},
	}}
	verifier := &fakeVerifier{}
	cache := newFakeStandingsCache()
	dispatcher := &fakeDispatcher{}

	ctx := context.Background()
	c := &domain.Competition{
		ID:          "comp-1",
		Name:        "Step Wars",
		Status:      domain.StatusActive,
		ScoringType: domain.ScoringStepCount,
		CreatorID:   "creator",
	}
	require.NoError(t, competitions.CreateCompetition(ctx, c))
	for _, u := range []string{"creator", "alice", "bob"} {
		require.NoError(t, participants.CreateParticipant(ctx, c.ID, u))
	}

	cfg := &config.PaymentConfig{
		ProductID: "leave_fee",
		Amount:    2.99,
		Currency:  "USD",
	}

	svc := NewLeaveService(competitions, participants, profiles, verifier, cache, dispatcher, cfg, testLogger())
	return &leaveFixture{
		svc:          svc,
		competitions: competitions,
		participants: participants,
		profiles:     profiles,
		verifier:     verifier,
		cache:        cache,
		dispatcher:   dispatcher,
	}
}

func (f *leaveFixture) isParticipant(t *testing.T, userID string) bool {
	t.Helper()
	_, err := f.participants.GetParticipant(context.Background(), "comp-1", userID)
	return err == nil
}

func TestLeaveNotParticipant(t *testing.T) {
	f := newLeaveFixture(t)
	_, err := f.svc.Leave(context.Background(), domain.LeaveRequest{CompetitionID: "comp-1", UserID: "mallory"})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestLeaveCreatorAlwaysRejected(t *testing.T) {
	f := newLeaveFixture(t)

	// Even with a valid receipt, the creator cannot leave
	f.verifier.valid = true
	result, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "creator",
		TransactionID: "txn-1",
	})
	assert.ErrorIs(t, err, domain.ErrCreatorCannotLeave)
	require.NotNil(t, result)
	assert.Equal(t, domain.LeaveIsCreator, result.Outcome)

	assert.True(t, f.isParticipant(t, "creator"))
	assert.Equal(t, 0, f.verifier.calls)
}

func TestLeaveFreeTierWithoutReceiptRequiresPayment(t *testing.T) {
	f := newLeaveFixture(t)

	result, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LeavePaymentRequired, result.Outcome)
	require.NotNil(t, result.Payment)
	assert.Equal(t, 2.99, result.Payment.Amount)
	assert.Equal(t, "USD", result.Payment.Currency)
	assert.Equal(t, "leave_fee", result.Payment.ProductID)

	// Nothing mutated and the verifier never hit
	assert.True(t, f.isParticipant(t, "alice"))
	assert.Equal(t, 0, f.participants.deletes)
	assert.Equal(t, 0, f.verifier.calls)
}

func TestLeaveFreeTierFailedVerification(t *testing.T) {
	f := newLeaveFixture(t)
	f.verifier.valid = false

	result, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "alice",
		TransactionID: "txn-bogus",
	})
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
	require.NotNil(t, result)
	assert.Equal(t, domain.LeaveVerificationFailed, result.Outcome)

	// Still a participant: the state is recoverable, a retry with a good
	// receipt must be possible
	assert.True(t, f.isParticipant(t, "alice"))
	assert.Equal(t, 1, f.verifier.calls)
	assert.Equal(t, "txn-bogus", f.verifier.lastTx)
}

func TestLeaveFreeTierVerifiedReceipt(t *testing.T) {
	f := newLeaveFixture(t)
	f.verifier.valid = true

	result, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "alice",
		TransactionID: "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LeaveRemoved, result.Outcome)

	assert.False(t, f.isParticipant(t, "alice"))
	assert.Contains(t, f.cache.removed, "comp-1|alice")
	assert.Contains(t, f.dispatcher.events, "participant_left->creator")
}

func TestLeavePaidTierSkipsVerification(t *testing.T) {
	f := newLeaveFixture(t)

	result, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LeaveRemoved, result.Outcome)

	assert.False(t, f.isParticipant(t, "bob"))
	assert.Equal(t, 0, f.verifier.calls)
}

func TestLeaveVerifierErrorSurfaces(t *testing.T) {
	f := newLeaveFixture(t)
	f.verifier.err = errors.New("provider timeout")

	_, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "alice",
		TransactionID: "txn-1",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrVerificationFailed)
	assert.True(t, f.isParticipant(t, "alice"))
}

func TestLeaveDeleteFailureAfterAuthorization(t *testing.T) {
	f := newLeaveFixture(t)
	f.verifier.valid = true
	f.participants.deleteErr = errors.New("deadlock detected")

	_, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "alice",
		TransactionID: "txn-1",
	})
	require.Error(t, err)

	// No cache eviction or notification on a failed removal
	assert.Empty(t, f.cache.removed)
	assert.Empty(t, f.dispatcher.events)
}

func TestLeaveUnknownProfile(t *testing.T) {
	f := newLeaveFixture(t)
	require.NoError(t, f.participants.CreateParticipant(context.Background(), "comp-1", "ghost"))

	_, err := f.svc.Leave(context.Background(), domain.LeaveRequest{
		CompetitionID: "comp-1",
		UserID:        "ghost",
	})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.True(t, f.isParticipant(t, "ghost"))
}
