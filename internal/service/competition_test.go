package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
)

type competitionFixture struct {
	svc          *CompetitionService
	competitions *fakeCompetitionStore
	participants *fakeParticipantStore
	cache        *fakeStandingsCache
	dispatcher   *fakeDispatcher
}

func newCompetitionFixture(t *testing.T) *competitionFixture {
	t.Helper()

	competitions := newFakeCompetitionStore()
	participants := newFakeParticipantStore()
	cache := newFakeStandingsCache()
	dispatcher := &fakeDispatcher{}

	svc := NewCompetitionService(competitions, participants, cache, dispatcher, &config.CompetitionConfig{}, testLogger())
	svc.now = func() time.Time { return mustDay("2025-06-01") }

	return &competitionFixture{
		svc:          svc,
		competitions: competitions,
		participants: participants,
		cache:        cache,
		dispatcher:   dispatcher,
	}
}

func TestCreateCompetitionDerivesTypeAndStatus(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		start      string
		end        string
		wantType   domain.CompetitionType
		wantStatus domain.CompetitionStatus
	}{
		{"upcoming weekend", "2025-06-07", "2025-06-08", domain.TypeWeekend, domain.StatusUpcoming},
		{"running weekly", "2025-05-26", "2025-06-01", domain.TypeWeekly, domain.StatusActive},
		{"upcoming monthly", "2025-07-01", "2025-07-31", domain.TypeMonthly, domain.StatusUpcoming},
		{"starts today is active", "2025-06-01", "2025-06-10", domain.TypeCustom, domain.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := f.svc.Create(ctx, "creator", CreateCompetitionRequest{
				Name:        "Challenge",
				StartDate:   mustDay(tt.start),
				EndDate:     mustDay(tt.end),
				ScoringType: domain.ScoringRingClose,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantStatus, c.Status)
			assert.NotEmpty(t, c.ID)
		})
	}
}

func TestCreateCompetitionAutoJoinsCreator(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, "creator", CreateCompetitionRequest{
		Name:        "Challenge",
		StartDate:   mustDay("2025-06-02"),
		EndDate:     mustDay("2025-06-08"),
		ScoringType: domain.ScoringRingClose,
	})
	require.NoError(t, err)

	_, err = f.participants.GetParticipant(ctx, c.ID, "creator")
	assert.NoError(t, err)
}

func TestCreateCompetitionValidation(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "creator", CreateCompetitionRequest{
		Name:        "   ",
		StartDate:   mustDay("2025-06-02"),
		EndDate:     mustDay("2025-06-08"),
		ScoringType: domain.ScoringRingClose,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Create(ctx, "creator", CreateCompetitionRequest{
		Name:        "Challenge",
		StartDate:   mustDay("2025-06-02"),
		EndDate:     mustDay("2025-06-08"),
		ScoringType: domain.ScoringType("vibes"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidScoringType)

	_, err = f.svc.Create(ctx, "creator", CreateCompetitionRequest{
		Name:        "Challenge",
		StartDate:   mustDay("2025-06-08"),
		EndDate:     mustDay("2025-06-02"),
		ScoringType: domain.ScoringRingClose,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDates)
}

func (f *competitionFixture) seed(t *testing.T, status domain.CompetitionStatus, public bool) *domain.Competition {
	t.Helper()
	c := &domain.Competition{
		ID:          "comp-1",
		Name:        "Challenge",
		StartDate:   mustDay("2025-06-02"),
		EndDate:     mustDay("2025-06-08"),
		Type:        domain.TypeWeekly,
		Status:      status,
		ScoringType: domain.ScoringRingClose,
		IsPublic:    public,
		CreatorID:   "creator",
	}
	require.NoError(t, f.competitions.CreateCompetition(context.Background(), c))
	require.NoError(t, f.participants.CreateParticipant(context.Background(), c.ID, "creator"))
	return c
}

func strPtr(s string) *string { return &s }

func scoringPtr(s domain.ScoringType) *domain.ScoringType { return &s }

func TestUpdateCompetitionCreatorOnly(t *testing.T) {
	f := newCompetitionFixture(t)
	f.seed(t, domain.StatusUpcoming, false)

	_, err := f.svc.Update(context.Background(), "comp-1", "mallory", UpdateCompetitionRequest{
		Name: strPtr("Hijacked"),
	})
	assert.ErrorIs(t, err, domain.ErrNotCreator)
}

func TestUpdateCompetitionFieldGating(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()

	t.Run("upcoming allows scoring change", func(t *testing.T) {
		f.seed(t, domain.StatusUpcoming, false)
		c, err := f.svc.Update(ctx, "comp-1", "creator", UpdateCompetitionRequest{
			ScoringType: scoringPtr(domain.ScoringStepCount),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ScoringStepCount, c.ScoringType)
	})

	t.Run("active locks scoring and start date", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusActive, false)

		_, err := f.svc.Update(ctx, "comp-1", "creator", UpdateCompetitionRequest{
			ScoringType: scoringPtr(domain.ScoringStepCount),
		})
		assert.ErrorIs(t, err, domain.ErrFieldLocked)

		start := mustDay("2025-06-03")
		_, err = f.svc.Update(ctx, "comp-1", "creator", UpdateCompetitionRequest{
			StartDate: &start,
		})
		assert.ErrorIs(t, err, domain.ErrFieldLocked)

		// Name and end date remain editable while active
		end := mustDay("2025-06-10")
		c, err := f.svc.Update(ctx, "comp-1", "creator", UpdateCompetitionRequest{
			Name:    strPtr("Extended Challenge"),
			EndDate: &end,
		})
		require.NoError(t, err)
		assert.Equal(t, "Extended Challenge", c.Name)
		assert.Equal(t, end, c.EndDate)
	})

	t.Run("completed is frozen", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusCompleted, false)

		_, err := f.svc.Update(ctx, "comp-1", "creator", UpdateCompetitionRequest{
			Name: strPtr("Too Late"),
		})
		assert.ErrorIs(t, err, domain.ErrFieldLocked)
	})
}

func TestUpdateCompetitionReclassifiesOnDateChange(t *testing.T) {
	f := newCompetitionFixture(t)
	f.seed(t, domain.StatusUpcoming, false)

	// Stretching a weekly span to ten days makes it custom
	end := mustDay("2025-06-11")
	c, err := f.svc.Update(context.Background(), "comp-1", "creator", UpdateCompetitionRequest{
		EndDate: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TypeCustom, c.Type)
}

func TestDeleteCompetition(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()
	f.seed(t, domain.StatusActive, false)
	require.NoError(t, f.participants.CreateParticipant(ctx, "comp-1", "alice"))

	assert.ErrorIs(t, f.svc.Delete(ctx, "comp-1", "alice"), domain.ErrNotCreator)

	require.NoError(t, f.svc.Delete(ctx, "comp-1", "creator"))
	_, err := f.competitions.GetCompetition(ctx, "comp-1")
	assert.ErrorIs(t, err, domain.ErrCompetitionNotFound)
	assert.Contains(t, f.cache.deleted, "comp-1")
	assert.Contains(t, f.dispatcher.events, "competition_deleted->alice")
	assert.NotContains(t, f.dispatcher.events, "competition_deleted->creator")
}

func TestInviteDeduplicates(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()
	f.seed(t, domain.StatusUpcoming, false)

	inv, err := f.svc.Invite(ctx, "comp-1", "creator", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusPending, inv.Status)
	assert.Contains(t, f.dispatcher.events, "invite_received->alice")

	_, err = f.svc.Invite(ctx, "comp-1", "creator", "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyInvited)
}

func TestInviteRejectsParticipantsAndCompleted(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()
	f.seed(t, domain.StatusUpcoming, false)

	_, err := f.svc.Invite(ctx, "comp-1", "alice", "creator")
	assert.ErrorIs(t, err, domain.ErrAlreadyParticipant)

	f2 := newCompetitionFixture(t)
	f2.seed(t, domain.StatusCompleted, false)
	_, err = f2.svc.Invite(ctx, "comp-1", "creator", "alice")
	assert.ErrorIs(t, err, domain.ErrCompetitionEnded)
}

func TestAcceptInvitation(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()
	f.seed(t, domain.StatusUpcoming, false)

	inv, err := f.svc.Invite(ctx, "comp-1", "creator", "alice")
	require.NoError(t, err)

	// Only the invitee can act on it
	assert.ErrorIs(t, f.svc.AcceptInvitation(ctx, inv.ID, "mallory"), domain.ErrInvitationNotFound)

	require.NoError(t, f.svc.AcceptInvitation(ctx, inv.ID, "alice"))
	_, err = f.participants.GetParticipant(ctx, "comp-1", "alice")
	assert.NoError(t, err)
	assert.Contains(t, f.dispatcher.events, "participant_joined->creator")

	// Accepting twice fails: the invitation is no longer pending
	assert.ErrorIs(t, f.svc.AcceptInvitation(ctx, inv.ID, "alice"), domain.ErrInvitationNotFound)
}

func TestDeclineInvitation(t *testing.T) {
	f := newCompetitionFixture(t)
	ctx := context.Background()
	f.seed(t, domain.StatusUpcoming, false)

	inv, err := f.svc.Invite(ctx, "comp-1", "creator", "alice")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeclineInvitation(ctx, inv.ID, "alice"))
	_, err = f.participants.GetParticipant(ctx, "comp-1", "alice")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	// Declining frees the invitee for a fresh invite
	_, err = f.svc.Invite(ctx, "comp-1", "creator", "alice")
	assert.NoError(t, err)
}

func TestJoinPublic(t *testing.T) {
	ctx := context.Background()

	t.Run("private competitions reject joins", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusUpcoming, false)
		assert.ErrorIs(t, f.svc.JoinPublic(ctx, "comp-1", "alice"), domain.ErrCompetitionPrivate)
	})

	t.Run("upcoming public competition joinable", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusUpcoming, true)
		require.NoError(t, f.svc.JoinPublic(ctx, "comp-1", "alice"))
		_, err := f.participants.GetParticipant(ctx, "comp-1", "alice")
		assert.NoError(t, err)
	})

	t.Run("completed competition rejects joins", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusCompleted, true)
		assert.ErrorIs(t, f.svc.JoinPublic(ctx, "comp-1", "alice"), domain.ErrCompetitionEnded)
	})

	t.Run("started fixed-window competition rejects joins", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusActive, true)
		assert.ErrorIs(t, f.svc.JoinPublic(ctx, "comp-1", "alice"), domain.ErrCompetitionStarted)
	})

	t.Run("double join rejected", func(t *testing.T) {
		f := newCompetitionFixture(t)
		f.seed(t, domain.StatusUpcoming, true)
		require.NoError(t, f.svc.JoinPublic(ctx, "comp-1", "alice"))
		assert.ErrorIs(t, f.svc.JoinPublic(ctx, "comp-1", "alice"), domain.ErrAlreadyParticipant)
	})
}
