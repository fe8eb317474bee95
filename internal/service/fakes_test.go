package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fitcomp/internal/domain"
)

// In-memory store fakes. They implement the store interfaces with maps and
// record enough call detail for the tests to assert on mutation counts.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompetitionStore struct {
	mu           sync.Mutex
	competitions map[string]*domain.Competition
	invitations  map[string]*domain.Invitation
	deleted      []string
}

func newFakeCompetitionStore() *fakeCompetitionStore {
	return &fakeCompetitionStore{
		competitions: make(map[string]*domain.Competition),
		invitations:  make(map[string]*domain.Invitation),
	}
}

func (f *fakeCompetitionStore) CreateCompetition(_ context.Context, c *domain.Competition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.competitions[c.ID] = &cp
	return nil
}

func (f *fakeCompetitionStore) GetCompetition(_ context.Context, id string) (*domain.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.competitions[id]
	if !ok {
		return nil, domain.ErrCompetitionNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCompetitionStore) ListCompetitionsForUser(_ context.Context, _ string) ([]domain.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Competition, 0, len(f.competitions))
	for _, c := range f.competitions {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCompetitionStore) ListPublicCompetitions(_ context.Context) ([]domain.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Competition
	for _, c := range f.competitions {
		if c.IsPublic {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCompetitionStore) UpdateCompetition(_ context.Context, c *domain.Competition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.competitions[c.ID]; !ok {
		return domain.ErrCompetitionNotFound
	}
	cp := *c
	f.competitions[c.ID] = &cp
	return nil
}

func (f *fakeCompetitionStore) DeleteCompetition(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.competitions[id]; !ok {
		return domain.ErrCompetitionNotFound
	}
	delete(f.competitions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCompetitionStore) CreateInvitation(_ context.Context, inv *domain.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.invitations[inv.ID] = &cp
	return nil
}

func (f *fakeCompetitionStore) HasPendingInvitation(_ context.Context, competitionID, inviteeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.CompetitionID == competitionID && inv.InviteeID == inviteeID && inv.Status == domain.InviteStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCompetitionStore) GetInvitation(_ context.Context, id string) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeCompetitionStore) UpdateInvitationStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok || inv.Status != domain.InviteStatusPending {
		return domain.ErrInvitationNotFound
	}
	inv.Status = status
	return nil
}

type fakeParticipantStore struct {
	mu           sync.Mutex
	participants map[string]*domain.Participant
	deletes      int
	deleteErr    error
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{participants: make(map[string]*domain.Participant)}
}

func participantKey(competitionID, userID string) string {
	return competitionID + "|" + userID
}

func (f *fakeParticipantStore) CreateParticipant(_ context.Context, competitionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey(competitionID, userID)
	if _, ok := f.participants[key]; ok {
		return domain.ErrAlreadyParticipant
	}
	f.participants[key] = &domain.Participant{
		CompetitionID: competitionID,
		UserID:        userID,
		JoinedAt:      time.Now(),
	}
	return nil
}

func (f *fakeParticipantStore) GetParticipant(_ context.Context, competitionID, userID string) (*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(competitionID, userID)]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeParticipantStore) ParticipantExists(_ context.Context, competitionID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.participants[participantKey(competitionID, userID)]
	return ok, nil
}

func (f *fakeParticipantStore) ListParticipants(_ context.Context, competitionID string) ([]domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Participant
	for _, p := range f.participants {
		if p.CompetitionID == competitionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeParticipantStore) UpdateParticipantGoals(_ context.Context, competitionID, userID string, goals domain.RingGoals) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(competitionID, userID)]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Goals = goals
	return nil
}

func (f *fakeParticipantStore) UpdateParticipantAggregate(_ context.Context, competitionID, userID string, agg domain.ParticipantAggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[participantKey(competitionID, userID)]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.TotalPoints = agg.TotalPoints
	p.MoveCalories = agg.MoveCalories
	p.ExerciseMinutes = agg.ExerciseMinutes
	p.StandHours = agg.StandHours
	p.StepCount = agg.StepCount
	p.MoveProgress = agg.MoveProgress
	p.ExerciseProgress = agg.ExerciseProgress
	p.StandProgress = agg.StandProgress
	at := agg.LastSyncAt
	p.LastSyncAt = &at
	return nil
}

func (f *fakeParticipantStore) DeleteParticipant(_ context.Context, competitionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	key := participantKey(competitionID, userID)
	if _, ok := f.participants[key]; !ok {
		return domain.ErrParticipantNotFound
	}
	delete(f.participants, key)
	f.deletes++
	return nil
}

type fakeLedgerStore struct {
	mu        sync.Mutex
	records   map[string]domain.DailyLedgerRecord
	upsertErr error
	batches   int
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{records: make(map[string]domain.DailyLedgerRecord)}
}

func ledgerKey(rec domain.DailyLedgerRecord) string {
	return rec.CompetitionID + "|" + rec.UserID + "|" + domain.DayKey(rec.Day)
}

func (f *fakeLedgerStore) BatchUpsertLedgerRecords(_ context.Context, records []domain.DailyLedgerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.batches++
	for _, rec := range records {
		f.records[ledgerKey(rec)] = rec
	}
	return nil
}

func (f *fakeLedgerStore) GetLedgerRange(_ context.Context, competitionID, userID string, start, end time.Time) ([]domain.DailyLedgerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start = domain.NormalizeDay(start)
	end = domain.NormalizeDay(end)
	var out []domain.DailyLedgerRecord
	for _, rec := range f.records {
		if rec.CompetitionID != competitionID || rec.UserID != userID {
			continue
		}
		if rec.Day.Before(start) || rec.Day.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeProfileStore struct {
	profiles map[string]*domain.Profile
}

func (f *fakeProfileStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeStandingsCache struct {
	mu       sync.Mutex
	points   map[string]int64
	removed  []string
	deleted  []string
	setErr   error
	setCalls int
}

func newFakeStandingsCache() *fakeStandingsCache {
	return &fakeStandingsCache{points: make(map[string]int64)}
}

func (f *fakeStandingsCache) SetPoints(_ context.Context, competitionID, userID string, totalPoints int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.points[participantKey(competitionID, userID)] = totalPoints
	return nil
}

func (f *fakeStandingsCache) RemoveParticipant(_ context.Context, competitionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, participantKey(competitionID, userID))
	f.removed = append(f.removed, participantKey(competitionID, userID))
	return nil
}

func (f *fakeStandingsCache) DeleteStandings(_ context.Context, competitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, competitionID)
	return nil
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	entries []domain.StandingsEntry
}

func (f *fakeBroadcaster) BroadcastStandings(_ string, entry domain.StandingsEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeDispatcher) Notify(_ context.Context, eventType, recipient string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType+"->"+recipient)
}

type fakeVerifier struct {
	valid  bool
	err    error
	calls  int
	lastTx string
}

func (f *fakeVerifier) Verify(_ context.Context, _, transactionID, _ string) (bool, error) {
	f.calls++
	f.lastTx = transactionID
	return f.valid, f.err
}
