package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportcomp/competition-system/models"
	"github.com/sportcomp/competition-system/repositories"
)

type fakeNotificationRepo struct {
	mu      sync.Mutex
	created []models.Notification
	err     error
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.ID = len(f.created) + 1
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationRepo) ListByUser(_ context.Context, _ int, _ bool, _, _ int) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, _ int) (int, error) { return 0, nil }

func (f *fakeNotificationRepo) MarkRead(_ context.Context, _, _ int) error { return nil }

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, _ int) error { return nil }

func (f *fakeNotificationRepo) forUser(userID int) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeParticipationRepo struct {
	mu             sync.Mutex
	participations []*models.Participation
	statusWrites   map[int]models.ParticipationStatus
}

func (f *fakeParticipationRepo) Create(_ context.Context, p *models.Participation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.participations {
		if existing.CompetitionID == p.CompetitionID && existing.ParticipantID == p.ParticipantID {
			return repositories.ErrParticipationConflict
		}
	}
	p.ID = len(f.participations) + 1
	f.participations = append(f.participations, p)
	return nil
}

func (f *fakeParticipationRepo) UpdateStatus(_ context.Context, id int, status models.ParticipationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusWrites == nil {
		f.statusWrites = make(map[int]models.ParticipationStatus)
	}
	for _, p := range f.participations {
		if p.ID == id {
			p.Status = status
			f.statusWrites[id] = status
			return nil
		}
	}
	return repositories.ErrParticipationNotFound
}

func (f *fakeParticipationRepo) FindByID(_ context.Context, id int) (*models.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participations {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (f *fakeParticipationRepo) FindByUserAndCompetition(_ context.Context, userID, competitionID int) (*models.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participations {
		if p.ParticipantID == userID && p.CompetitionID == competitionID {
			return p, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (f *fakeParticipationRepo) ListByCompetition(_ context.Context, competitionID int, statusFilter *models.ParticipationStatus) ([]*models.Participation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Participation
	for _, p := range f.participations {
		if p.CompetitionID != competitionID {
			continue
		}
		if statusFilter != nil && p.Status != *statusFilter {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeParticipationRepo) Delete(_ context.Context, _ int) error { return nil }

func fanoutFixture() (*NotificationFanout, *fakeNotificationRepo, *fakeParticipationRepo, *fakeBroadcaster) {
	notificationRepo := &fakeNotificationRepo{}
	participationRepo := &fakeParticipationRepo{
		participations: []*models.Participation{
			{ID: 1, CompetitionID: 1, ParticipantID: 201, Status: models.ParticipationApproved},
			{ID: 2, CompetitionID: 1, ParticipantID: 202, Status: models.ParticipationApproved},
			{ID: 3, CompetitionID: 1, ParticipantID: 203, Status: models.ParticipationPending},
			{ID: 4, CompetitionID: 1, ParticipantID: 204, Status: models.ParticipationRejected},
			{ID: 5, CompetitionID: 2, ParticipantID: 205, Status: models.ParticipationApproved},
		},
	}
	broadcaster := &fakeBroadcaster{}
	fanout := NewNotificationFanout(notificationRepo, participationRepo, broadcaster, discardLogger())
	return fanout, notificationRepo, participationRepo, broadcaster
}

func TestNotifyStatusChangeClosedNotifiesOrganizerOnly(t *testing.T) {
	fanout, notificationRepo, _, broadcaster := fanoutFixture()
	competition := pastDeadlineCompetition(1, models.StatusClosed)

	fanout.NotifyStatusChange(context.Background(), competition, models.StatusOpen, models.StatusClosed)

	organizerNotifications := notificationRepo.forUser(competition.OrganizerID)
	require.Len(t, organizerNotifications, 1)
	assert.Equal(t, models.NotificationTypeStatusChange, organizerNotifications[0].Type)
	assert.Equal(t, "Inscriptions fermées", organizerNotifications[0].Title)
	assert.Contains(t, organizerNotifications[0].Message, "fermées")

	// CLOSED does not fan out to participants.
	assert.Empty(t, notificationRepo.forUser(201))
	assert.Empty(t, notificationRepo.forUser(202))
	assert.Len(t, broadcaster.messages(), 1)
}

func TestNotifyStatusChangeInProgressFansOutToApproved(t *testing.T) {
	fanout, notificationRepo, _, broadcaster := fanoutFixture()
	competition := pastDeadlineCompetition(1, models.StatusInProgress)

	fanout.NotifyStatusChange(context.Background(), competition, models.StatusClosed, models.StatusInProgress)

	// Organizer plus the two approved participants of competition 1.
	assert.Len(t, notificationRepo.forUser(competition.OrganizerID), 1)
	assert.Len(t, notificationRepo.forUser(201), 1)
	assert.Len(t, notificationRepo.forUser(202), 1)
	assert.Empty(t, notificationRepo.forUser(203), "pending participants are not notified")
	assert.Empty(t, notificationRepo.forUser(204), "rejected participants are not notified")
	assert.Empty(t, notificationRepo.forUser(205), "other competitions are untouched")
	assert.Len(t, broadcaster.messages(), 3)
}

func TestNotifyStatusChangeCompletedFansOutToApproved(t *testing.T) {
	fanout, notificationRepo, _, _ := fanoutFixture()
	competition := pastDeadlineCompetition(1, models.StatusCompleted)

	fanout.NotifyStatusChange(context.Background(), competition, models.StatusInProgress, models.StatusCompleted)

	assert.Len(t, notificationRepo.forUser(competition.OrganizerID), 1)
	assert.Len(t, notificationRepo.forUser(201), 1)
	assert.Len(t, notificationRepo.forUser(202), 1)
}

func TestNotifyStatusChangeSurvivesPersistenceFailure(t *testing.T) {
	notificationRepo := &fakeNotificationRepo{err: assert.AnError}
	broadcaster := &fakeBroadcaster{}
	fanout := NewNotificationFanout(notificationRepo, &fakeParticipationRepo{}, broadcaster, discardLogger())
	competition := pastDeadlineCompetition(1, models.StatusClosed)

	// Must not panic, and the realtime push is still attempted.
	fanout.NotifyStatusChange(context.Background(), competition, models.StatusOpen, models.StatusClosed)
	assert.Len(t, broadcaster.messages(), 1)
}

func TestNotifyParticipationUpdate(t *testing.T) {
	fanout, notificationRepo, _, _ := fanoutFixture()
	competition := pastDeadlineCompetition(1, models.StatusOpen)

	approved := &models.Participation{ID: 1, CompetitionID: 1, ParticipantID: 201, Status: models.ParticipationApproved}
	fanout.NotifyParticipationUpdate(context.Background(), competition, approved)

	notifications := notificationRepo.forUser(201)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeRegistration, notifications[0].Type)
	assert.Equal(t, "Participation approuvée", notifications[0].Title)

	rejected := &models.Participation{ID: 2, CompetitionID: 1, ParticipantID: 202, Status: models.ParticipationRejected}
	fanout.NotifyParticipationUpdate(context.Background(), competition, rejected)

	notifications = notificationRepo.forUser(202)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "refusée")

	pending := &models.Participation{ID: 3, CompetitionID: 1, ParticipantID: 203, Status: models.ParticipationPending}
	fanout.NotifyParticipationUpdate(context.Background(), competition, pending)
	assert.Empty(t, notificationRepo.forUser(203), "pending outcome produces no notification")
}
