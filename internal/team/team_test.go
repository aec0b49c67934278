package team

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/careloop/careteam-BE/internal/audit"
	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/stretchr/testify/require"
)

type recordingTeamDispatcher struct {
	mu        sync.Mutex
	responses []InviteResponseMessage
	emails    []InviteEmailMessage
}

func (d *recordingTeamDispatcher) DispatchInviteResponseNotification(ctx context.Context, msg InviteResponseMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = append(d.responses, msg)
	return nil
}

func (d *recordingTeamDispatcher) DispatchInviteEmail(ctx context.Context, msg InviteEmailMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, msg)
	return nil
}

type nopNotificationDispatcher struct{}

func (nopNotificationDispatcher) DispatchDeliverNotification(context.Context, string) error {
	return nil
}

type fixture struct {
	store         *docstore.MemoryStore
	notifications *notification.Service
	teams         *Service
	dispatcher    *recordingTeamDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	notifications := notification.NewService(store, nopNotificationDispatcher{}, nil)
	dispatcher := &recordingTeamDispatcher{}
	teams := NewService(store, notifications, dispatcher, audit.NopSink{})

	f := &fixture{store: store, notifications: notifications, teams: teams, dispatcher: dispatcher}
	f.seedUser(t, "dr-owner", "Dr. Owner", "doctor")
	f.seedUser(t, "dr-invitee", "Dr. Invitee", "doctor")
	f.seedUser(t, "dr-third", "Dr. Third", "nurse")
	f.seedUser(t, "patient-1", "Pat One", "patient")
	f.seedUser(t, "patient-2", "Pat Two", "patient")
	return f
}

func (f *fixture) seedUser(t *testing.T, id, name, userRole string) {
	t.Helper()
	err := f.store.Set(context.Background(), CollectionUsers, id, map[string]any{
		"name":  name,
		"email": id + "@example.com",
		"role":  userRole,
	})
	require.NoError(t, err)
}

func (f *fixture) createTeam(t *testing.T, ownerID, name string) Team {
	t.Helper()
	created, err := f.teams.CreateTeam(context.Background(), CreateTeamInput{
		OwnerID: ownerID,
		Name:    name,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) pendingInvite(t *testing.T, inviteeID string) notification.Notification {
	t.Helper()
	feed, err := f.notifications.ListByRecipient(context.Background(), inviteeID, 0)
	require.NoError(t, err)
	for _, item := range feed {
		if item.Type == notification.TypeTeamInvite && item.ActionStatus == notification.ActionStatusPending {
			return item
		}
	}
	t.Fatalf("no pending invite for %s", inviteeID)
	return notification.Notification{}
}

func TestCreateTeam(t *testing.T) {
	f := newFixture(t)

	created := f.createTeam(t, "dr-owner", "Cardiology")
	require.NotEmpty(t, created.ID)
	require.Equal(t, "dr-owner", created.OwnerID)
	require.Equal(t, []string{"dr-owner"}, created.MemberIDs)
	require.Len(t, created.Members, 1)
	require.Equal(t, "Dr. Owner", created.Members[0].Name)
	require.NotEmpty(t, created.Color)

	_, err := f.teams.CreateTeam(context.Background(), CreateTeamInput{OwnerID: "patient-1", Name: "Nope"})
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = f.teams.CreateTeam(context.Background(), CreateTeamInput{OwnerID: "dr-owner", Name: "   "})
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestUpdateTeam(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")

	name := "Cardiology East"
	color := "#abc"
	updated, err := f.teams.UpdateTeam(context.Background(), created.ID, "dr-owner", UpdateTeamInput{
		Name:  &name,
		Color: &color,
	})
	require.NoError(t, err)
	require.Equal(t, "Cardiology East", updated.Name)
	require.Equal(t, "#AABBCC", updated.Color)

	_, err = f.teams.UpdateTeam(context.Background(), created.ID, "dr-invitee", UpdateTeamInput{Name: &name})
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestInvite(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	updated, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	require.Equal(t, []string{"dr-invitee"}, updated.PendingInviteDoctorIDs)
	require.NotContains(t, updated.MemberIDs, "dr-invitee")

	invite := f.pendingInvite(t, "dr-invitee")
	require.Equal(t, created.ID, invite.Metadata["teamId"])
	require.Equal(t, "dr-owner", invite.Metadata["inviterId"])
	require.False(t, invite.Read)

	require.Len(t, f.dispatcher.emails, 1)
	require.Equal(t, "dr-invitee", f.dispatcher.emails[0].InviteeID)

	t.Run("self invite rejected", func(t *testing.T) {
		_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-owner")
		require.ErrorIs(t, err, ErrSelfInvite)
	})

	t.Run("patients are not eligible", func(t *testing.T) {
		_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "patient-1")
		require.ErrorIs(t, err, ErrNotEligible)
	})

	t.Run("only the owner invites", func(t *testing.T) {
		_, err := f.teams.Invite(ctx, created.ID, "dr-invitee", "dr-third")
		require.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("repeat invite stays a single pending entry", func(t *testing.T) {
		again, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
		require.NoError(t, err)
		require.Equal(t, []string{"dr-invitee"}, again.PendingInviteDoctorIDs)
	})
}

func TestRespondAccept(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	invite := f.pendingInvite(t, "dr-invitee")

	decision, err := f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionAccepted)
	require.NoError(t, err)
	require.Equal(t, DecisionAccepted, decision)

	updated, err := f.teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	require.Contains(t, updated.MemberIDs, "dr-invitee")
	require.Empty(t, updated.PendingInviteDoctorIDs)
	require.Len(t, updated.Members, 2)

	resolved, err := f.notifications.Get(ctx, invite.ID)
	require.NoError(t, err)
	require.Equal(t, notification.ActionStatusAccepted, resolved.ActionStatus)
	require.True(t, resolved.Read)

	require.Len(t, f.dispatcher.responses, 1)
	require.Equal(t, "dr-owner", f.dispatcher.responses[0].InviterID)
	require.True(t, f.dispatcher.responses[0].Accepted)
}

func TestRespondReject(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	invite := f.pendingInvite(t, "dr-invitee")

	_, err = f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionRejected)
	require.NoError(t, err)

	updated, err := f.teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	require.NotContains(t, updated.MemberIDs, "dr-invitee")
	require.Empty(t, updated.PendingInviteDoctorIDs)

	resolved, err := f.notifications.Get(ctx, invite.ID)
	require.NoError(t, err)
	require.Equal(t, notification.ActionStatusRejected, resolved.ActionStatus)

	require.Len(t, f.dispatcher.responses, 1)
	require.False(t, f.dispatcher.responses[0].Accepted)
}

func TestParseDecision(t *testing.T) {
	testCases := []struct {
		raw  string
		want Decision
		ok   bool
	}{
		{raw: "accept", want: DecisionAccepted, ok: true},
		{raw: "reject", want: DecisionRejected, ok: true},
		{raw: "accepted", want: DecisionAccepted, ok: true},
		{raw: "rejected", want: DecisionRejected, ok: true},
		{raw: "maybe", ok: false},
		{raw: "", ok: false},
	}

	for _, tc := range testCases {
		got, ok := ParseDecision(tc.raw)
		require.Equal(t, tc.ok, ok, "raw %q", tc.raw)
		require.Equal(t, tc.want, got, "raw %q", tc.raw)
	}
}

func TestRespondPreconditions(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	invite := f.pendingInvite(t, "dr-invitee")

	t.Run("only the recipient responds", func(t *testing.T) {
		_, err := f.teams.Respond(ctx, invite.ID, "dr-third", DecisionAccepted)
		require.ErrorIs(t, err, notification.ErrForbidden)
	})

	t.Run("non-invite notifications are not respondable", func(t *testing.T) {
		plain, err := f.notifications.Create(ctx, notification.CreateInput{
			RecipientID: "dr-invitee",
			Type:        notification.TypeAppointmentBooked,
			Title:       "Appointment booked",
		})
		require.NoError(t, err)

		_, err = f.teams.Respond(ctx, plain.ID, "dr-invitee", DecisionAccepted)
		require.ErrorIs(t, err, ErrNotInvite)
	})

	t.Run("missing notification", func(t *testing.T) {
		_, err := f.teams.Respond(ctx, "no-such-id", "dr-invitee", DecisionAccepted)
		require.ErrorIs(t, err, notification.ErrNotFound)
	})

	t.Run("team archived before responding", func(t *testing.T) {
		require.NoError(t, f.teams.ArchiveTeam(ctx, created.ID, "dr-owner"))

		_, err := f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionAccepted)
		require.ErrorIs(t, err, ErrTeamGone)

		// The invite stays pending so the client can surface the conflict.
		unresolved, err := f.notifications.Get(ctx, invite.ID)
		require.NoError(t, err)
		require.Equal(t, notification.ActionStatusPending, unresolved.ActionStatus)
	})
}

func TestRespondTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	invite := f.pendingInvite(t, "dr-invitee")

	_, err = f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionRejected)
	require.NoError(t, err)

	_, err = f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionAccepted)
	require.ErrorIs(t, err, ErrInviteResolved)

	// Terminal state is absorbing.
	resolved, err := f.notifications.Get(ctx, invite.ID)
	require.NoError(t, err)
	require.Equal(t, notification.ActionStatusRejected, resolved.ActionStatus)

	updated, err := f.teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	require.NotContains(t, updated.MemberIDs, "dr-invitee")
}

func TestRespondConcurrent(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	invite := f.pendingInvite(t, "dr-invitee")

	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionAccepted)
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := f.teams.Respond(ctx, invite.ID, "dr-invitee", DecisionRejected)
		results <- err
	}()
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, ErrInviteResolved)
			conflicts++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, conflicts)

	// The team state matches whichever response won.
	resolved, err := f.notifications.Get(ctx, invite.ID)
	require.NoError(t, err)
	updated, err := f.teams.GetTeam(ctx, created.ID)
	require.NoError(t, err)
	if resolved.ActionStatus == notification.ActionStatusAccepted {
		require.Contains(t, updated.MemberIDs, "dr-invitee")
	} else {
		require.NotContains(t, updated.MemberIDs, "dr-invitee")
	}
	require.Empty(t, updated.PendingInviteDoctorIDs)
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	// Pending invite is cleared when the owner adds the invitee directly.
	_, err := f.teams.Invite(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)

	updated, err := f.teams.AddMember(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	require.Contains(t, updated.MemberIDs, "dr-invitee")
	require.Empty(t, updated.PendingInviteDoctorIDs)

	_, err = f.teams.AddMember(ctx, created.ID, "dr-owner", "dr-invitee")
	require.ErrorIs(t, err, ErrAlreadyMember)

	_, err = f.teams.AddMember(ctx, created.ID, "dr-owner", "patient-1")
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = f.teams.AddMember(ctx, created.ID, "dr-invitee", "dr-third")
	require.ErrorIs(t, err, ErrNotOwner)

	// The new member got an "added to team" notification.
	feed, err := f.notifications.ListByRecipient(ctx, "dr-invitee", 0)
	require.NoError(t, err)
	var found bool
	for _, item := range feed {
		if item.Type == notification.TypeTeamInviteResponse && item.Metadata["action"] == "added_directly" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	created := f.createTeam(t, "dr-owner", "Cardiology")
	ctx := context.Background()

	_, err := f.teams.AddMember(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)

	_, err = f.teams.RemoveMember(ctx, created.ID, "dr-owner", "dr-owner")
	require.ErrorIs(t, err, ErrOwnerImmovable)

	_, err = f.teams.RemoveMember(ctx, created.ID, "dr-owner", "dr-third")
	require.ErrorIs(t, err, ErrNotMember)

	updated, err := f.teams.RemoveMember(ctx, created.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)
	require.NotContains(t, updated.MemberIDs, "dr-invitee")
	require.Len(t, updated.Members, 1)
}

func TestAssignPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createTeam(t, "dr-owner", "Cardiology")
	second := f.createTeam(t, "dr-owner", "Oncology")

	updated, err := f.teams.AssignPatient(ctx, first.ID, "dr-owner", "patient-1")
	require.NoError(t, err)
	require.Equal(t, []string{"patient-1"}, updated.PatientIDs)

	patientDoc, err := f.store.Get(ctx, CollectionUsers, "patient-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, patientDoc.Data["teamId"])

	t.Run("reassignment moves the patient", func(t *testing.T) {
		moved, err := f.teams.AssignPatient(ctx, second.ID, "dr-owner", "patient-1")
		require.NoError(t, err)
		require.Equal(t, []string{"patient-1"}, moved.PatientIDs)

		previous, err := f.teams.GetTeam(ctx, first.ID)
		require.NoError(t, err)
		require.Empty(t, previous.PatientIDs)

		patientDoc, err := f.store.Get(ctx, CollectionUsers, "patient-1")
		require.NoError(t, err)
		require.Equal(t, second.ID, patientDoc.Data["teamId"])
	})

	t.Run("assignment is idempotent", func(t *testing.T) {
		again, err := f.teams.AssignPatient(ctx, second.ID, "dr-owner", "patient-1")
		require.NoError(t, err)
		require.Equal(t, []string{"patient-1"}, again.PatientIDs)
	})

	t.Run("only members assign", func(t *testing.T) {
		_, err := f.teams.AssignPatient(ctx, second.ID, "dr-third", "patient-2")
		require.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("providers cannot be assigned as patients", func(t *testing.T) {
		_, err := f.teams.AssignPatient(ctx, second.ID, "dr-owner", "dr-invitee")
		require.ErrorIs(t, err, ErrNotPatient)
	})
}

func TestUnassignPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTeam(t, "dr-owner", "Cardiology")

	_, err := f.teams.AssignPatient(ctx, created.ID, "dr-owner", "patient-1")
	require.NoError(t, err)

	updated, err := f.teams.UnassignPatient(ctx, created.ID, "dr-owner", "patient-1")
	require.NoError(t, err)
	require.Empty(t, updated.PatientIDs)

	patientDoc, err := f.store.Get(ctx, CollectionUsers, "patient-1")
	require.NoError(t, err)
	require.Equal(t, "", patientDoc.Data["teamId"])
}

func TestArchiveTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTeam(t, "dr-owner", "Cardiology")

	_, err := f.teams.AssignPatient(ctx, created.ID, "dr-owner", "patient-1")
	require.NoError(t, err)
	_, err = f.teams.AssignPatient(ctx, created.ID, "dr-owner", "patient-2")
	require.NoError(t, err)

	err = f.teams.ArchiveTeam(ctx, created.ID, "dr-invitee")
	require.ErrorIs(t, err, ErrNotOwner)

	err = f.teams.ArchiveTeam(ctx, created.ID, "dr-owner")
	require.NoError(t, err)

	_, err = f.teams.GetTeam(ctx, created.ID)
	require.ErrorIs(t, err, ErrTeamNotFound)

	for _, patientID := range []string{"patient-1", "patient-2"} {
		doc, err := f.store.Get(ctx, CollectionUsers, patientID)
		require.NoError(t, err)
		require.Equal(t, "", doc.Data["teamId"])
	}
}

func TestListTeams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createTeam(t, "dr-owner", "Cardiology")
	time.Sleep(2 * time.Millisecond)
	second := f.createTeam(t, "dr-owner", "Oncology")

	_, err := f.teams.AddMember(ctx, first.ID, "dr-owner", "dr-invitee")
	require.NoError(t, err)

	owned, err := f.teams.ListTeams(ctx, "dr-owner")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, second.ID, owned[0].ID)

	joined, err := f.teams.ListTeams(ctx, "dr-invitee")
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, first.ID, joined[0].ID)

	none, err := f.teams.ListTeams(ctx, "patient-1")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFromDocumentSelfHealing(t *testing.T) {
	doc := docstore.Document{
		ID: "t1",
		Data: map[string]any{
			"name":      "Cardiology",
			"ownerId":   "abcdef123456",
			"memberIds": []string{"abcdef123456", "orphan99xyz"},
			"members": []any{
				map[string]any{"id": "abcdef123456", "name": "Dr. Owner"},
			},
		},
	}

	team, ok := FromDocument(doc)
	require.True(t, ok)
	require.Len(t, team.Members, 2)
	require.Equal(t, "Provider orphan", team.Members[1].Name)
}
