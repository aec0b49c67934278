package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotInvite       = errors.New("notification is not a team invitation")
	ErrInviteCorrupted = errors.New("invitation is missing its team reference")
)

// Decision is the terminal state an invitation moves into.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// ParseDecision maps a client decision token to its terminal state. Clients
// send the imperative forms; the stored past-tense forms are accepted too.
func ParseDecision(raw string) (Decision, bool) {
	switch raw {
	case "accept", string(DecisionAccepted):
		return DecisionAccepted, true
	case "reject", string(DecisionRejected):
		return DecisionRejected, true
	default:
		return "", false
	}
}

// Invite records a pending invitation and notifies the invitee. The pending
// set is a plain set union, so repeating an invite refreshes the notification
// without duplicating pending state.
func (s *Service) Invite(ctx context.Context, teamID, inviterID, inviteeID string) (Team, error) {
	team, err := s.requireOwner(ctx, teamID, inviterID)
	if err != nil {
		return Team{}, err
	}
	if inviteeID == inviterID {
		return Team{}, ErrSelfInvite
	}
	if _, err := s.requireProvider(ctx, inviteeID); err != nil {
		return Team{}, err
	}
	if team.HasMember(inviteeID) {
		return Team{}, ErrAlreadyMember
	}

	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(CollectionTeams, teamID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		current, ok := FromDocument(doc)
		if !ok {
			return ErrTeamNotFound
		}
		if current.HasMember(inviteeID) {
			return ErrAlreadyMember
		}

		tx.Update(CollectionTeams, teamID, map[string]any{
			"pendingInviteDoctorIds": withString(current.PendingInviteDoctorIDs, inviteeID),
			"updatedAt":              time.Now(),
		})
		return nil
	})
	if err != nil {
		return Team{}, err
	}

	if _, err := s.notifications.Create(ctx, notification.CreateInput{
		RecipientID: inviteeID,
		ActorID:     inviterID,
		ActorName:   team.OwnerName,
		Type:        notification.TypeTeamInvite,
		Title:       "Care team invitation",
		Body:        fmt.Sprintf("%s invited you to join the care team %q.", team.OwnerName, team.Name),
		Href:        "/teams/" + team.ID,
		Metadata: map[string]any{
			"teamId":      team.ID,
			"teamName":    team.Name,
			"inviterId":   inviterID,
			"inviterName": team.OwnerName,
		},
	}); err != nil {
		log.Error().Err(err).Str("teamID", teamID).Str("inviteeID", inviteeID).Msg("invite notification skipped")
	}

	if err := s.distributor.DispatchInviteEmail(ctx, InviteEmailMessage{
		TeamID:      team.ID,
		TeamName:    team.Name,
		InviterName: team.OwnerName,
		InviteeID:   inviteeID,
	}); err != nil {
		log.Error().Err(err).Str("teamID", teamID).Str("inviteeID", inviteeID).Msg("invite email skipped")
	}

	s.record(ctx, inviterID, "team.invite", teamID, map[string]any{"invitee_id": inviteeID})
	return s.GetTeam(ctx, teamID)
}

// Respond resolves a pending invitation. Cheap precondition checks run
// against a plain read; the decision itself happens in one transaction that
// re-reads both the notification and the team, so exactly one of two racing
// responses wins and terminal states are never overwritten.
func (s *Service) Respond(ctx context.Context, notificationID, responderID string, decision Decision) (Decision, error) {
	invite, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return "", err
	}
	if invite.RecipientID != responderID {
		return "", notification.ErrForbidden
	}
	if invite.Type != notification.TypeTeamInvite {
		return "", ErrNotInvite
	}

	responder, err := s.requireProvider(ctx, responderID)
	if err != nil {
		return "", err
	}

	teamID, _ := invite.Metadata["teamId"].(string)
	if teamID == "" {
		return "", ErrInviteCorrupted
	}

	var inviterID, teamName string
	now := time.Now()
	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		inviteDoc, err := tx.Get(notification.CollectionNotifications, notificationID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrInviteResolved
		}
		if err != nil {
			return err
		}
		current := notification.FromDocument(inviteDoc)
		if current.ActionStatus != notification.ActionStatusPending {
			return ErrInviteResolved
		}

		teamDoc, err := tx.Get(CollectionTeams, teamID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrTeamGone
		}
		if err != nil {
			return err
		}
		target, ok := FromDocument(teamDoc)
		if !ok {
			return ErrTeamGone
		}
		inviterID = target.OwnerID
		teamName = target.Name
		if id, ok := current.Metadata["inviterId"].(string); ok && id != "" {
			inviterID = id
		}

		teamFields := map[string]any{
			"pendingInviteDoctorIds": withoutString(target.PendingInviteDoctorIDs, responderID),
			"updatedAt":              now,
		}
		if decision == DecisionAccepted && !target.HasMember(responderID) {
			members := target.Members
			if !hasMemberEntry(members, responderID) {
				members = append(members, responder)
			}
			teamFields["memberIds"] = withString(target.MemberIDs, responderID)
			teamFields["members"] = membersToDocs(members)
		}
		tx.Update(CollectionTeams, teamID, teamFields)

		tx.Update(notification.CollectionNotifications, notificationID, map[string]any{
			"actionStatus": string(decision),
			"read":         true,
			"respondedAt":  now,
			"updatedAt":    now,
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.distributor.DispatchInviteResponseNotification(ctx, InviteResponseMessage{
		TeamID:        teamID,
		TeamName:      teamName,
		InviterID:     inviterID,
		ResponderID:   responderID,
		ResponderName: responder.Name,
		Accepted:      decision == DecisionAccepted,
	}); err != nil {
		log.Error().Err(err).Str("notificationID", notificationID).Msg("invite response notification skipped")
	}

	s.record(ctx, responderID, "team.invite.respond", teamID, map[string]any{
		"notification_id": notificationID,
		"decision":        string(decision),
	})
	return decision, nil
}
