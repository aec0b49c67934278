package team

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/careloop/careteam-BE/internal/audit"
	"github.com/careloop/careteam-BE/internal/docstore"
	"github.com/careloop/careteam-BE/internal/notification"
	"github.com/careloop/careteam-BE/internal/role"
	"github.com/careloop/careteam-BE/internal/util"
	"github.com/rs/zerolog/log"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrUserNotFound   = errors.New("account not found")
	ErrNameRequired   = errors.New("team name is required")
	ErrNotOwner       = errors.New("only the team owner may perform this operation")
	ErrNotMember      = errors.New("requester is not a member of this team")
	ErrAlreadyMember  = errors.New("account is already a team member")
	ErrNotEligible    = errors.New("account is not provider-eligible")
	ErrSelfInvite     = errors.New("cannot invite yourself")
	ErrOwnerImmovable = errors.New("the team owner cannot be removed")
	ErrNotPatient     = errors.New("account is not a patient")
	ErrInviteResolved = errors.New("invitation has already been resolved")
	ErrTeamGone       = errors.New("team no longer exists")
)

// InviteEmailMessage is the payload handed to the email task.
type InviteEmailMessage struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	InviterName string `json:"inviter_name"`
	InviteeID   string `json:"invitee_id"`
}

// InviteResponseMessage carries an invite decision back to the inviter.
type InviteResponseMessage struct {
	TeamID        string `json:"team_id"`
	TeamName      string `json:"team_name"`
	InviterID     string `json:"inviter_id"`
	ResponderID   string `json:"responder_id"`
	ResponderName string `json:"responder_name"`
	Accepted      bool   `json:"accepted"`
}

// TaskDispatcher enqueues the asynchronous side effects of team operations.
// Every dispatch is best-effort: failures are logged and never surfaced.
type TaskDispatcher interface {
	DispatchInviteResponseNotification(ctx context.Context, msg InviteResponseMessage) error
	DispatchInviteEmail(ctx context.Context, msg InviteEmailMessage) error
}

// Service owns the team directory and its membership invariants: the owner is
// always a member, the pending set never overlaps the member set, and a
// patient belongs to at most one team.
type Service struct {
	store         docstore.Store
	notifications *notification.Service
	distributor   TaskDispatcher
	auditor       audit.Sink
}

func NewService(store docstore.Store, notifications *notification.Service, distributor TaskDispatcher, auditor audit.Sink) *Service {
	return &Service{
		store:         store,
		notifications: notifications,
		distributor:   distributor,
		auditor:       auditor,
	}
}

type CreateTeamInput struct {
	OwnerID     string
	Name        string
	Description string
	Color       string
}

func (s *Service) CreateTeam(ctx context.Context, input CreateTeamInput) (Team, error) {
	name := notification.SanitizeText(input.Name, 120)
	if name == "" {
		return Team{}, ErrNameRequired
	}

	owner, err := s.requireProvider(ctx, input.OwnerID)
	if err != nil {
		return Team{}, err
	}

	color := NormalizeColor(input.Color)
	if color == "" {
		color = randomColor()
	}

	now := time.Now()
	id := util.GenerateRandomSlug(name)
	data := map[string]any{
		"name":                   name,
		"description":            notification.SanitizeText(input.Description, 280),
		"color":                  color,
		"ownerId":                owner.ID,
		"ownerName":              owner.Name,
		"memberIds":              []string{owner.ID},
		"members":                membersToDocs([]Member{owner}),
		"pendingInviteDoctorIds": []string{},
		"patientIds":             []string{},
		"createdAt":              now,
		"updatedAt":              now,
	}
	if err := s.store.Set(ctx, CollectionTeams, id, data); err != nil {
		return Team{}, fmt.Errorf("failed to create team: %w", err)
	}

	s.record(ctx, owner.ID, "team.create", id, map[string]any{"name": name})
	created, _ := FromDocument(docstore.Document{ID: id, Data: data})
	return created, nil
}

func (s *Service) GetTeam(ctx context.Context, teamID string) (Team, error) {
	doc, err := s.store.Get(ctx, CollectionTeams, teamID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return Team{}, ErrTeamNotFound
	}
	if err != nil {
		return Team{}, fmt.Errorf("failed to load team: %w", err)
	}

	team, ok := FromDocument(doc)
	if !ok {
		return Team{}, ErrTeamNotFound
	}
	return team, nil
}

// ListTeams returns every team the account is a member of, newest first.
func (s *Service) ListTeams(ctx context.Context, memberID string) ([]Team, error) {
	docs, err := s.store.GetAll(ctx, docstore.Query{
		Collection: CollectionTeams,
		Field:      "memberIds",
		Op:         docstore.OpArrayContains,
		Value:      memberID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	teams := make([]Team, 0, len(docs))
	for _, doc := range docs {
		if team, ok := FromDocument(doc); ok {
			teams = append(teams, team)
		}
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return teams[i].CreatedAt.After(teams[j].CreatedAt)
	})
	return teams, nil
}

type UpdateTeamInput struct {
	Name        *string
	Description *string
	Color       *string
}

func (s *Service) UpdateTeam(ctx context.Context, teamID, actorID string, input UpdateTeamInput) (Team, error) {
	team, err := s.requireOwner(ctx, teamID, actorID)
	if err != nil {
		return Team{}, err
	}

	fields := map[string]any{"updatedAt": time.Now()}
	if input.Name != nil {
		name := notification.SanitizeText(*input.Name, 120)
		if name == "" {
			return Team{}, ErrNameRequired
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = notification.SanitizeText(*input.Description, 280)
	}
	if input.Color != nil {
		color := NormalizeColor(*input.Color)
		if color == "" {
			color = randomColor()
		}
		fields["color"] = color
	}

	if err := s.store.Update(ctx, CollectionTeams, teamID, fields); err != nil {
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return Team{}, ErrTeamNotFound
		}
		return Team{}, fmt.Errorf("failed to update team: %w", err)
	}

	s.record(ctx, actorID, "team.update", teamID, nil)
	return s.GetTeam(ctx, team.ID)
}

// ArchiveTeam deletes the team and clears the back-pointer on every assigned
// patient in one transaction, so no patient is left pointing at a dead team.
func (s *Service) ArchiveTeam(ctx context.Context, teamID, actorID string) error {
	if _, err := s.requireOwner(ctx, teamID, actorID); err != nil {
		return err
	}

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(CollectionTeams, teamID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		team, ok := FromDocument(doc)
		if !ok {
			return ErrTeamNotFound
		}
		if team.OwnerID != actorID {
			return ErrNotOwner
		}

		type pointer struct {
			collection string
			id         string
		}
		pointers := make([]pointer, 0, len(team.PatientIDs))
		for _, patientID := range team.PatientIDs {
			patientDoc, collection, err := s.getPatientTx(tx, patientID)
			if err != nil {
				continue
			}
			if asString(patientDoc.Data["teamId"]) == teamID {
				pointers = append(pointers, pointer{collection: collection, id: patientDoc.ID})
			}
		}

		tx.Delete(CollectionTeams, teamID)
		for _, p := range pointers {
			tx.Update(p.collection, p.id, map[string]any{"teamId": ""})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, actorID, "team.archive", teamID, nil)
	return nil
}

// AddMember directly adds a provider to the team, skipping the invitation
// round-trip. Clears a pending invite for the same account when one exists.
func (s *Service) AddMember(ctx context.Context, teamID, actorID, doctorID string) (Team, error) {
	team, err := s.requireOwner(ctx, teamID, actorID)
	if err != nil {
		return Team{}, err
	}

	member, err := s.requireProvider(ctx, doctorID)
	if err != nil {
		return Team{}, err
	}
	if team.HasMember(doctorID) {
		return Team{}, ErrAlreadyMember
	}

	now := time.Now()
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
		if current.HasMember(doctorID) {
			return ErrAlreadyMember
		}

		members := current.Members
		if !hasMemberEntry(members, doctorID) {
			members = append(members, member)
		}
		tx.Update(CollectionTeams, teamID, map[string]any{
			"memberIds":              withString(current.MemberIDs, doctorID),
			"members":                membersToDocs(members),
			"pendingInviteDoctorIds": withoutString(current.PendingInviteDoctorIDs, doctorID),
			"updatedAt":              now,
		})
		return nil
	})
	if err != nil {
		return Team{}, err
	}

	s.record(ctx, actorID, "team.member.add", teamID, map[string]any{"member_id": doctorID})
	s.notifyAdded(ctx, team, doctorID)
	return s.GetTeam(ctx, teamID)
}

// RemoveMember drops a member from the team. The owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, teamID, actorID, memberID string) (Team, error) {
	team, err := s.requireOwner(ctx, teamID, actorID)
	if err != nil {
		return Team{}, err
	}
	if memberID == team.OwnerID {
		return Team{}, ErrOwnerImmovable
	}
	if !team.HasMember(memberID) {
		return Team{}, ErrNotMember
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
		if !current.HasMember(memberID) {
			return ErrNotMember
		}

		var members []Member
		for _, m := range current.Members {
			if m.ID != memberID {
				members = append(members, m)
			}
		}
		tx.Update(CollectionTeams, teamID, map[string]any{
			"memberIds": withoutString(current.MemberIDs, memberID),
			"members":   membersToDocs(members),
			"updatedAt": time.Now(),
		})
		return nil
	})
	if err != nil {
		return Team{}, err
	}

	s.record(ctx, actorID, "team.member.remove", teamID, map[string]any{"member_id": memberID})
	s.notifyRemoved(ctx, team, memberID)
	return s.GetTeam(ctx, teamID)
}

// AssignPatient puts the patient on this team. A patient belongs to at most
// one team, so the whole move runs in a single transaction: the patient is
// removed from every other team holding them, unioned into the target, and
// the back-pointer on the patient record is rewritten.
func (s *Service) AssignPatient(ctx context.Context, teamID, actorID, patientID string) (Team, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, err
	}
	if !team.HasMember(actorID) {
		return Team{}, ErrNotMember
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return Team{}, err
	}

	now := time.Now()
	err = s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		targetDoc, err := tx.Get(CollectionTeams, teamID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		target, ok := FromDocument(targetDoc)
		if !ok {
			return ErrTeamNotFound
		}

		holders, err := tx.GetAll(docstore.Query{
			Collection: CollectionTeams,
			Field:      "patientIds",
			Op:         docstore.OpArrayContains,
			Value:      patientID,
		})
		if err != nil {
			return err
		}

		_, patientCollection, err := s.getPatientTx(tx, patientID)
		if err != nil {
			return err
		}

		for _, holderDoc := range holders {
			if holderDoc.ID == teamID {
				continue
			}
			holder, ok := FromDocument(holderDoc)
			if !ok {
				continue
			}
			tx.Update(CollectionTeams, holder.ID, map[string]any{
				"patientIds": withoutString(holder.PatientIDs, patientID),
				"updatedAt":  now,
			})
		}

		tx.Update(CollectionTeams, teamID, map[string]any{
			"patientIds": withString(target.PatientIDs, patientID),
			"updatedAt":  now,
		})
		tx.Update(patientCollection, patientID, map[string]any{"teamId": teamID})
		return nil
	})
	if err != nil {
		return Team{}, err
	}

	s.record(ctx, actorID, "team.patient.assign", teamID, map[string]any{"patient_id": patientID})
	return s.GetTeam(ctx, teamID)
}

// UnassignPatient removes the patient from this team and clears the
// back-pointer, but only when it still points here.
func (s *Service) UnassignPatient(ctx context.Context, teamID, actorID, patientID string) (Team, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, err
	}
	if !team.HasMember(actorID) {
		return Team{}, ErrNotMember
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

		tx.Update(CollectionTeams, teamID, map[string]any{
			"patientIds": withoutString(current.PatientIDs, patientID),
			"updatedAt":  time.Now(),
		})

		patientDoc, patientCollection, err := s.getPatientTx(tx, patientID)
		if err == nil && asString(patientDoc.Data["teamId"]) == teamID {
			tx.Update(patientCollection, patientID, map[string]any{"teamId": ""})
		}
		return nil
	})
	if err != nil {
		return Team{}, err
	}

	s.record(ctx, actorID, "team.patient.unassign", teamID, map[string]any{"patient_id": patientID})
	return s.GetTeam(ctx, teamID)
}

// getPatientTx resolves a patient record inside a transaction, preferring the
// patients collection and falling back to users for accounts that never got a
// dedicated patient document.
func (s *Service) getPatientTx(tx docstore.Tx, patientID string) (docstore.Document, string, error) {
	doc, err := tx.Get(CollectionPatients, patientID)
	if err == nil {
		return doc, CollectionPatients, nil
	}
	if !errors.Is(err, docstore.ErrNoSuchDocument) {
		return docstore.Document{}, "", err
	}

	doc, err = tx.Get(CollectionUsers, patientID)
	if err != nil {
		return docstore.Document{}, "", err
	}
	return doc, CollectionUsers, nil
}

func (s *Service) requireOwner(ctx context.Context, teamID, actorID string) (Team, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return Team{}, err
	}
	if team.OwnerID != actorID {
		return Team{}, ErrNotOwner
	}
	return team, nil
}

func (s *Service) requireProvider(ctx context.Context, userID string) (Member, error) {
	doc, err := s.store.Get(ctx, CollectionUsers, userID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		return Member{}, ErrUserNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("failed to load account: %w", err)
	}
	if !role.Parse(asString(doc.Data["role"])).IsProvider() {
		return Member{}, ErrNotEligible
	}
	return MemberFromUserDoc(doc), nil
}

func (s *Service) requirePatient(ctx context.Context, userID string) error {
	doc, err := s.store.Get(ctx, CollectionPatients, userID)
	if errors.Is(err, docstore.ErrNoSuchDocument) {
		doc, err = s.store.Get(ctx, CollectionUsers, userID)
		if errors.Is(err, docstore.ErrNoSuchDocument) {
			return ErrUserNotFound
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}
	if role.Parse(asString(doc.Data["role"])).IsProvider() {
		return ErrNotPatient
	}
	return nil
}

func (s *Service) notifyAdded(ctx context.Context, team Team, doctorID string) {
	_, err := s.notifications.Create(ctx, notification.CreateInput{
		RecipientID: doctorID,
		ActorID:     team.OwnerID,
		ActorName:   team.OwnerName,
		Type:        notification.TypeTeamInviteResponse,
		Title:       "Added to " + team.Name,
		Body:        fmt.Sprintf("%s added you to the care team %q.", team.OwnerName, team.Name),
		Href:        "/teams/" + team.ID,
		Metadata: map[string]any{
			"teamId": team.ID,
			"action": "added_directly",
		},
	})
	if err != nil {
		log.Error().Err(err).Str("teamID", team.ID).Str("doctorID", doctorID).Msg("member-added notification skipped")
	}
}

func (s *Service) notifyRemoved(ctx context.Context, team Team, memberID string) {
	_, err := s.notifications.Create(ctx, notification.CreateInput{
		RecipientID: memberID,
		ActorID:     team.OwnerID,
		ActorName:   team.OwnerName,
		Type:        notification.TypeTeamInviteResponse,
		Title:       "Removed from " + team.Name,
		Body:        fmt.Sprintf("You are no longer a member of the care team %q.", team.Name),
		Metadata: map[string]any{
			"teamId": team.ID,
			"action": "removed",
		},
	})
	if err != nil {
		log.Error().Err(err).Str("teamID", team.ID).Str("memberID", memberID).Msg("member-removed notification skipped")
	}
}

func (s *Service) record(ctx context.Context, actorID, action, teamID string, detail map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     action,
		EntityType: "team",
		EntityID:   teamID,
		Detail:     detail,
	})
}
