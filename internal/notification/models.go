package notification

import (
	"strings"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
)

const CollectionNotifications = "notifications"

// Type is the closed notification taxonomy.
type Type string

const (
	TypeAppointmentBooked      Type = "appointment_booked"
	TypeAppointmentRescheduled Type = "appointment_rescheduled"
	TypeAppointmentCancelled   Type = "appointment_cancelled"
	TypeTeamInvite             Type = "team_invite"
	TypeTeamInviteResponse     Type = "team_invite_response"
)

func (t Type) Valid() bool {
	switch t {
	case TypeAppointmentBooked, TypeAppointmentRescheduled, TypeAppointmentCancelled,
		TypeTeamInvite, TypeTeamInviteResponse:
		return true
	}
	return false
}

// ActionStatus tracks the team-invite state machine. It is empty for every
// type except team_invite.
type ActionStatus string

const (
	ActionStatusNone     ActionStatus = ""
	ActionStatusPending  ActionStatus = "pending"
	ActionStatusAccepted ActionStatus = "accepted"
	ActionStatusRejected ActionStatus = "rejected"
)

const (
	maxRecipientIDLength = 120
	maxTitleLength       = 140
	maxBodyLength        = 280
)

type Notification struct {
	ID           string         `json:"id"`
	RecipientID  string         `json:"recipient_id"`
	ActorID      string         `json:"actor_id,omitempty"`
	ActorName    string         `json:"actor_name,omitempty"`
	Type         Type           `json:"type"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Href         string         `json:"href,omitempty"`
	Read         bool           `json:"read"`
	ActionStatus ActionStatus   `json:"action_status,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SanitizeText strips control characters and angle brackets, collapses
// whitespace, and caps the result at maxLength runes.
func SanitizeText(value string, maxLength int) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < 0x20 || r == 0x7F {
			b.WriteRune(' ')
			continue
		}
		if r == '<' || r == '>' {
			continue
		}
		b.WriteRune(r)
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(collapsed)
	if len(runes) > maxLength {
		runes = runes[:maxLength]
	}
	return strings.TrimSpace(string(runes))
}

func asString(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func asMetadata(value any) map[string]any {
	m, ok := value.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// FromDocument maps a raw store record to a Notification. Mapping is
// tolerant: malformed fields normalize to safe defaults instead of failing,
// so one bad record never breaks a feed read.
func FromDocument(doc docstore.Document) Notification {
	createdAt, ok := asTime(doc.Data["createdAt"])
	if !ok {
		createdAt = time.Now()
	}
	updatedAt, ok := asTime(doc.Data["updatedAt"])
	if !ok {
		updatedAt = createdAt
	}

	notifType := Type(asString(doc.Data["type"]))
	if !notifType.Valid() {
		notifType = TypeAppointmentBooked
	}

	actionStatus := ActionStatusNone
	switch ActionStatus(asString(doc.Data["actionStatus"])) {
	case ActionStatusPending:
		actionStatus = ActionStatusPending
	case ActionStatusAccepted:
		actionStatus = ActionStatusAccepted
	case ActionStatusRejected:
		actionStatus = ActionStatusRejected
	}

	title := asString(doc.Data["title"])
	if title == "" {
		title = "Notification"
	}

	return Notification{
		ID:           doc.ID,
		RecipientID:  asString(doc.Data["recipientId"]),
		ActorID:      asString(doc.Data["actorId"]),
		ActorName:    asString(doc.Data["actorName"]),
		Type:         notifType,
		Title:        title,
		Body:         asString(doc.Data["body"]),
		Href:         asString(doc.Data["href"]),
		Read:         doc.Data["read"] == true,
		ActionStatus: actionStatus,
		Metadata:     asMetadata(doc.Data["metadata"]),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}
