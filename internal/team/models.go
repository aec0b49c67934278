package team

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/careloop/careteam-BE/internal/docstore"
)

const (
	CollectionTeams    = "teams"
	CollectionUsers    = "users"
	CollectionPatients = "patients"
)

// Member is the denormalized display copy of a team member. It is a cache of
// the account directory: entries may be stale or synthesized and readers must
// treat them as display data, never as authoritative identity.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

type Team struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description,omitempty"`
	Color                  string    `json:"color"`
	OwnerID                string    `json:"owner_id"`
	OwnerName              string    `json:"owner_name"`
	MemberIDs              []string  `json:"member_ids"`
	Members                []Member  `json:"members"`
	PendingInviteDoctorIDs []string  `json:"pending_invite_doctor_ids"`
	PatientIDs             []string  `json:"patient_ids"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (t Team) HasMember(id string) bool {
	return containsString(t.MemberIDs, id)
}

// placeholderName stands in for a member whose display copy is missing.
func placeholderName(id string) string {
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return "Provider " + short
}

// FromDocument maps a raw team record, self-healing the denormalized members
// list: every id in memberIds gets an entry, synthesized with a placeholder
// name when the display copy is missing. Returns false when the record has no
// resolvable owner.
func FromDocument(doc docstore.Document) (Team, bool) {
	memberIDs := asStringSlice(doc.Data["memberIds"])
	members := asMemberSlice(doc.Data["members"])

	for _, memberID := range memberIDs {
		if !hasMemberEntry(members, memberID) {
			members = append(members, Member{ID: memberID, Name: placeholderName(memberID)})
		}
	}

	ownerID := asString(doc.Data["ownerId"])
	if ownerID == "" && len(memberIDs) > 0 {
		ownerID = memberIDs[0]
	}
	if ownerID == "" {
		return Team{}, false
	}

	ownerName := asString(doc.Data["ownerName"])
	if ownerName == "" {
		for _, member := range members {
			if member.ID == ownerID {
				ownerName = member.Name
				break
			}
		}
	}
	if ownerName == "" {
		ownerName = "Provider"
	}

	name := asString(doc.Data["name"])
	if name == "" {
		name = "Untitled Team"
	}

	createdAt, ok := asTime(doc.Data["createdAt"])
	if !ok {
		createdAt = time.Now()
	}
	updatedAt, ok := asTime(doc.Data["updatedAt"])
	if !ok {
		updatedAt = createdAt
	}

	return Team{
		ID:                     doc.ID,
		Name:                   name,
		Description:            asString(doc.Data["description"]),
		Color:                  asString(doc.Data["color"]),
		OwnerID:                ownerID,
		OwnerName:              ownerName,
		MemberIDs:              memberIDs,
		Members:                members,
		PendingInviteDoctorIDs: asStringSlice(doc.Data["pendingInviteDoctorIds"]),
		PatientIDs:             asStringSlice(doc.Data["patientIds"]),
		CreatedAt:              createdAt,
		UpdatedAt:              updatedAt,
	}, true
}

// MemberFromUserDoc builds a display copy from an account document.
func MemberFromUserDoc(doc docstore.Document) Member {
	return Member{
		ID:    doc.ID,
		Name:  displayName(doc.Data, doc.ID),
		Email: asString(doc.Data["email"]),
		Role:  asString(doc.Data["role"]),
	}
}

func displayName(data map[string]any, id string) string {
	if name := asString(data["name"]); name != "" {
		return name
	}
	if name := asString(data["displayName"]); name != "" {
		return name
	}

	first := asString(data["firstName"])
	last := asString(data["lastName"])
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	}

	if email := asString(data["email"]); email != "" {
		return strings.SplitN(email, "@", 2)[0]
	}
	return placeholderName(id)
}

func membersToDocs(members []Member) []any {
	out := make([]any, 0, len(members))
	for _, member := range members {
		out = append(out, map[string]any{
			"id":    member.ID,
			"name":  member.Name,
			"email": member.Email,
			"role":  member.Role,
		})
	}
	return out
}

func hasMemberEntry(members []Member, id string) bool {
	for _, member := range members {
		if member.ID == id {
			return true
		}
	}
	return false
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

func asStringSlice(value any) []string {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func asMemberSlice(value any) []Member {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	var members []Member
	seen := make(map[string]bool)
	for _, item := range items {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := asString(data["id"])
		if id == "" {
			id = asString(data["uid"])
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		name := asString(data["name"])
		if name == "" {
			name = asString(data["displayName"])
		}
		if name == "" {
			name = placeholderName(id)
		}

		members = append(members, Member{
			ID:    id,
			Name:  name,
			Email: asString(data["email"]),
			Role:  asString(data["role"]),
		})
	}
	return members
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func withString(items []string, target string) []string {
	if containsString(items, target) {
		return items
	}
	return append(items, target)
}

func withoutString(items []string, target string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}

var teamColorPalette = []string{
	"#4F46E5", "#7C3AED", "#0EA5E9", "#14B8A6", "#22C55E",
	"#F59E0B", "#EF4444", "#EC4899", "#8B5CF6", "#3B82F6",
}

var hexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// NormalizeColor validates a hex color, expanding the 3-digit shorthand.
// Returns an empty string when the input is not a valid hex color.
func NormalizeColor(value string) string {
	value = strings.TrimSpace(value)
	if !hexColorRegex.MatchString(value) {
		return ""
	}

	value = strings.ToUpper(value)
	if len(value) == 4 {
		r, g, b := value[1], value[2], value[3]
		return fmt.Sprintf("#%c%c%c%c%c%c", r, r, g, g, b, b)
	}
	return value
}

func randomColor() string {
	return teamColorPalette[rand.Intn(len(teamColorPalette))]
}
