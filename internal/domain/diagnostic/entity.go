package diagnostic

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSpecified  Status = "specified"
	StatusCompleted  Status = "completed"
)

func (s Status) rank() int {
	switch s {
	case StatusInProgress:
		return 1
	case StatusSpecified:
		return 2
	case StatusCompleted:
		return 3
	}
	return 0
}

// CanAdvanceTo reports whether next is the single step after s.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.rank() > 0 && next.rank() == s.rank()+1
}

type Specialty string

const (
	SpecialtyRestorative             Specialty = "Restorative"
	SpecialtyEndodontics             Specialty = "Endodontics"
	SpecialtyPeriodontics            Specialty = "Periodontics"
	SpecialtyFixedProsthodontics     Specialty = "Fixed_prosthodontics"
	SpecialtyRemovableProsthodontics Specialty = "Removable_prosthodontics"
	SpecialtyPediatricDentistry      Specialty = "Pediatric_dentistry"
)

var specialties = []Specialty{
	SpecialtyRestorative,
	SpecialtyEndodontics,
	SpecialtyPeriodontics,
	SpecialtyFixedProsthodontics,
	SpecialtyRemovableProsthodontics,
	SpecialtyPediatricDentistry,
}

// ParseSpecialty matches case-insensitively and accepts spaces for
// underscores, so "fixed prosthodontics" is valid.
func ParseSpecialty(raw string) (Specialty, bool) {
	norm := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	for _, s := range specialties {
		if strings.EqualFold(string(s), norm) {
			return s, true
		}
	}
	return "", false
}

func Specialties() []Specialty {
	out := make([]Specialty, len(specialties))
	copy(out, specialties)
	return out
}

// Conversation represents the diagnostic_conversations table.
type Conversation struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID           string     `gorm:"size:255;not null;index" json:"subject_id"`
	AssignedResponderID *string    `gorm:"size:255;index" json:"assigned_responder_id,omitempty"`
	Classification      *Specialty `gorm:"size:64" json:"classification,omitempty"`
	ImagePath           string     `gorm:"size:1024;not null" json:"image_path"`
	Status              Status     `gorm:"size:16;not null;default:in_progress" json:"status"`
	IsFinal             bool       `gorm:"not null;default:false" json:"is_final"`
	ReportPath          *string    `gorm:"size:1024" json:"report_path,omitempty"`
	QRCodePath          *string    `gorm:"size:1024" json:"qr_code_path,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Turn represents diagnostic_turns: one inbound/outbound exchange.
type Turn struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DiagnosticConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_diagnostic_turns_conversation_created,priority:1" json:"diagnostic_conversation_id"`
	InboundText              string    `gorm:"type:text;not null" json:"inbound_text"`
	OutboundText             string    `gorm:"type:text;not null" json:"outbound_text"`
	CreatedAt                time.Time `gorm:"index:idx_diagnostic_turns_conversation_created,priority:2" json:"created_at"`

	Conversation *Conversation `gorm:"foreignKey:DiagnosticConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string {
	return "diagnostic_conversations"
}

func (Turn) TableName() string {
	return "diagnostic_turns"
}
