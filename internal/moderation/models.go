package moderation

import (
	"encoding/json"
	"time"

	"github.com/Carlosrossos/dlh-backend/internal/poi"
)

const (
	TypeNewPOI  = "new_poi"
	TypeComment = "comment"
	TypePhoto   = "photo"
	TypeEditPOI = "edit_poi"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// DefaultRejectionReason is recorded when an admin rejects without giving one.
const DefaultRejectionReason = "Non conforme"

const fallbackCommentAuthor = "Utilisateur"

const maxRejectionReasonLen = 500
const maxCommentLen = 1000

// EditableFields are the only POI fields an edit_poi contribution may touch.
var EditableFields = []string{"name", "altitude", "sunExposition", "description"}

// PendingModification is a queued user contribution. Data holds the
// type-specific payload as JSON; decode it with the payload types below.
type PendingModification struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	UserID          string          `json:"userId"`
	POIID           string          `json:"poiId,omitempty"`
	Data            json.RawMessage `json:"data"`
	Status          string          `json:"status"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewPOIPayload carries a full proposed place record.
type NewPOIPayload struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Massif        string          `json:"massif"`
	Coordinates   poi.Coordinates `json:"coordinates"`
	Description   string          `json:"description"`
	Altitude      int             `json:"altitude"`
	SunExposition string          `json:"sunExposition,omitempty"`
	Photos        []string        `json:"photos,omitempty"`
}

type CommentPayload struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

type PhotoPayload struct {
	PhotoURL string `json:"photoUrl"`
}

// EditPayload is a shallow patch restricted to EditableFields.
type EditPayload map[string]any

type Stats struct {
	Pending  int            `json:"pending"`
	Approved int            `json:"approved"`
	Rejected int            `json:"rejected"`
	Total    int            `json:"total"`
	ByType   map[string]int `json:"byType"`
}
