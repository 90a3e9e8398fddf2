package entity

import "time"

// Ledger event types.
const (
	OpEventProgress        = "progress"
	OpEventStart           = "start"
	OpEventComplete        = "complete"
	OpEventCompleteBlocked = "complete_blocked"
	OpEventCancel          = "cancel"
	OpEventClaim           = "claim"
)

// Actor roles recorded on ledger rows.
const (
	RoleEditor        = "editor"
	RoleContributor   = "contributor"
	RoleAdminOverride = "admin_override"
)

// OperationProgress 工序台账, append-only ledger row: a quantity delta, a
// lifecycle event, or both. Never updated or deleted; the operation's cached
// totals are maintained transactionally alongside each insert.
type OperationProgress struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	OperationID  string    `json:"operation_id" gorm:"size:36;not null;index"`
	UserID       *string   `json:"user_id" gorm:"size:36;index"` // nullable: system rows
	QtyDoneDelta float64   `json:"qty_done_delta" gorm:"type:decimal(12,4);not null;default:0"`
	QtyScrapDelta float64  `json:"qty_scrap_delta" gorm:"type:decimal(12,4);not null;default:0"`
	EventType    string    `json:"event_type" gorm:"size:20;index"`
	ActorRole    string    `json:"actor_role" gorm:"size:20"`
	EventNote    *string   `json:"event_note" gorm:"type:text"`
	IsOverride   bool      `json:"is_override" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`

	Operation *BuildOperation `json:"operation,omitempty" gorm:"foreignKey:OperationID"`
	User      *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (OperationProgress) TableName() string {
	return "build_operation_progress"
}
