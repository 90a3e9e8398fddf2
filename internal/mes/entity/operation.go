package entity

import (
	"time"
)

// Operation status vocabulary. "completed" is the canonical terminal string;
// "complete" survives in old rows and must compare equal everywhere.
const (
	OpStatusQueue      = "queue"
	OpStatusInProgress = "in_progress"
	OpStatusBlocked    = "blocked"
	OpStatusCompleted  = "completed"
	OpStatusCancelled  = "cancelled"

	LegacyOpComplete = "complete"
)

// TerminalOpStatuses lists every string treated as terminal, legacy included.
var TerminalOpStatuses = []string{OpStatusCompleted, OpStatusCancelled, LegacyOpComplete}

// IsTerminalOpStatus reports whether no further lifecycle transitions are allowed.
func IsTerminalOpStatus(status string) bool {
	switch status {
	case OpStatusCompleted, OpStatusCancelled, LegacyOpComplete:
		return true
	}
	return false
}

// NormalizeOpStatus maps the legacy "complete" string to the canonical
// terminal value. Applied once at the data-access boundary so services never
// compare against the legacy string directly.
func NormalizeOpStatus(status string) string {
	if status == LegacyOpComplete {
		return OpStatusCompleted
	}
	return status
}

// BuildOperation 制造工序, one routed manufacturing step for one BOM line
// within one build run.
type BuildOperation struct {
	ID        string  `json:"id" gorm:"primaryKey;size:36"`
	BuildID   string  `json:"build_id" gorm:"size:36;not null;index"`
	BOMItemID *string `json:"bom_item_id" gorm:"size:36;index"` // nullable: build-level ops
	MachineID *string `json:"machine_id" gorm:"size:36"`

	// Routing projection (regenerated from routing; never carries state)
	OpKey        string `json:"op_key" gorm:"size:50;not null;index"`
	OpName       string `json:"op_name" gorm:"size:128"`
	ModuleKey    string `json:"module_key" gorm:"size:50;index"`
	Sequence     int    `json:"sequence" gorm:"not null;default:0"`
	IsOutsourced bool   `json:"is_outsourced" gorm:"default:false"`
	Vendor       string `json:"vendor" gorm:"size:128"`

	// Lifecycle
	Status     string `json:"status" gorm:"size:20;not null;default:queue;index"`
	IsReleased bool   `json:"is_released" gorm:"default:false;index"`

	// Quantities. QtyDone/QtyScrap are cached sums of the progress ledger.
	QtyRequired float64 `json:"qty_required" gorm:"type:decimal(12,4);default:0"`
	QtyPlanned  float64 `json:"qty_planned" gorm:"type:decimal(12,4);default:0"`
	QtyDone     float64 `json:"qty_done" gorm:"type:decimal(12,4);default:0"`
	QtyScrap    float64 `json:"qty_scrap" gorm:"type:decimal(12,4);default:0"`

	// Claim
	ClaimedBy      *string    `json:"claimed_by" gorm:"size:36;index"`
	ClaimedAt      *time.Time `json:"claimed_at"`
	ClaimTouchedAt *time.Time `json:"claim_touched_at"`
	AllowMultiUser bool       `json:"allow_multi_user" gorm:"default:false"`
	ClaimNote      *string    `json:"claim_note" gorm:"type:text"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	CancelledReason *string    `json:"cancelled_reason" gorm:"type:text"`

	BOMItem *BOMItem             `json:"bom_item,omitempty" gorm:"foreignKey:BOMItemID"`
	Build   *Build               `json:"build,omitempty" gorm:"foreignKey:BuildID"`
	Owner   *User                `json:"owner,omitempty" gorm:"foreignKey:ClaimedBy"`
	Detail  *OperationDetail     `json:"detail,omitempty" gorm:"foreignKey:OperationID"`
	Ledger  []OperationProgress  `json:"ledger,omitempty" gorm:"foreignKey:OperationID"`
}

func (BuildOperation) TableName() string {
	return "build_operations"
}

// IsTerminal reports whether the operation is in a terminal status.
func (o *BuildOperation) IsTerminal() bool {
	return IsTerminalOpStatus(o.Status)
}

// OperationDetail 工序附加信息, module-specific extras such as the blocked
// reason required by the raw-materials queues.
type OperationDetail struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	OperationID   string     `json:"operation_id" gorm:"size:36;not null;uniqueIndex"`
	BlockedReason *string    `json:"blocked_reason" gorm:"size:50"`
	BlockedNotes  *string    `json:"blocked_notes" gorm:"type:text"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (OperationDetail) TableName() string {
	return "build_operation_details"
}
