package entity

import "time"

// Part fulfillment eligibility mirrors the catalog flags the planner reads.
const (
	PartTypeManufactured = "manufactured"
	PartTypePurchased    = "purchased"
	PartTypeAssembly     = "assembly"
)

// Part 零件目录, catalog part, read-only to the ops core.
type Part struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	PartNumber  string    `json:"part_number" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description string    `json:"description" gorm:"type:text"`
	PartTypeID  *string   `json:"part_type_id" gorm:"size:36;index"`
	Type        string    `json:"type" gorm:"size:32"` // manufactured/purchased/assembly
	Unit        string    `json:"unit" gorm:"size:16;default:ea"`
	Revision    string    `json:"revision" gorm:"size:16"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	PartType *PartType `json:"part_type,omitempty" gorm:"foreignKey:PartTypeID"`
}

func (Part) TableName() string {
	return "parts"
}

// PartType 零件类型, legacy routing templates key off this.
type PartType struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (PartType) TableName() string {
	return "part_types"
}

// PartInventory 零件阶段库存, per-part stage buckets (blank, finished, ...)
// mutated by the progress observer for raw-material cut ops.
type PartInventory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	PartID    string    `json:"part_id" gorm:"size:36;not null;index:idx_part_stage,unique"`
	StageKey  string    `json:"stage_key" gorm:"size:32;not null;index:idx_part_stage,unique"`
	QtyOnHand float64   `json:"qty_on_hand" gorm:"type:decimal(12,4);default:0"`
	UOM       string    `json:"uom" gorm:"size:16;default:ea"`
	UpdatedAt time.Time `json:"updated_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (PartInventory) TableName() string {
	return "part_inventory"
}

// StockLedgerEntry 库存流水, append-only movement ledger. Writers never
// mutate qty_on_hand through this table; it is the audit trail.
type StockLedgerEntry struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	EntityType string    `json:"entity_type" gorm:"size:32;not null;index:idx_stock_entity"`
	EntityID   string    `json:"entity_id" gorm:"size:36;not null;index:idx_stock_entity"`
	QtyDelta   float64   `json:"qty_delta" gorm:"type:decimal(12,4);not null"`
	UOM        string    `json:"uom" gorm:"size:16;default:ea"`
	Reason     string    `json:"reason" gorm:"size:32;default:adjust"`
	Note       *string   `json:"note" gorm:"type:text"`
	SourceType *string   `json:"source_type" gorm:"size:32"`
	SourceRef  *string   `json:"source_ref" gorm:"size:64"`
	CreatedBy  *string   `json:"created_by" gorm:"size:36"`
	CreatedAt  time.Time `json:"created_at"`
}

func (StockLedgerEntry) TableName() string {
	return "stock_ledger_entries"
}
