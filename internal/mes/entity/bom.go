package entity

import "time"

// BOM line fulfillment methods. Only MAKE lines generate shop operations.
const (
	MakeMethodMake      = "MAKE"
	MakeMethodBuy       = "BUY"
	MakeMethodOutsource = "OUTSOURCE"
)

// BOMHeader 物料清单, master BOM for an assembly part, revision controlled.
type BOMHeader struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	AssemblyPartID string    `json:"assembly_part_id" gorm:"size:36;not null;index"`
	Rev            string    `json:"rev" gorm:"size:16;not null;default:1"`
	IsActive       bool      `json:"is_active" gorm:"default:true;index"`
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	AssemblyPart *Part     `json:"assembly_part,omitempty" gorm:"foreignKey:AssemblyPartID"`
	Lines        []BOMLine `json:"lines,omitempty" gorm:"foreignKey:BOMHeaderID"`
}

func (BOMHeader) TableName() string {
	return "bom_headers"
}

// BOMLine 物料清单行, master BOM line: component, per-assembly quantity,
// fulfillment method, optional routing override.
type BOMLine struct {
	ID                string    `json:"id" gorm:"primaryKey;size:36"`
	BOMHeaderID       string    `json:"bom_header_id" gorm:"size:36;not null;index"`
	ComponentPartID   string    `json:"component_part_id" gorm:"size:36;not null;index"`
	LineNo            int       `json:"line_no" gorm:"not null;default:0"`
	QtyPer            float64   `json:"qty_per" gorm:"type:decimal(12,4);not null;default:1"`
	MakeMethod        string    `json:"make_method" gorm:"size:16;not null;default:MAKE"`
	RoutingOverrideID *string   `json:"routing_override_id" gorm:"size:36"`
	Notes             string    `json:"notes" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`

	ComponentPart   *Part          `json:"component_part,omitempty" gorm:"foreignKey:ComponentPartID"`
	RoutingOverride *RoutingHeader `json:"routing_override,omitempty" gorm:"foreignKey:RoutingOverrideID"`
}

func (BOMLine) TableName() string {
	return "bom_lines"
}

// BOMItem BOM快照行, per-build materialized BOM line. Part fields are copied
// at explosion time for point-in-time fidelity; later catalog edits do not
// rewrite history.
type BOMItem struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	BuildID     string    `json:"build_id" gorm:"size:36;not null;index"`
	BOMHeaderID *string   `json:"bom_header_id" gorm:"size:36;index"`
	BOMLineID   *string   `json:"bom_line_id" gorm:"size:36;index"`
	PartID      *string   `json:"part_id" gorm:"size:36;index"` // nullable: free-text lines
	LineNo      int       `json:"line_no" gorm:"not null;default:0"`
	PartNumber  *string   `json:"part_number" gorm:"size:64"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Description *string   `json:"description" gorm:"type:text"`
	QtyPer      float64   `json:"qty_per" gorm:"type:decimal(12,4);default:1"`
	QtyPlanned  float64   `json:"qty_planned" gorm:"type:decimal(12,4);default:0"`
	Qty         float64   `json:"qty" gorm:"type:decimal(12,4);default:0"` // legacy mirror of qty_planned
	Unit        string    `json:"unit" gorm:"size:16;default:ea"`
	Source      string    `json:"source" gorm:"size:20;default:manual"` // manual/bom_snapshot/work_order
	CreatedAt   time.Time `json:"created_at"`

	Build   *Build   `json:"build,omitempty" gorm:"foreignKey:BuildID"`
	Part    *Part    `json:"part,omitempty" gorm:"foreignKey:PartID"`
	BOMLine *BOMLine `json:"bom_line,omitempty" gorm:"foreignKey:BOMLineID"`
}

func (BOMItem) TableName() string {
	return "bom_items"
}
