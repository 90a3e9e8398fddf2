package entity

import "time"

// RoutingHeader 工艺路线, ordered step definitions for one part+revision.
// At most one header per part is active at a time.
type RoutingHeader struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	PartID    string    `json:"part_id" gorm:"size:36;not null;index"`
	Rev       string    `json:"rev" gorm:"size:16;default:1"`
	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Part  *Part         `json:"part,omitempty" gorm:"foreignKey:PartID"`
	Steps []RoutingStep `json:"steps,omitempty" gorm:"foreignKey:RoutingHeaderID"`
}

func (RoutingHeader) TableName() string {
	return "routing_headers"
}

// RoutingStep 工序定义, one ordered step inside a routing header.
type RoutingStep struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	RoutingHeaderID string    `json:"routing_header_id" gorm:"size:36;not null;index"`
	OpKey           string    `json:"op_key" gorm:"size:50;not null"`
	OpName          string    `json:"op_name" gorm:"size:128;not null"`
	ModuleKey       string    `json:"module_key" gorm:"size:50;not null"`
	Sequence        int       `json:"sequence" gorm:"not null"`
	IsOutsourced    bool      `json:"is_outsourced" gorm:"default:false"`
	CreatedAt       time.Time `json:"created_at"`
}

func (RoutingStep) TableName() string {
	return "routing_steps"
}

// RoutingTemplate 旧版路线模板, legacy fallback keyed by part type, kept for
// parts created before per-part routing headers existed.
type RoutingTemplate struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	PartTypeID   string    `json:"part_type_id" gorm:"size:36;not null;index"`
	OpKey        string    `json:"op_key" gorm:"size:50;not null"`
	OpName       string    `json:"op_name" gorm:"size:128;not null"`
	ModuleKey    string    `json:"module_key" gorm:"size:50;not null"`
	Sequence     int       `json:"sequence" gorm:"not null"`
	IsOutsourced bool      `json:"is_outsourced" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

func (RoutingTemplate) TableName() string {
	return "routing_templates"
}
