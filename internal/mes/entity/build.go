package entity

import "time"

// Job 工作任务, customer-facing job wrapping one or more builds.
type Job struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	CustomerID *string    `json:"customer_id" gorm:"size:36;index"`
	JobNumber  string     `json:"job_number" gorm:"size:32;not null;uniqueIndex"`
	Title      string     `json:"title" gorm:"size:256;not null"`
	Status     string     `json:"status" gorm:"size:20;default:active"`
	Priority   *int       `json:"priority"`
	DueDate    *time.Time `json:"due_date"`
	Notes      string     `json:"notes" gorm:"type:text"`
	IsArchived bool       `json:"is_archived" gorm:"default:false"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Builds []Build `json:"builds,omitempty" gorm:"foreignKey:JobID"`
}

func (Job) TableName() string {
	return "jobs"
}

// Build 生产批次, one production run of an assembly under a job. Operations
// and BOM snapshots hang off the build.
type Build struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	JobID          string    `json:"job_id" gorm:"size:36;not null;index"`
	Name           string    `json:"name" gorm:"size:256;not null"`
	Status         string    `json:"status" gorm:"size:20;default:active"`
	QtyOrdered     float64   `json:"qty_ordered" gorm:"type:decimal(12,4);default:0"`
	QtyCompleted   float64   `json:"qty_completed" gorm:"type:decimal(12,4);default:0"`
	QtyScrap       float64   `json:"qty_scrap" gorm:"type:decimal(12,4);default:0"`
	AssemblyPartID *string   `json:"assembly_part_id" gorm:"size:36;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Job      *Job      `json:"job,omitempty" gorm:"foreignKey:JobID"`
	BOMItems []BOMItem `json:"bom_items,omitempty" gorm:"foreignKey:BuildID"`
}

func (Build) TableName() string {
	return "builds"
}

// WorkOrder 客户订单, intake document applied into a job + build.
type WorkOrder struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	WONumber   string     `json:"wo_number" gorm:"size:32;not null;uniqueIndex"`
	CustomerID *string    `json:"customer_id" gorm:"size:36;index"`
	Status     string     `json:"status" gorm:"size:20;default:open"`
	Notes      string     `json:"notes" gorm:"type:text"`
	AppliedAt  *time.Time `json:"applied_at"`
	CreatedBy  *string    `json:"created_by" gorm:"size:36"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	Lines []WorkOrderLine `json:"lines,omitempty" gorm:"foreignKey:WorkOrderID"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}

// WorkOrderLine 订单行, requested part + quantity.
type WorkOrderLine struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	WorkOrderID  string    `json:"work_order_id" gorm:"size:36;not null;index"`
	PartID       *string   `json:"part_id" gorm:"size:36;index"`
	PartNumber   *string   `json:"part_number" gorm:"size:64"`
	QtyRequested float64   `json:"qty_requested" gorm:"type:decimal(12,4);default:0"`
	CreatedAt    time.Time `json:"created_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (WorkOrderLine) TableName() string {
	return "work_order_lines"
}
