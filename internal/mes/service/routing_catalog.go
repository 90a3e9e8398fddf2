package service

import (
	"context"
	"sort"
	"strings"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StepPreset 工序步骤预设
type StepPreset struct {
	OpName       string `json:"op_name"`
	ModuleKey    string `json:"module_key"`
	Sequence     int    `json:"sequence"`
	IsOutsourced bool   `json:"is_outsourced"`
}

// RoutingStepPresets 标准步骤预设, 按 op_key 索引. 建路线时的下拉来源.
var RoutingStepPresets = map[string]StepPreset{
	"waterjet_cut":  {OpName: "Waterjet Blanks", ModuleKey: "raw_materials", Sequence: 10},
	"laser_cut":     {OpName: "Laser Cut Blanks", ModuleKey: "raw_materials", Sequence: 12, IsOutsourced: true},
	"edm_cut":       {OpName: "EDM Blanks", ModuleKey: "raw_materials", Sequence: 14, IsOutsourced: true},
	"bandsaw_cut":   {OpName: "Bandsaw Cut Blanks", ModuleKey: "raw_materials", Sequence: 16},
	"tablesaw_cut":  {OpName: "Tablesaw Cut Blanks", ModuleKey: "raw_materials", Sequence: 18},
	"surface_grind": {OpName: "Surface Grind Blade Blanks", ModuleKey: "surface_grinding", Sequence: 20},
	"cnc_profile":   {OpName: "Profile Blanks", ModuleKey: "manufacturing", Sequence: 30},
	"heat_treat":    {OpName: "Send Blades out for Heat Treat", ModuleKey: "heat_treat", Sequence: 40, IsOutsourced: true},
	"in_house_ht":   {OpName: "Heat Treat", ModuleKey: "heat_treat", Sequence: 45},
	"bevel_grind":   {OpName: "Bevel Grind Blades", ModuleKey: "bevel_grinding", Sequence: 50},
}

// ListStepPresets 预设列表, 按顺序号排序
func ListStepPresets() []ResolvedStep {
	steps := make([]ResolvedStep, 0, len(RoutingStepPresets))
	for key, preset := range RoutingStepPresets {
		steps = append(steps, ResolvedStep{
			OpKey:        key,
			OpName:       preset.OpName,
			ModuleKey:    preset.ModuleKey,
			Sequence:     preset.Sequence,
			IsOutsourced: preset.IsOutsourced,
		})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps
}

// SaveRoutingRequest 保存路线请求
type SaveRoutingRequest struct {
	Rev   string               `json:"rev"`
	Notes string               `json:"notes"`
	Steps []RoutingStepRequest `json:"steps" binding:"required,min=1"`
}

// RoutingStepRequest 路线步骤请求
type RoutingStepRequest struct {
	OpKey        string `json:"op_key" binding:"required"`
	OpName       string `json:"op_name"`
	ModuleKey    string `json:"module_key"`
	Sequence     int    `json:"sequence"`
	IsOutsourced bool   `json:"is_outsourced"`
}

// SaveRoutingForPart 为零件保存一条新路线并激活, 同零件其他路线停用.
// 缺省字段从预设补齐.
func (s *RoutingService) SaveRoutingForPart(ctx context.Context, partID string, req SaveRoutingRequest) (*entity.RoutingHeader, error) {
	if _, err := s.repos.Part.FindByID(ctx, partID); err != nil {
		return nil, err
	}

	header := &entity.RoutingHeader{
		ID:       uuid.New().String(),
		PartID:   partID,
		Rev:      firstNonEmpty(strings.TrimSpace(req.Rev), "1"),
		IsActive: true,
		Notes:    req.Notes,
	}

	for _, stepReq := range req.Steps {
		opKey := strings.TrimSpace(stepReq.OpKey)
		if opKey == "" {
			return nil, NewValidationError("Every routing step needs an op_key.")
		}

		step := entity.RoutingStep{
			ID:              uuid.New().String(),
			RoutingHeaderID: header.ID,
			OpKey:           opKey,
			OpName:          stepReq.OpName,
			ModuleKey:       stepReq.ModuleKey,
			Sequence:        stepReq.Sequence,
			IsOutsourced:    stepReq.IsOutsourced,
		}
		if preset, ok := RoutingStepPresets[opKey]; ok {
			if step.OpName == "" {
				step.OpName = preset.OpName
			}
			if step.ModuleKey == "" {
				step.ModuleKey = preset.ModuleKey
			}
			if step.Sequence == 0 {
				step.Sequence = preset.Sequence
			}
		}
		if step.OpName == "" || step.ModuleKey == "" {
			return nil, NewValidationError("Step %s needs op_name and module_key (no preset found).", opKey)
		}
		header.Steps = append(header.Steps, step)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(header).Error; err != nil {
			return err
		}
		return tx.Model(&entity.RoutingHeader{}).
			Where("part_id = ? AND id <> ?", partID, header.ID).
			Update("is_active", false).Error
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// ListRoutingsForPart 获取零件路线版本列表
func (s *RoutingService) ListRoutingsForPart(ctx context.Context, partID string) ([]entity.RoutingHeader, error) {
	return s.repos.Routing.ListHeadersForPart(ctx, partID)
}
