package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// BuildRepository 任务与批次仓库
type BuildRepository struct {
	db *gorm.DB
}

// NewBuildRepository 创建任务与批次仓库
func NewBuildRepository(db *gorm.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *BuildRepository) WithTx(tx *gorm.DB) *BuildRepository {
	return &BuildRepository{db: tx}
}

// FindJobByID 根据ID查找任务
func (r *BuildRepository) FindJobByID(ctx context.Context, id string) (*entity.Job, error) {
	var job entity.Job
	err := r.db.WithContext(ctx).
		Preload("Builds").
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// CreateJob 创建任务
func (r *BuildRepository) CreateJob(ctx context.Context, job *entity.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// NextJobNumber 生成下一个任务编号 (JOB-0001 格式)
func (r *BuildRepository) NextJobNumber(ctx context.Context) (string, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entity.Job{}).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("JOB-%04d", count+1), nil
}

// FindBuildByID 根据ID查找批次
func (r *BuildRepository) FindBuildByID(ctx context.Context, id string) (*entity.Build, error) {
	var build entity.Build
	err := r.db.WithContext(ctx).
		Preload("Job").
		Where("id = ?", id).
		First(&build).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &build, nil
}

// CreateBuild 创建批次
func (r *BuildRepository) CreateBuild(ctx context.Context, build *entity.Build) error {
	return r.db.WithContext(ctx).Create(build).Error
}

// UpdateBuild 更新批次
func (r *BuildRepository) UpdateBuild(ctx context.Context, build *entity.Build) error {
	return r.db.WithContext(ctx).Save(build).Error
}

// ListBuildsForJob 获取任务下的批次
func (r *BuildRepository) ListBuildsForJob(ctx context.Context, jobID string) ([]entity.Build, error) {
	var builds []entity.Build
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&builds).Error
	return builds, err
}
