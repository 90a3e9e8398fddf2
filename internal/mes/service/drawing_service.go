package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// DrawingService 零件图纸服务, 文件存MinIO, 元数据入库
type DrawingService struct {
	repos       *repository.Repositories
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

// NewDrawingService 创建零件图纸服务
func NewDrawingService(repos *repository.Repositories, minioClient *minio.Client, bucket string, logger *zap.Logger) *DrawingService {
	return &DrawingService{repos: repos, minioClient: minioClient, bucket: bucket, logger: logger}
}

// Upload 上传图纸
func (s *DrawingService) Upload(ctx context.Context, partID, fileName string, size int64, contentType string, reader io.Reader, uploadedBy string) (*entity.PartDrawing, error) {
	if s.minioClient == nil {
		return nil, NewValidationError("File storage is not configured.")
	}

	if _, err := s.repos.Part.FindByID(ctx, partID); err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("drawings/%s/%s%s", partID, uuid.New().String(), path.Ext(fileName))

	if _, err := s.minioClient.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return nil, fmt.Errorf("upload drawing: %w", err)
	}

	drawing := &entity.PartDrawing{
		ID:        uuid.New().String(),
		PartID:    partID,
		FileName:  fileName,
		ObjectKey: objectKey,
		FileSize:  size,
	}
	if uploadedBy != "" {
		drawing.UploadedBy = &uploadedBy
	}
	if err := s.repos.Drawing.Create(ctx, drawing); err != nil {
		return nil, err
	}

	s.logger.Info("Drawing uploaded",
		zap.String("part_id", partID),
		zap.String("object_key", objectKey),
		zap.Int64("size", size),
	)
	return drawing, nil
}

// ListForPart 图纸列表
func (s *DrawingService) ListForPart(ctx context.Context, partID string) ([]entity.PartDrawing, error) {
	return s.repos.Drawing.ListForPart(ctx, partID)
}

// DownloadURL 生成限时下载链接
func (s *DrawingService) DownloadURL(ctx context.Context, drawingID string, expiry time.Duration) (string, error) {
	if s.minioClient == nil {
		return "", NewValidationError("File storage is not configured.")
	}

	drawing, err := s.repos.Drawing.FindByID(ctx, drawingID)
	if err != nil {
		return "", err
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", drawing.FileName))

	u, err := s.minioClient.PresignedGetObject(ctx, s.bucket, drawing.ObjectKey, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign drawing url: %w", err)
	}
	return u.String(), nil
}

// Delete 删除图纸 (对象 + 元数据)
func (s *DrawingService) Delete(ctx context.Context, drawingID string) error {
	drawing, err := s.repos.Drawing.FindByID(ctx, drawingID)
	if err != nil {
		return err
	}

	if s.minioClient != nil {
		if err := s.minioClient.RemoveObject(ctx, s.bucket, drawing.ObjectKey, minio.RemoveObjectOptions{}); err != nil {
			s.logger.Warn("Failed to remove drawing object",
				zap.String("object_key", drawing.ObjectKey),
				zap.Error(err),
			)
		}
	}
	return s.repos.Drawing.Delete(ctx, drawingID)
}
