package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/repository"
	"github.com/spec-kit/isp-support/internal/storage"
)

// MaintenanceService runs the reconciliation passes the ticket flows leave
// behind: connection links and orphaned comments/attachments.
type MaintenanceService struct {
	connections repository.ConnectionRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	blobs       storage.BlobStore
	logger      *zap.Logger
	now         func() time.Time
}

// MaintenanceDependencies bundles collaborators for maintenance.
type MaintenanceDependencies struct {
	ConnectionRepo repository.ConnectionRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	Blobs          storage.BlobStore
	Logger         *zap.Logger
}

// ReapReport summarises an orphan sweep.
type ReapReport struct {
	Comments      int64 `json:"comments"`
	Attachments   int   `json:"attachments"`
	BlobsReleased int   `json:"blobs_released"`
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(deps MaintenanceDependencies) *MaintenanceService {
	return &MaintenanceService{
		connections: deps.ConnectionRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		blobs:       deps.Blobs,
		logger:      nopLogger(deps.Logger),
		now:         nowUTC,
	}
}

// RepairConnectionLinks points each connection at its newest ticket.
func (s *MaintenanceService) RepairConnectionLinks(ctx context.Context) (int64, error) {
	changed, err := s.connections.RepairTicketLinks(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("connection links repaired", zap.Int64("changed", changed))
	return changed, nil
}

// ReapOrphans removes comments no ticket references, then attachments nothing
// references, then releases their blobs. Records younger than grace are kept.
func (s *MaintenanceService) ReapOrphans(ctx context.Context, grace time.Duration) (ReapReport, error) {
	var report ReapReport
	if grace < 0 {
		grace = 0
	}
	cutoff := s.now().Add(-grace)

	comments, err := s.comments.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return report, err
	}
	report.Comments = comments

	removed, err := s.attachments.DeleteOrphans(ctx, cutoff)
	if err != nil {
		return report, err
	}
	report.Attachments = len(removed)

	for _, attachment := range removed {
		if s.blobs == nil {
			break
		}
		gone, err := s.blobs.Release(ctx, attachment.Src)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("release orphan blob",
				zap.String("attachment_id", attachment.ID),
				zap.String("locator", attachment.Src),
				zap.Error(err))
			continue
		}
		if gone {
			report.BlobsReleased++
		}
	}
	s.logger.Info("orphans reaped",
		zap.Time("cutoff", cutoff),
		zap.Int64("comments", report.Comments),
		zap.Int("attachments", report.Attachments),
		zap.Int("blobs_released", report.BlobsReleased))
	return report, nil
}
