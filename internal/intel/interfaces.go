package intel

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the narrow persistence contract the engine consumes
type Repository interface {
	// UpsertEntity creates the entity on first sighting or refreshes last_seen.
	// It returns the stable id for (t, value).
	UpsertEntity(ctx context.Context, t EntityType, value string, seenAt time.Time) (uuid.UUID, error)
	FindEntity(ctx context.Context, t EntityType, value string) (*Entity, error)
	GetEntitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]Entity, error)
	// IncrementReportCounts bumps report_count once per distinct id and
	// stamps both last_seen and last_reported_at with reportedAt.
	IncrementReportCounts(ctx context.Context, ids []uuid.UUID, reportedAt time.Time) error
	GetCampaigns(ctx context.Context) ([]Campaign, error)
	FindIndicatorByValue(ctx context.Context, value string) (*IndicatorMatch, error)
	CreateReport(ctx context.Context, report *Report) error
}
