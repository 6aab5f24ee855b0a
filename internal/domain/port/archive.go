package port

import (
	"context"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// HandArchive persists extracted hands and a terminal job history row.
// The in-memory job store remains the source of truth for live status;
// the archive is the durable record.
type HandArchive interface {
	SaveHands(ctx context.Context, job *entity.Job, hands []entity.Hand) (saved int, err error)
	RecordJob(ctx context.Context, job *entity.Job) error
}
