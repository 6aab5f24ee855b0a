package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
)

// HandArchive is the durable record of extracted hands and finished jobs.
// Live job status stays in the in-memory store; this table is what the
// archive pages query after the fact.
type HandArchive struct {
	pool *pgxpool.Pool
}

func NewHandArchive(pool *pgxpool.Pool) *HandArchive {
	return &HandArchive{pool: pool}
}

// EnsureSchema creates the archive tables when absent.
func (a *HandArchive) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS analysis_jobs (
			id UUID PRIMARY KEY,
			stream_ref TEXT NOT NULL,
			video_uri TEXT NOT NULL,
			platform TEXT NOT NULL,
			status TEXT NOT NULL,
			total_segments INT NOT NULL,
			processed_segments INT NOT NULL,
			hands_found INT NOT NULL,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS hands (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES analysis_jobs(id),
			stream_ref TEXT NOT NULL,
			hand_number INT NOT NULL,
			stakes TEXT,
			pot DOUBLE PRECISION,
			board JSONB NOT NULL,
			players JSONB NOT NULL,
			actions JSONB,
			winners JSONB,
			timestamp_start TEXT,
			timestamp_end TEXT,
			absolute_start DOUBLE PRECISION,
			absolute_end DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS hands_stream_ref_idx ON hands (stream_ref);`

	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

// RecordJob upserts the terminal job history row.
func (a *HandArchive) RecordJob(ctx context.Context, job *entity.Job) error {
	const query = `
		INSERT INTO analysis_jobs (
			id, stream_ref, video_uri, platform, status,
			total_segments, processed_segments, hands_found,
			error_message, created_at, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			status=EXCLUDED.status,
			processed_segments=EXCLUDED.processed_segments,
			hands_found=EXCLUDED.hands_found,
			error_message=EXCLUDED.error_message,
			started_at=EXCLUDED.started_at,
			completed_at=EXCLUDED.completed_at`

	_, err := a.pool.Exec(ctx, query,
		job.ID, job.StreamRef, job.VideoURI, string(job.Platform), string(job.Status),
		job.Metadata.TotalSegments, job.Metadata.ProcessedSegments, job.Metadata.HandsFound,
		job.Error, job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// SaveHands persists the extracted hands one by one. A bad hand is skipped
// rather than aborting the batch; the caller gets the saved count and the
// first error for logging.
func (a *HandArchive) SaveHands(ctx context.Context, job *entity.Job, hands []entity.Hand) (int, error) {
	const query = `
		INSERT INTO hands (
			id, job_id, stream_ref, hand_number, stakes, pot,
			board, players, actions, winners,
			timestamp_start, timestamp_end, absolute_start, absolute_end
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	var saved int
	var firstErr error
	for _, hand := range hands {
		board, err := json.Marshal(hand.Board)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		players, _ := json.Marshal(hand.Players)
		actions, _ := json.Marshal(hand.Actions)
		winners, _ := json.Marshal(hand.Winners)

		_, err = a.pool.Exec(ctx, query,
			uuid.New(), job.ID, job.StreamRef, hand.HandNumber, hand.Stakes, hand.Pot,
			board, players, actions, winners,
			hand.TimestampStart, hand.TimestampEnd, hand.AbsoluteStart, hand.AbsoluteEnd,
		)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("insert hand %d: %w", hand.HandNumber, err)
			}
			continue
		}
		saved++
	}
	return saved, firstErr
}

// ListHandsByStream returns archived hands for a stream in extraction order.
func (a *HandArchive) ListHandsByStream(ctx context.Context, streamRef string) ([]entity.Hand, error) {
	const query = `
		SELECT hand_number, stakes, pot, board, players, actions, winners,
			timestamp_start, timestamp_end, absolute_start, absolute_end
		FROM hands WHERE stream_ref=$1 ORDER BY hand_number`

	rows, err := a.pool.Query(ctx, query, streamRef)
	if err != nil {
		return nil, fmt.Errorf("query hands: %w", err)
	}
	defer rows.Close()

	var hands []entity.Hand
	for rows.Next() {
		var h entity.Hand
		var board, players, actions, winners []byte
		err := rows.Scan(&h.HandNumber, &h.Stakes, &h.Pot, &board, &players, &actions, &winners,
			&h.TimestampStart, &h.TimestampEnd, &h.AbsoluteStart, &h.AbsoluteEnd)
		if err != nil {
			return nil, fmt.Errorf("scan hand: %w", err)
		}
		if err := json.Unmarshal(board, &h.Board); err != nil {
			return nil, fmt.Errorf("decode board: %w", err)
		}
		if err := json.Unmarshal(players, &h.Players); err != nil {
			return nil, fmt.Errorf("decode players: %w", err)
		}
		if len(actions) > 0 {
			_ = json.Unmarshal(actions, &h.Actions)
		}
		if len(winners) > 0 {
			_ = json.Unmarshal(winners, &h.Winners)
		}
		hands = append(hands, h)
	}
	return hands, rows.Err()
}
