package orchestrator

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/handarchive/video-analysis-service/internal/domain/entity"
	"github.com/handarchive/video-analysis-service/internal/domain/port"
)

// QueueHandler adapts queue deliveries into Submit calls. Malformed or
// invalid submissions are parked on the DLQ and acked; requeueing them would
// just replay the same rejection forever.
func (o *Orchestrator) QueueHandler(dlq port.DLQPublisher) func(ctx context.Context, body []byte) error {
	return func(ctx context.Context, body []byte) error {
		var msg entity.AnalysisRequestMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			o.deadLetter(ctx, dlq, body, "malformed payload: "+err.Error())
			return nil
		}

		jobID, err := o.Submit(SubmitRequest{
			StreamID: msg.StreamID,
			VideoURI: msg.VideoRef,
			Segments: msg.Segments,
			Platform: msg.Platform,
			Players:  msg.Players,
		})
		if err != nil {
			o.deadLetter(ctx, dlq, body, "rejected submission: "+err.Error())
			return nil
		}

		o.logger.Info("queue submission accepted",
			zap.String("job_id", jobID.String()),
			zap.String("stream_ref", msg.StreamID),
		)
		return nil
	}
}

func (o *Orchestrator) deadLetter(ctx context.Context, dlq port.DLQPublisher, body []byte, reason string) {
	o.logger.Warn("dead-lettering queue submission", zap.String("reason", reason))
	if dlq == nil {
		return
	}
	if err := dlq.PublishToDLQ(ctx, body, reason); err != nil {
		o.logger.Error("dlq publish failed", zap.Error(err))
	}
}
