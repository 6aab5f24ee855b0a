package port

import "context"

// FailureNotifier alerts the operator address when a job fails permanently.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, jobID string, videoURI string, errorMsg string) error
}
