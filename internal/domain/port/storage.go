package port

import "context"

// VideoStorage is the object store holding source videos and temporary
// segment clips. URIs use the storage://bucket/key scheme.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, videoURI string, destPath string) error
	UploadClip(ctx context.Context, objectKey string, localPath string) (string, error)
	DeleteClip(ctx context.Context, clipURI string) error
}
