package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"storage://videos/ept/final.mp4", "videos", "ept/final.mp4", false},
		{"storage://analysis-clips/temp-segments/job/clip.mp4", "analysis-clips", "temp-segments/job/clip.mp4", false},
		{"gs://videos/final.mp4", "", "", true},
		{"storage://", "", "", true},
		{"storage://bucket-only", "", "", true},
		{"storage:///key-only", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, ValidURI(tt.uri))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
			assert.True(t, ValidURI(tt.uri))
		})
	}
}
