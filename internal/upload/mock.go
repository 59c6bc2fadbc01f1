package upload

import (
	"context"
	"fmt"
	"net/url"
)

// MockUploader completes every upload immediately without contacting a media
// service. It is used for local development.
type MockUploader struct {
	BaseURL string
}

// NewMockUploader creates a mock uploader that hands out URLs under baseURL.
func NewMockUploader(baseURL string) *MockUploader {
	if baseURL == "" {
		baseURL = "https://uploads.invalid"
	}
	return &MockUploader{BaseURL: baseURL}
}

func (m *MockUploader) Upload(ctx context.Context, p Payload, progress ProgressFunc) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	size := int64(len(p.EncodedFile))
	if progress != nil {
		progress(size, size)
	}
	sum := p.Metadata.Checksum
	if len(sum) > 16 {
		sum = sum[:16]
	}
	return Response{
		Status: RemoteCompleted,
		URL:    fmt.Sprintf("%s/%s/%s", m.BaseURL, sum, url.PathEscape(p.Metadata.FileName)),
	}, nil
}

func (m *MockUploader) Status(ctx context.Context, videoID string) (Response, error) {
	return Response{Status: RemoteCompleted, VideoID: videoID}, ctx.Err()
}
