package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// HTTPUploader sends payloads to the media service as JSON over HTTP.
type HTTPUploader struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPUploader creates an uploader for endpoint. Status requests go to
// <endpoint>/status/<videoID>.
func NewHTTPUploader(endpoint, token string, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload posts the payload and reports transmitted bytes through progress.
func (u *HTTPUploader) Upload(ctx context.Context, p Payload, progress ProgressFunc) (Response, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Response{}, fmt.Errorf("marshal upload payload: %w", err)
	}

	cr := &countingReader{r: bytes.NewReader(body), total: int64(len(body)), fn: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, cr)
	if err != nil {
		return Response{}, fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", "application/json")
	u.authorize(req)

	resp, err := u.client.Do(req)
	if err != nil {
		return Response{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// Status asks for the processing state of an accepted upload.
func (u *HTTPUploader) Status(ctx context.Context, videoID string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.endpoint+"/status/"+url.PathEscape(videoID), nil)
	if err != nil {
		return Response{}, fmt.Errorf("create status request: %w", err)
	}
	u.authorize(req)

	resp, err := u.client.Do(req)
	if err != nil {
		return Response{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func (u *HTTPUploader) authorize(req *http.Request) {
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &Error{Kind: KindNetworkUnreachable, Message: "the upload service could not be reached", Err: err}
}

// decodeResponse maps the HTTP status onto the failure taxonomy. Messages
// from the service body win over the defaults.
func decodeResponse(resp *http.Response) (Response, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, &Error{Kind: KindNetworkUnreachable, Message: "the upload response was cut off", Err: err}
	}
	var r Response
	_ = json.Unmarshal(data, &r)

	classify := func(kind ErrorKind, fallback string) error {
		msg := r.Message
		if msg == "" {
			msg = fallback
		}
		return &Error{Kind: kind, Message: msg, Err: fmt.Errorf("upload service returned %d", resp.StatusCode)}
	}

	switch code := resp.StatusCode; {
	case code == http.StatusAccepted:
		if r.Status == "" {
			r.Status = RemoteAccepted
		}
		return r, nil
	case code >= 200 && code < 300:
		if r.Status == "" {
			r.Status = RemoteCompleted
		}
		return r, nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Response{}, classify(KindUnauthorized, "you are not authorized to upload files")
	case code == http.StatusRequestEntityTooLarge:
		return Response{}, classify(KindTooLarge, "the file is larger than the upload service accepts")
	case code == http.StatusUnsupportedMediaType:
		return Response{}, classify(KindUnsupportedType, "the upload service does not accept this file type")
	case code >= 500:
		return Response{}, classify(KindServerError, "the upload service failed, try again later")
	default:
		return Response{}, classify(KindValidation, fmt.Sprintf("the upload was rejected (%d)", code))
	}
}

// countingReader reports bytes read through fn as the body is sent.
type countingReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.fn != nil {
			c.fn(c.sent, c.total)
		}
	}
	return n, err
}
