package capture

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/windowctx"
)

// Uploader posts a cropped capture with its source context to the
// ingestion endpoint as a multipart form.
type Uploader struct {
	URL    string
	client *http.Client
	logger *logging.Logger
}

func NewUploader(url string, timeout time.Duration, logger *logging.Logger) *Uploader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Uploader{
		URL:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Upload sends the image with a bearer token and the resolved context.
// Null context fields are simply omitted from the form.
func (u *Uploader) Upload(ctx context.Context, imagePath, accessToken string, srcCtx windowctx.Context) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("image", "capture.png")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if srcCtx.SourceApp != nil {
		if err := form.WriteField("source_app", *srcCtx.SourceApp); err != nil {
			return err
		}
	}
	if srcCtx.SourceURL != nil {
		if err := form.WriteField("source_url", *srcCtx.SourceURL); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.ErrUploadFailed{Status: resp.StatusCode}
	}
	return nil
}
