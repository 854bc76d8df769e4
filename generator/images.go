package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ImageRenderer turns an image prompt into encoded image bytes.
type ImageRenderer interface {
	Render(ctx context.Context, prompt string) ([]byte, error)
}

// ImageRequest asks for one square image.
type ImageRequest struct {
	Prompt string
	Model  string
	Size   string
}

// ImageAPI generates an image and returns a URL where it can be downloaded.
type ImageAPI interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// DownloadError describes a failed image download.
type DownloadError struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("download %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("download %s: %s", e.URL, e.Message)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// OpenAIImages renders with one synchronous generation request followed by
// an HTTP download of the returned URL.
type OpenAIImages struct {
	api     ImageAPI
	model   string
	size    string
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

func NewOpenAIImages(api ImageAPI, model, size string, client *http.Client, verbose bool, logger *log.Logger) (*OpenAIImages, error) {
	if api == nil {
		return nil, errors.New("image api is required")
	}
	if model == "" {
		model = DefaultImageModel
	}
	if size == "" {
		size = DefaultImageSize
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OpenAIImages{api: api, model: model, size: size, client: client, verbose: verbose, logger: logger}, nil
}

func (o *OpenAIImages) Render(ctx context.Context, prompt string) ([]byte, error) {
	o.logger.Printf("[image] Generate Image")
	url, err := o.api.GenerateImage(ctx, ImageRequest{Prompt: prompt, Model: o.model, Size: o.size})
	if err != nil {
		return nil, fmt.Errorf("generating image: %w", err)
	}
	if url == "" {
		return nil, errors.New("generating image: response has no url")
	}
	if o.verbose {
		o.logger.Printf("[INFO] [image] downloading %s", url)
	}
	return download(ctx, o.client, url)
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Message: "failed to create request", Cause: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Message: "failed to read body", Cause: err}
	}
	if len(data) == 0 {
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Message: "empty body"}
	}
	return data, nil
}
