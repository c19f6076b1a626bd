package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/utils/resilience"
)

// DefaultOCRTimeout bounds a single recognition call
const DefaultOCRTimeout = 60 * time.Second

var (
	// ErrOCRService covers transport failures, timeouts and non-2xx replies from the OCR service
	ErrOCRService = errors.New("OCR service error")
	// ErrNoTextExtracted means the OCR service answered but recognized no text
	ErrNoTextExtracted = errors.New("no text extracted from document")
)

// OCRStatusError is a non-2xx reply from the OCR service
type OCRStatusError struct {
	StatusCode int
	Body       string
}

func (e *OCRStatusError) Error() string {
	return fmt.Sprintf("OCR service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *OCRStatusError) Unwrap() error { return ErrOCRService }

// OCRConfig configures the OCR client
type OCRConfig struct {
	// URL is the full invoke URL of the general OCR endpoint
	URL     string
	Secret  string
	Timeout time.Duration
	Breaker *resilience.Breaker
	Logger  *zap.Logger
}

// OCRClient talks to a CLOVA-style general OCR endpoint (message JSON part plus file part)
type OCRClient struct {
	url        string
	secret     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *resilience.Breaker
	logger     *zap.Logger
	now        func() time.Time
}

type ocrImageSpec struct {
	Format string `json:"format"`
	Name   string `json:"name"`
}

type ocrMessage struct {
	Version   string         `json:"version"`
	RequestID string         `json:"requestId"`
	Timestamp int64          `json:"timestamp"`
	Images    []ocrImageSpec `json:"images"`
}

// OCRResponse is the subset of the OCR reply the adapter reads
type OCRResponse struct {
	Version   string `json:"version"`
	RequestID string `json:"requestId"`
	Images    []struct {
		Name        string `json:"name"`
		InferResult string `json:"inferResult"`
		Message     string `json:"message"`
		Fields      []struct {
			InferText string `json:"inferText"`
		} `json:"fields"`
	} `json:"images"`
}

// Text joins every recognized fragment with single spaces
func (r *OCRResponse) Text() string {
	var parts []string
	for _, img := range r.Images {
		for _, f := range img.Fields {
			if t := strings.TrimSpace(f.InferText); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

// NewOCRClient creates a new OCR client
func NewOCRClient(cfg OCRConfig) *OCRClient {
	if cfg.URL == "" {
		cfg.URL = "http://127.0.0.1:8081/general"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOCRTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewBreaker(resilience.DefaultConfig("ocr"), cfg.Logger, func(err error) bool {
			return !errors.Is(err, ErrNoTextExtracted) && !errors.Is(err, context.Canceled)
		})
	}

	return &OCRClient{
		url:        cfg.URL,
		secret:     cfg.Secret,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout + 5*time.Second},
		breaker:    cfg.Breaker,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// ExtractText recognizes the text of a PDF or image. It is never retried.
func (c *OCRClient) ExtractText(ctx context.Context, fileBytes []byte, fileName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var text string
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := c.send(ctx, fileBytes, fileName)
		if err != nil {
			return err
		}
		text = resp.Text()
		if text == "" {
			return ErrNoTextExtracted
		}
		return nil
	})
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ErrNoTextExtracted), errors.Is(err, ErrOCRService):
		return "", err
	default:
		return "", fmt.Errorf("%w: %v", ErrOCRService, err)
	}
}

func (c *OCRClient) send(ctx context.Context, fileBytes []byte, fileName string) (*OCRResponse, error) {
	msg := ocrMessage{
		Version:   "V2",
		RequestID: uuid.NewString(),
		Timestamp: c.now().UnixMilli(),
		Images: []ocrImageSpec{{
			Format: OCRFormat(fileName),
			Name:   strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)),
		}},
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OCR message: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="message"`)
	header.Set("Content-Type", "application/json")
	msgPart, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message part: %w", err)
	}
	if _, err := msgPart.Write(msgJSON); err != nil {
		return nil, fmt.Errorf("failed to write message part: %w", err)
	}

	filePart, err := writer.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := filePart.Write(fileBytes); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-OCR-SECRET", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrOCRService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("OCR service returned error status",
			zap.String("request_id", msg.RequestID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(bodyBytes)),
		)
		return nil, &OCRStatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var ocrResp OCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrOCRService, err)
	}
	return &ocrResp, nil
}

// OCRFormat maps a file name to the OCR image format tag
func OCRFormat(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "pdf"
	case ".png":
		return "png"
	default:
		return "jpg"
	}
}
