package supabase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"canvas-backend/application/ports"
	pkgerrors "canvas-backend/pkg/errors"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Edge function names
const (
	FnExtractYouTube    = "extract-youtube"
	FnExtractInstagram  = "extract-instagram"
	FnFetchURL          = "fetch-url"
	FnTranscribeMedia   = "transcribe-media"
	FnExtractImagesText = "extract-images-text"
	FnOCRImage          = "ocr-image"
	FnAnalyzeImageStyle = "analyze-image-style"
	FnGenerateContent   = "generate-content"
	FnGenerateImage     = "generate-image"
	FnEditImage         = "edit-image"
)

// FunctionsConfig configures the edge function client
type FunctionsConfig struct {
	BaseURL          string
	Key              string
	Timeout          time.Duration
	StreamTimeout    time.Duration
	BreakerFailures  int
	BreakerOpenDelay time.Duration
}

// Functions calls the hosted edge functions over HTTP. Every function has
// its own circuit breaker; quota and validation answers do not count as failures.
type Functions struct {
	cfg     FunctionsConfig
	http    *http.Client
	metrics ports.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

var (
	_ ports.Extractors     = (*Functions)(nil)
	_ ports.ImageAnalyzer  = (*Functions)(nil)
	_ ports.ImageGenerator = (*Functions)(nil)
	_ ports.TextGenerator  = (*Functions)(nil)
)

// NewFunctions creates an edge function client
func NewFunctions(cfg FunctionsConfig, httpClient *http.Client, metrics ports.Metrics, logger *zap.Logger) *Functions {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 5 * time.Minute
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenDelay <= 0 {
		cfg.BreakerOpenDelay = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Functions{
		cfg:      cfg,
		http:     httpClient,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer("canvas-backend.infrastructure.supabase"),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

type urlRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Content    string   `json:"content"`
	Transcript string   `json:"transcript"`
	Text       string   `json:"text"`
	Title      string   `json:"title"`
	Thumbnail  string   `json:"thumbnail"`
	Images     []string `json:"images"`
	Caption    string   `json:"caption"`
	MediaType  string   `json:"mediaType"`
	VideoURL   string   `json:"videoUrl"`
}

func (r extractResponse) toExtracted() *ports.Extracted {
	content := r.Content
	if content == "" {
		content = r.Transcript
	}
	if content == "" {
		content = r.Text
	}
	return &ports.Extracted{
		Content:   content,
		Title:     r.Title,
		Thumbnail: r.Thumbnail,
		Images:    r.Images,
		Caption:   r.Caption,
		MediaType: r.MediaType,
		VideoURL:  r.VideoURL,
	}
}

// mediaPayload carries an image or media file either by URL or inline
type mediaPayload struct {
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

func newMediaPayload(ref ports.MediaRef, image bool) mediaPayload {
	p := mediaPayload{MimeType: ref.MimeType, FileName: ref.Name}
	if len(ref.Data) > 0 {
		p.Data = base64.StdEncoding.EncodeToString(ref.Data)
		return p
	}
	if image {
		p.ImageURL = ref.URL
	} else {
		p.URL = ref.URL
	}
	return p
}

// ExtractYouTube implements ports.Extractors
func (f *Functions) ExtractYouTube(ctx context.Context, url string) (*ports.Extracted, error) {
	var resp extractResponse
	if err := f.call(ctx, FnExtractYouTube, urlRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return resp.toExtracted(), nil
}

// ExtractInstagram implements ports.Extractors
func (f *Functions) ExtractInstagram(ctx context.Context, url string) (*ports.Extracted, error) {
	var resp extractResponse
	if err := f.call(ctx, FnExtractInstagram, urlRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return resp.toExtracted(), nil
}

// FetchURL implements ports.Extractors
func (f *Functions) FetchURL(ctx context.Context, url string) (*ports.Extracted, error) {
	var resp extractResponse
	if err := f.call(ctx, FnFetchURL, urlRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return resp.toExtracted(), nil
}

type transcribeResponse struct {
	Transcript   string `json:"transcript"`
	Text         string `json:"text"`
	NoTranscript bool   `json:"noTranscript"`
}

// Transcribe implements ports.Extractors
func (f *Functions) Transcribe(ctx context.Context, media ports.MediaRef) (ports.Transcript, error) {
	var resp transcribeResponse
	if err := f.call(ctx, FnTranscribeMedia, newMediaPayload(media, false), &resp); err != nil {
		return ports.Transcript{}, err
	}
	text := strings.TrimSpace(resp.Transcript)
	if text == "" {
		text = strings.TrimSpace(resp.Text)
	}
	if resp.NoTranscript || text == "" {
		return ports.Transcript{Available: false}, nil
	}
	return ports.Transcript{Text: text, Available: true}, nil
}

type textResponse struct {
	Text string `json:"text"`
}

// ExtractImagesText implements ports.Extractors
func (f *Functions) ExtractImagesText(ctx context.Context, imageURLs []string) (string, error) {
	var resp textResponse
	req := struct {
		ImageURLs []string `json:"imageUrls"`
	}{ImageURLs: imageURLs}
	if err := f.call(ctx, FnExtractImagesText, req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// OCR implements ports.ImageAnalyzer
func (f *Functions) OCR(ctx context.Context, image ports.MediaRef) (string, error) {
	var resp textResponse
	if err := f.call(ctx, FnOCRImage, newMediaPayload(image, true), &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// AnalyzeStyle implements ports.ImageAnalyzer. The analysis object may be
// wrapped in an "analysis" field or be the whole answer.
func (f *Functions) AnalyzeStyle(ctx context.Context, image ports.MediaRef) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := f.call(ctx, FnAnalyzeImageStyle, newMediaPayload(image, true), &resp); err != nil {
		return nil, err
	}
	if inner, ok := resp["analysis"].(map[string]interface{}); ok {
		return inner, nil
	}
	return resp, nil
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
	URL      string `json:"url"`
}

func (r imageResponse) url() string {
	if r.ImageURL != "" {
		return r.ImageURL
	}
	return r.URL
}

// GenerateImage implements ports.ImageGenerator
func (f *Functions) GenerateImage(ctx context.Context, req ports.ImageRequest) (string, error) {
	var resp imageResponse
	if err := f.call(ctx, FnGenerateImage, req, &resp); err != nil {
		return "", err
	}
	if resp.url() == "" {
		return "", pkgerrors.NewExternalError(FnGenerateImage, errors.New("no image returned"))
	}
	return resp.url(), nil
}

// EditImage implements ports.ImageGenerator
func (f *Functions) EditImage(ctx context.Context, req ports.EditRequest) (string, error) {
	var resp imageResponse
	if err := f.call(ctx, FnEditImage, req, &resp); err != nil {
		return "", err
	}
	if resp.url() == "" {
		return "", pkgerrors.NewExternalError(FnEditImage, errors.New("no image returned"))
	}
	return resp.url(), nil
}

// StreamText implements ports.TextGenerator. The caller owns the returned
// body; the stream is bounded by the stream timeout.
func (f *Functions) StreamText(ctx context.Context, req ports.TextRequest) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.StreamTimeout)
	body, err := f.execute(ctx, FnGenerateContent, req, func(resp *http.Response) (interface{}, error) {
		return resp.Body, nil
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: body.(io.ReadCloser), cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// call posts a JSON request and decodes the JSON answer into out
func (f *Functions) call(ctx context.Context, name string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	_, err := f.execute(ctx, name, in, func(resp *http.Response) (interface{}, error) {
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, pkgerrors.NewExternalError(name, err)
		}
		if msg := bodyError(raw); msg != "" {
			return nil, pkgerrors.NewExternalError(name, errors.New(msg))
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, pkgerrors.NewExternalError(name, fmt.Errorf("decode response: %w", err))
		}
		return nil, nil
	})
	return err
}

// execute runs one request through the function's breaker. handle is only
// called for successful status codes.
func (f *Functions) execute(ctx context.Context, name string, in interface{}, handle func(*http.Response) (interface{}, error)) (interface{}, error) {
	ctx, span := f.tracer.Start(ctx, "Functions."+name,
		trace.WithAttributes(attribute.String("function", name)),
	)
	defer span.End()

	start := time.Now()
	result, err := f.breaker(name).Execute(func() (interface{}, error) {
		resp, err := f.post(ctx, name, in)
		if err != nil {
			return nil, err
		}
		if err := statusError(name, resp); err != nil {
			return nil, err
		}
		return handle(resp)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = pkgerrors.NewUnavailableError(name).WithCause(err)
	}

	status := callStatus(err)
	f.metrics.RecordRemoteCall(name, status, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		f.logger.Warn("Edge function call failed",
			zap.String("function", name),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func (f *Functions) post(ctx context.Context, name string, in interface{}) (*http.Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, pkgerrors.NewInternalError("encode request").WithCause(err)
	}
	url := strings.TrimRight(f.cfg.BaseURL, "/") + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.NewInternalError("build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Key)
		req.Header.Set("apikey", f.cfg.Key)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, pkgerrors.NewTimeoutError(name).WithCause(err)
		}
		return nil, pkgerrors.NewExternalError(name, err)
	}
	return resp, nil
}

func (f *Functions) breaker(name string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[name]; ok {
		return cb
	}
	threshold := uint32(f.cfg.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     f.cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			f.logger.Warn("Circuit breaker state changed",
				zap.String("function", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsQuota(err) || pkgerrors.IsValidation(err)
		},
	})
	f.breakers[name] = cb
	return cb
}

// statusError maps a non-2xx answer to an AppError and closes its body.
// 402 is the quota condition.
func statusError(name string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := bodyError(raw)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		err := pkgerrors.NewQuotaError(name)
		if msg != "" {
			err.Message = msg
		}
		return err
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "request rejected by " + name
		}
		return pkgerrors.NewValidationError(msg)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return pkgerrors.NewTimeoutError(name)
	default:
		return pkgerrors.NewExternalError(name, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
}

// bodyError returns the message of an {"error": ...} answer
func bodyError(raw []byte) string {
	var wire struct {
		Error interface{} `json:"error"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil || wire.Error == nil {
		return ""
	}
	switch e := wire.Error.(type) {
	case string:
		return e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprint(wire.Error)
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.IsQuota(err):
		return "quota"
	case pkgerrors.IsTimeout(err):
		return "timeout"
	case pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable):
		return "open"
	case pkgerrors.IsValidation(err):
		return "rejected"
	default:
		return "error"
	}
}
