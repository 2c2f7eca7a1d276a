package openai_provider

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
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/brieflab/internal/helpers"
	"github.com/mohammad-safakhou/brieflab/models"
)

// ImageAPIStyle selects the wire format of the image endpoint.
type ImageAPIStyle string

const (
	// VeniceImages posts to /image/generate and reads base64 from images[0].
	VeniceImages ImageAPIStyle = "venice"
	// OpenAIImages posts to /images/generations and reads data[0].b64_json.
	OpenAIImages ImageAPIStyle = "openai"

	DefaultImageStyle   = "Watercolor Whimsical"
	DefaultImageTimeout = 60 * time.Second
	rateLimitWait       = 5 * time.Second
)

var styleModifiers = map[string]string{
	"Watercolor Whimsical": "watercolor painting style, whimsical and dreamy, soft flowing colors, artistic brush strokes, " +
		"ethereal and magical atmosphere, pastel color palette with gentle gradients, hand-painted aesthetic, " +
		"playful and imaginative, organic shapes and forms, delicate watercolor washes, artistic illustration",
	"Infographic":  "infographic style, data visualization, clean modern design, icons and symbols, professional business graphics",
	"Cinematic":    "cinematic composition, dramatic lighting, movie poster style, atmospheric, professional photography look",
	"Digital Art":  "digital art, vibrant colors, creative illustration, modern artistic style, detailed rendering",
	"Minimalist":   "minimalist design, simple shapes, clean lines, limited color palette, elegant and sophisticated",
	"Photographic": "photorealistic, high quality photography style, professional lighting, sharp details",
	"3D Model":     "3D rendered, isometric view, modern 3D graphics, clean materials, professional product visualization",
}

// ImageOptions configures an ImageClient.
type ImageOptions struct {
	APIStyle ImageAPIStyle
	BaseURL  string
	APIKey   string
	Model    string
	Width    int
	Height   int
	Style    string
	Format   string
	SafeMode bool
	Timeout  time.Duration
}

// ImageClient generates illustrations through an image generation endpoint.
type ImageClient struct {
	opts          ImageOptions
	httpClient    *http.Client
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
	rateLimitWait time.Duration
}

// NewImageClient builds an ImageClient with defaults filled in.
func NewImageClient(opts ImageOptions, httpClient *http.Client, logger *zap.Logger) *ImageClient {
	if opts.APIStyle == "" {
		opts.APIStyle = VeniceImages
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = "qwen-image"
	}
	if opts.Width <= 0 {
		opts.Width = 1024
	}
	if opts.Height <= 0 {
		opts.Height = 768
	}
	if opts.Style == "" {
		opts.Style = DefaultImageStyle
	}
	if opts.Format == "" {
		opts.Format = "webp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultImageTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageClient{opts: opts, httpClient: httpClient, logger: logger, sleep: sleepContext, rateLimitWait: rateLimitWait}
}

// EnhancePrompt appends the modifiers for style to prompt. Unknown styles fall back to the default style.
func EnhancePrompt(prompt, style string) string {
	modifier, ok := styleModifiers[style]
	if !ok {
		modifier = styleModifiers[DefaultImageStyle]
	}
	return fmt.Sprintf("%s. Style: %s. High quality, detailed, artistic.", strings.TrimSpace(prompt), modifier)
}

// Generate renders one image. A single 429 is retried after a short pause.
func (c *ImageClient) Generate(ctx context.Context, req models.ImageRequest) (*models.GeneratedImage, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("empty image prompt")
	}
	if c.opts.APIKey == "" {
		return nil, errors.New("image api key not configured")
	}
	style := req.Style
	if style == "" {
		style = c.opts.Style
	}
	prompt := EnhancePrompt(req.Prompt, style)
	width, height := c.opts.Width, c.opts.Height
	if req.Wide {
		height = width / 2
	}

	path, body, err := c.buildRequest(prompt, width, height)
	if err != nil {
		return nil, err
	}

	data, status, err := c.post(ctx, path, body)
	if status == http.StatusTooManyRequests {
		c.logger.Warn("image endpoint rate limited, retrying once", zap.Duration("wait", c.rateLimitWait))
		if err := c.sleep(ctx, c.rateLimitWait); err != nil {
			return nil, err
		}
		data, _, err = c.post(ctx, path, body)
	}
	if err != nil {
		return nil, err
	}

	img, err := c.decode(data)
	if err != nil {
		return nil, err
	}
	img.Prompt = prompt
	return img, nil
}

func (c *ImageClient) buildRequest(prompt string, width, height int) (string, []byte, error) {
	var payload any
	var path string
	switch c.opts.APIStyle {
	case OpenAIImages:
		path = "/images/generations"
		payload = map[string]any{
			"model":           c.opts.Model,
			"prompt":          prompt,
			"n":               1,
			"size":            fmt.Sprintf("%dx%d", width, height),
			"response_format": "b64_json",
		}
	case VeniceImages:
		path = "/image/generate"
		payload = map[string]any{
			"model":          c.opts.Model,
			"prompt":         prompt,
			"width":          width,
			"height":         height,
			"format":         c.opts.Format,
			"safe_mode":      c.opts.SafeMode,
			"hide_watermark": false,
		}
	default:
		return "", nil, fmt.Errorf("unsupported image api style %q", c.opts.APIStyle)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal: %w", err)
	}
	return path, body, nil
}

func (c *ImageClient) post(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.opts.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &models.ModelCallError{
			StatusCode: resp.StatusCode,
			Body:       helpers.Truncate(strings.TrimSpace(string(raw)), maxErrorBody),
		}
	}
	return raw, resp.StatusCode, nil
}

func (c *ImageClient) decode(raw []byte) (*models.GeneratedImage, error) {
	var encoded string
	switch c.opts.APIStyle {
	case OpenAIImages:
		var out struct {
			Data []struct {
				B64JSON string `json:"b64_json"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if len(out.Data) > 0 {
			encoded = out.Data[0].B64JSON
		}
	default:
		var out struct {
			Images []string `json:"images"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if len(out.Images) > 0 {
			encoded = out.Images[0]
		}
	}
	if encoded == "" {
		return nil, errors.New("image response contained no images")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" || strings.HasPrefix(mime, "text/") {
		mime = "image/" + c.opts.Format
		if c.opts.APIStyle == OpenAIImages {
			mime = "image/png"
		}
	}
	return &models.GeneratedImage{Data: data, MimeType: mime}, nil
}
