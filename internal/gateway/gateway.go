package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// StatusOK is the backend's in-payload success marker.
const StatusOK = "OK"

// Envelope is the uniform response wrapper every endpoint shares: a status
// string, an optional human-readable info message, and the raw body for
// endpoint-specific decoding.
type Envelope struct {
	Status string `json:"status"`
	Info   string `json:"info"`

	raw []byte
}

// OK reports whether the backend declared the operation successful. Callers
// must check this before treating a resolved call as a success; transport
// success alone means nothing here.
func (e *Envelope) OK() bool {
	return e.Status == StatusOK
}

// Raw returns the unparsed response body.
func (e *Envelope) Raw() []byte {
	return e.raw
}

// DecodeInto unmarshals the response body into v.
func (e *Envelope) DecodeInto(v any) error {
	if err := json.Unmarshal(e.raw, v); err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}
	return nil
}

// BusinessErr converts a non-OK envelope into a typed error.
func (e *Envelope) BusinessErr() *BusinessError {
	return &BusinessError{Status: e.Status, Message: e.Info}
}

// Gateway issues multipart/form-encoded requests against the configured base
// URL and classifies outcomes: no response is a NetworkError, a 401 is an
// UnauthorizedError, anything else resolves to an Envelope the caller
// inspects.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	notifier   func(msg string)
}

// New creates a gateway for the given base URL. timeout <= 0 selects the
// 30 second default.
func New(baseURL string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetNotifier registers a hook invoked with the payload's info message when
// one is present. It is a UI affordance, not part of the request contract.
func (g *Gateway) SetNotifier(fn func(msg string)) {
	g.notifier = fn
}

// PostForm posts fields as multipart/form-data to path.
func (g *Gateway) PostForm(ctx context.Context, path string, fields map[string]string) (*Envelope, error) {
	return g.post(ctx, path, fields, "", "", nil)
}

// PostFormFile posts fields plus a single file part to path.
func (g *Gateway) PostFormFile(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader) (*Envelope, error) {
	return g.post(ctx, path, fields, fileField, filename, file)
}

func (g *Gateway) post(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader) (*Envelope, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to encode form field %q: %w", name, err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile(fileField, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("failed to encode file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form body: %w", err)
	}

	url := g.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &UnauthorizedError{Path: path}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	env := &Envelope{raw: raw}
	if err := json.Unmarshal(raw, env); err != nil {
		// Not an envelope-shaped body. Resolve anyway; OK() stays false
		// and the caller reports it as a business-level failure.
		log.Debug().Str("path", path).Msg("Response body is not a status envelope")
	}

	if env.Info != "" && g.notifier != nil {
		g.notifier(env.Info)
	}

	return env, nil
}
