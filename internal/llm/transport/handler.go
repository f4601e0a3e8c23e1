package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrEmptyContent is returned when a provider answers 200 with no text.
var ErrEmptyContent = errors.New("provider returned empty content")

// Router selects the provider adapter for a request.
type Router interface {
	Pick(provider, model string) (ProviderAdapter, error)
}

// ProviderAdapter converts between the normalized request/response and one
// provider's HTTP API.
type ProviderAdapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes model requests. Middleware wraps a Handler to add
// caching, rate limiting, retries and logging.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. The first
// middleware is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs provider HTTP calls.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// Handle implements Handler by calling the routed provider.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			slog.Default().Debug("closing response body", "provider", adapter.Name(), "error", closeErr)
		}
	}()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = latency.Milliseconds()

	if resp.Content == "" {
		return nil, fmt.Errorf("%s/%s: %w", req.Provider, req.Model, ErrEmptyContent)
	}
	return resp, nil
}
