package codec

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// #region types
// Exchange is the raw outcome of one POST: a status and body, or a
// transport failure. Classification happens upstream.
type Exchange struct {
	Status  int // 0 when no response arrived
	Body    []byte
	Err     error // transport failure; nil whenever a response arrived
	Latency time.Duration
}

// Poster is the slice of the SDK client the codec needs.
type Poster interface {
	Post(ctx context.Context, path string, params any, res any, opts ...option.RequestOption) error
}

// Transport sends one encoded payload.
type Transport interface {
	Send(ctx context.Context, payload []byte) Exchange
}

// #endregion types

// #region client-struct
// CodecClient posts raw message payloads through the Anthropic SDK.
type CodecClient struct {
	svc  Poster
	path string
}

// #endregion client-struct

// #region constructor
// NewCodecClient builds an SDK client for apiKey. baseURL may be empty.
// SDK retries are disabled; backoff is owned by the request lifecycle.
func NewCodecClient(apiKey, baseURL string) *CodecClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &CodecClient{svc: &client, path: "v1/messages"}
}

// NewCodecClientWithService creates a CodecClient with an injected poster.
// Used for testing without the network.
func NewCodecClientWithService(svc Poster) *CodecClient {
	return &CodecClient{svc: svc, path: "v1/messages"}
}

// #endregion constructor

// #region send
// Send posts payload as-is and captures status and body. API errors come back
// as a populated Exchange, not as Err.
func (c *CodecClient) Send(ctx context.Context, payload []byte) Exchange {
	start := time.Now()
	var raw []byte
	var resp *http.Response

	err := c.svc.Post(ctx, c.path, payload, &raw, option.WithResponseInto(&resp))
	ex := Exchange{Latency: time.Since(start)}
	if resp != nil {
		ex.Status = resp.StatusCode
	}

	var apiErr *anthropic.Error
	switch {
	case err == nil:
		ex.Body = raw
	case errors.As(err, &apiErr):
		ex.Status = apiErr.StatusCode
		ex.Body = []byte(apiErr.RawJSON())
	case resp != nil && resp.StatusCode >= 400:
		// error body that is not JSON; the SDK leaves it buffered on the response
		if resp.Body != nil {
			ex.Body, _ = io.ReadAll(resp.Body)
		}
	default:
		ex.Status = 0
		ex.Err = err
	}
	return ex
}

// #endregion send
