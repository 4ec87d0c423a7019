package codec

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"
)

// #region mock
type mockPoster struct {
	gotPath   string
	gotParams any
	err       error
}

func (m *mockPoster) Post(_ context.Context, path string, params any, _ any, _ ...option.RequestOption) error {
	m.gotPath = path
	m.gotParams = params
	return m.err
}

// #endregion mock

// #region constructor-tests
func TestNewCodecClientWithService(t *testing.T) {
	c := NewCodecClientWithService(&mockPoster{})
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.svc == nil {
		t.Fatal("expected non-nil internal service")
	}
}

func TestSend_PostsPayloadVerbatim(t *testing.T) {
	m := &mockPoster{}
	c := NewCodecClientWithService(m)
	c.Send(context.Background(), []byte(`{"k":1}`))

	require.Equal(t, "v1/messages", m.gotPath)
	require.Equal(t, []byte(`{"k":1}`), m.gotParams)
}

func TestSend_TransportErrorFromService(t *testing.T) {
	c := NewCodecClientWithService(&mockPoster{err: errors.New("dial tcp: refused")})
	ex := c.Send(context.Background(), []byte(`{}`))
	require.Error(t, ex.Err)
	require.Zero(t, ex.Status)
}

// #endregion constructor-tests

// #region http-tests
func newServer(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("api key header missing")
		}
		in, _ := io.ReadAll(r.Body)
		if !json.Valid(in) {
			t.Errorf("request body is not json: %q", in)
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSend_Success(t *testing.T) {
	body := `{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"BUTTONS: A"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":3}}`
	srv := newServer(t, 200, "application/json", body)

	ex := NewCodecClient("test-key", srv.URL).Send(context.Background(), []byte(`{"model":"m"}`))
	require.NoError(t, ex.Err)
	require.Equal(t, 200, ex.Status)
	require.JSONEq(t, body, string(ex.Body))
}

func TestSend_StructuredError(t *testing.T) {
	body := `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`
	srv := newServer(t, 401, "application/json", body)

	ex := NewCodecClient("test-key", srv.URL).Send(context.Background(), []byte(`{}`))
	require.NoError(t, ex.Err)
	require.Equal(t, 401, ex.Status)

	apiErr, ok := DecodeError(ex.Body)
	require.True(t, ok)
	require.Equal(t, "authentication_error", apiErr.Type)
}

func TestSend_PlainTextError(t *testing.T) {
	srv := newServer(t, 502, "text/html", "<html>bad gateway</html>")

	ex := NewCodecClient("test-key", srv.URL).Send(context.Background(), []byte(`{}`))
	require.NoError(t, ex.Err)
	require.Equal(t, 502, ex.Status)
	_, ok := DecodeError(ex.Body)
	require.False(t, ok)
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ex := NewCodecClient("test-key", url).Send(context.Background(), []byte(`{}`))
	require.Error(t, ex.Err)
	require.Zero(t, ex.Status)
}

func TestSend_Cancelled(t *testing.T) {
	srv := newServer(t, 200, "application/json", `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := NewCodecClient("test-key", srv.URL).Send(ctx, []byte(`{}`))
	require.Error(t, ex.Err)
	require.Zero(t, ex.Status)
}

// #endregion http-tests
