// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

func testConfig(endpoint string) RequestConfig {
	return RequestConfig{
		Endpoint:    endpoint,
		APIKey:      "sk-test-key",
		Model:       "deepseek-chat",
		VerifyTLS:   true,
		Temperature: DefaultTemperature,
	}
}

func testMessages() []model.Message {
	return []model.Message{
		model.NewSystemMessage("be brief"),
		model.NewUserMessage("hi"),
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"1","model":"deepseek-chat","choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

// =============================================================================
// REQUEST FORMAT TESTS
// =============================================================================

func TestComplete_RequestFormat(t *testing.T) {
	var (
		gotAuth   string
		gotType   string
		gotMethod string
		gotBody   ChatRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeCompletion(w, "hi")
	}))
	defer server.Close()

	content, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
	require.NoError(t, err)
	assert.Equal(t, "hi", content)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer sk-test-key", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "deepseek-chat", gotBody.Model)
	assert.InDelta(t, 0.7, gotBody.Temperature, 1e-9)
	assert.Equal(t, 2000, gotBody.MaxTokens)
	assert.Equal(t, []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, gotBody.Messages)
}

func TestComplete_BodyHasOnlyWireFields(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	_, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"model", "messages", "temperature", "max_tokens"}, keys(raw))
	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.ElementsMatch(t, []string{"role", "content"}, keys(first))
}

func TestComplete_ZeroTemperatureSent(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Temperature = 0
	_, err := NewClient().Complete(context.Background(), cfg, testMessages())
	require.NoError(t, err)

	require.Contains(t, raw, "temperature")
	assert.Equal(t, 0.0, raw["temperature"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestComplete_NoChoicesReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"1","choices":[]}`)
	}))
	defer server.Close()

	content, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
	require.NoError(t, err)
	assert.Empty(t, content)
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "not found")
	}))
	defer server.Close()

	_, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Body)
	assert.Equal(t, "API error: 404 - not found", Describe(err))
	assert.Equal(t, KindAPI, KindOf(err))
}

func TestComplete_MalformedJSONIsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer server.Close()

	_, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
	require.Error(t, err)

	var unknown *UnknownError
	assert.ErrorAs(t, err, &unknown)
	assert.True(t, strings.HasPrefix(Describe(err), "Error: "))
}

func TestComplete_ConnectTimeout(t *testing.T) {
	blockingDial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	cfg := testConfig("http://api.invalid/v1/chat/completions")
	cfg.ConnectTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewClient(WithDialer(blockingDial)).Complete(context.Background(), cfg, testMessages())
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, PhaseConnect, timeoutErr.Phase)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, Describe(err), "connect timeout")
}

func TestComplete_ReadTimeoutWaitingForHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.ReadTimeout = 50 * time.Millisecond

	_, err := NewClient().Complete(context.Background(), cfg, testMessages())
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, PhaseRead, timeoutErr.Phase)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestComplete_ReadTimeoutStalledBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"choices":[`)
		w.(http.Flusher).Flush()
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.ReadTimeout = 100 * time.Millisecond

	_, err := NewClient().Complete(context.Background(), cfg, testMessages())
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, PhaseRead, timeoutErr.Phase)
}

func TestComplete_RefusedConnectionIsUnknown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient().Complete(context.Background(), testConfig("http://"+addr), testMessages())
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

// =============================================================================
// TLS AND PROXY TESTS
// =============================================================================

func TestComplete_TLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "secure")
	}))
	defer server.Close()

	t.Run("verify on rejects self-signed", func(t *testing.T) {
		_, err := NewClient().Complete(context.Background(), testConfig(server.URL), testMessages())
		require.Error(t, err)
		assert.Equal(t, KindUnknown, KindOf(err))
	})

	t.Run("verify off accepts self-signed", func(t *testing.T) {
		cfg := testConfig(server.URL)
		cfg.VerifyTLS = false
		content, err := NewClient().Complete(context.Background(), cfg, testMessages())
		require.NoError(t, err)
		assert.Equal(t, "secure", content)
	})
}

func TestComplete_Proxy(t *testing.T) {
	var proxied atomic.Bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A forward proxy sees the absolute target URL.
		if r.URL.Host == "upstream.invalid" {
			proxied.Store(true)
		}
		writeCompletion(w, "via proxy")
	}))
	defer proxy.Close()

	cfg := testConfig("http://upstream.invalid/v1/chat/completions")
	cfg.Proxy = ProxyConfig{Enabled: true, URL: proxy.URL}

	content, err := NewClient().Complete(context.Background(), cfg, testMessages())
	require.NoError(t, err)
	assert.Equal(t, "via proxy", content)
	assert.True(t, proxied.Load())
}

func TestComplete_DisabledProxyIgnoresEnvironment(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:1")
	t.Setenv("http_proxy", "http://127.0.0.1:1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "direct")
	}))
	defer server.Close()

	// httptest listens on loopback, which env proxies skip anyway; point the
	// request at a non-loopback name that dials the test server instead.
	u, _ := url.Parse(server.URL)
	dial := func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, u.Host)
	}

	content, err := NewClient(WithDialer(dial)).Complete(context.Background(), testConfig("http://api.example.test/v1"), testMessages())
	require.NoError(t, err)
	assert.Equal(t, "direct", content)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestRequestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RequestConfig)
		wantErr error
	}{
		{"valid", func(*RequestConfig) {}, nil},
		{"missing key", func(c *RequestConfig) { c.APIKey = "  " }, ErrMissingAPIKey},
		{"missing endpoint", func(c *RequestConfig) { c.Endpoint = "" }, ErrMissingEndpoint},
		{"bad endpoint", func(c *RequestConfig) { c.Endpoint = "ftp://x" }, ErrInvalidURL},
		{"proxy without url", func(c *RequestConfig) { c.Proxy.Enabled = true }, ErrMissingProxyURL},
		{"proxy url ignored when disabled", func(c *RequestConfig) { c.Proxy.URL = "::bad" }, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("https://api.deepseek.com/v1/chat/completions")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestComplete_ValidationSendsNothing(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = ""
	_, err := NewClient().Complete(context.Background(), cfg, testMessages())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, hits.Load())
}

func TestKeyFingerprint(t *testing.T) {
	cfg := testConfig("")
	fp := cfg.KeyFingerprint()
	assert.Len(t, fp, 8)
	assert.NotContains(t, fp, "sk-")
	assert.Equal(t, "none", RequestConfig{}.KeyFingerprint())
}

func TestComplete_LogsNeverContainKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := logging.New(&buf, log.DebugLevel)

	_, err := NewClient(WithLogger(logger)).Complete(context.Background(), testConfig(server.URL), testMessages())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "API request")
	assert.NotContains(t, buf.String(), "sk-test-key")
}

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestDispatch_DeliversExactlyOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "hello")
	}))
	defer server.Close()

	ch := NewClient().Dispatch(testConfig(server.URL), testMessages())

	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "hello", res.Content)
	assert.Positive(t, res.Elapsed)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after one result")
}

func TestDispatch_SnapshotsMessages(t *testing.T) {
	got := make(chan string, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		got <- req.Messages[1].Content
		<-release
		writeCompletion(w, "ok")
	}))
	defer server.Close()

	msgs := testMessages()
	ch := NewClient().Dispatch(testConfig(server.URL), msgs)
	msgs[1].Content = "mutated"

	assert.Equal(t, "hi", <-got)
	close(release)
	<-ch
}

func TestDispatch_ErrorResult(t *testing.T) {
	cfg := testConfig("")
	res := <-NewClient().Dispatch(cfg, testMessages())
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, ErrMissingEndpoint))
	assert.Empty(t, res.Content)
}
