package transcriber

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// TracedClient is a keep-alive HTTP client that records per-request
// network timings. It serves both the hand-built provider requests (Do)
// and go-openai, which only needs the http.Client-style Do below when the
// request context carries a metrics sink.
type TracedClient struct {
	client  *http.Client
	warmURL string
}

func NewTracedClient(warmURL string) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		warmURL: warmURL,
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

type metricsKey struct{}

// withMetrics makes requests sent with ctx record into m.
func withMetrics(ctx context.Context, m *NetworkMetrics) context.Context {
	return context.WithValue(ctx, metricsKey{}, m)
}

// trace attaches an httptrace to req. The returned done func stamps the
// download and total times once the body has been read. The transport
// fires hooks from its read and write loops, so all state sits behind mu.
func trace(req *http.Request, m *NetworkMetrics) (*http.Request, func()) {
	var mu sync.Mutex
	var getConnStart, dnsStart, tcpStart, tlsStart time.Time
	var gotConn, wroteHeaders, wroteRequest, firstByte time.Time
	locked := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	ct := &httptrace.ClientTrace{
		GetConn: func(_ string) { locked(func() { getConnStart = time.Now() }) },
		GotConn: func(info httptrace.GotConnInfo) {
			locked(func() {
				gotConn = time.Now()
				m.ConnWait = gotConn.Sub(getConnStart)
				m.ConnReused = info.Reused
			})
		},
		DNSStart:          func(_ httptrace.DNSStartInfo) { locked(func() { dnsStart = time.Now() }) },
		DNSDone:           func(_ httptrace.DNSDoneInfo) { locked(func() { m.DNS = time.Since(dnsStart) }) },
		ConnectStart:      func(_, _ string) { locked(func() { tcpStart = time.Now() }) },
		ConnectDone:       func(_, _ string, _ error) { locked(func() { m.TCP = time.Since(tcpStart) }) },
		TLSHandshakeStart: func() { locked(func() { tlsStart = time.Now() }) },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			locked(func() {
				m.TLS = time.Since(tlsStart)
				m.TLSProtocol = state.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			locked(func() {
				wroteHeaders = time.Now()
				m.ReqHeaders = wroteHeaders.Sub(gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			locked(func() {
				wroteRequest = time.Now()
				m.ReqBody = wroteRequest.Sub(wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			locked(func() {
				firstByte = time.Now()
				m.TTFB = firstByte.Sub(wroteRequest)
			})
		},
	}

	start := time.Now()
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), ct))
	return req, func() {
		locked(func() {
			if !firstByte.IsZero() {
				m.Download = time.Since(firstByte)
			}
			m.Total = time.Since(start)
		})
	}
}

// Do sends req and reads the whole response body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	m := &NetworkMetrics{}
	req, done := trace(req, m)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	done()

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    m,
	}, nil
}

// streamingDoer adapts TracedClient to go-openai's HTTPDoer. Timings go to
// the sink in the request context; Download is left zero because the
// body is read by the caller.
type streamingDoer struct{ c *TracedClient }

func (d streamingDoer) Do(req *http.Request) (*http.Response, error) {
	m, _ := req.Context().Value(metricsKey{}).(*NetworkMetrics)
	if m == nil {
		return d.c.client.Do(req)
	}
	req, done := trace(req, m)
	resp, err := d.c.client.Do(req)
	done()
	return resp, err
}

// Warm opens a connection ahead of the first phrase so the TLS handshake
// is not paid on the user's first recognition.
func (c *TracedClient) Warm() time.Duration {
	if c.warmURL == "" {
		return 0
	}
	m := &NetworkMetrics{}
	req, err := http.NewRequest(http.MethodHead, c.warmURL, nil)
	if err != nil {
		return 0
	}
	req, _ = trace(req, m)
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return m.TLS
}
