package transcriber

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// TracedClient is an http.Client that records per-phase timings for every
// request it sends.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient(timeout time.Duration) *TracedClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 4
	transport.MaxIdleConnsPerHost = 4
	return &TracedClient{client: &http.Client{Timeout: timeout, Transport: transport}}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseTimer fills NetworkMetrics from httptrace callbacks. Each phase is
// measured from the end of the one before it.
type phaseTimer struct {
	m     *NetworkMetrics
	start time.Time
	marks struct {
		getConn, dns, connect, tls      time.Time
		gotConn, headers, sent, firstRx time.Time
	}
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{m: &NetworkMetrics{}, start: time.Now()}
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	mk := &p.marks
	return &httptrace.ClientTrace{
		GetConn: func(string) { mk.getConn = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			mk.gotConn = time.Now()
			p.m.ConnWait = mk.gotConn.Sub(mk.getConn)
			p.m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { mk.dns = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { p.m.DNS = time.Since(mk.dns) },
		ConnectStart:      func(string, string) { mk.connect = time.Now() },
		ConnectDone:       func(string, string, error) { p.m.TCP = time.Since(mk.connect) },
		TLSHandshakeStart: func() { mk.tls = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			p.m.TLS = time.Since(mk.tls)
			p.m.TLSProtocol = state.NegotiatedProtocol
		},
		WroteHeaders: func() {
			mk.headers = time.Now()
			p.m.ReqHeaders = mk.headers.Sub(mk.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			mk.sent = time.Now()
			p.m.ReqBody = mk.sent.Sub(mk.headers)
		},
		GotFirstResponseByte: func() {
			mk.firstRx = time.Now()
			p.m.TTFB = mk.firstRx.Sub(mk.sent)
		},
	}
}

func (p *phaseTimer) finish() *NetworkMetrics {
	if !p.marks.firstRx.IsZero() {
		p.m.Download = time.Since(p.marks.firstRx)
	}
	p.m.Total = time.Since(p.start)
	return p.m
}

// Do sends req and reads the whole body.
func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	timer := newPhaseTimer()
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), timer.trace()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    timer.finish(),
	}, nil
}

// Get issues a plain GET, used for health probes.
func (c *TracedClient) Get(ctx context.Context, url string) (*TracedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// WarmConnection sends a HEAD to url so the first upload reuses an open
// connection. Any HTTP status counts as reachable. The returned metrics
// carry the handshake timings.
func (c *TracedClient) WarmConnection(ctx context.Context, url string) (*NetworkMetrics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unreachable: %w", err)
	}
	return resp.Metrics, nil
}
