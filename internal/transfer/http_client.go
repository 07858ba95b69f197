package transfer

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
)

// DownloadClient fetches image bytes from Bling CDN hosts. Those hosts are
// browser-facing, so requests carry browser-like headers, and the transport
// can optionally present a Chrome TLS fingerprint (PICMIGRATE_UTLS=1).
type DownloadClient struct {
	client     *http.Client
	userAgents []string
	langs      []string
	rng        *rand.Rand
	mu         sync.Mutex
	defaultUA  string
}

// NewDownloadClient creates a download client with a 30s request timeout.
func NewDownloadClient() *DownloadClient {
	useUTLS := strings.TrimSpace(os.Getenv("PICMIGRATE_UTLS")) == "1"
	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: newTransport(useUTLS),
	}

	return &DownloadClient{
		client: client,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		langs:     []string{"pt-BR,pt;q=0.9,en;q=0.8", "en-US,en;q=0.9"},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		defaultUA: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Get fetches a URL with browser-like headers.
func (dc *DownloadClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return dc.Do(req)
}

// Do executes a request after applying default headers.
func (dc *DownloadClient) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	dc.applyHeaders(req)
	return dc.client.Do(req)
}

func (dc *DownloadClient) applyHeaders(req *http.Request) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	ua := dc.defaultUA
	lang := dc.langs[0]
	if len(dc.userAgents) > 0 {
		ua = dc.userAgents[dc.rng.Intn(len(dc.userAgents))]
	}
	if len(dc.langs) > 0 {
		lang = dc.langs[dc.rng.Intn(len(dc.langs))]
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", lang)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	}
}

func newTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"h2", "http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
