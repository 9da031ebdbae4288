package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/evmkit/node-provider/pkg/ethereum"
)

// headerTransport adds custom headers to requests and respects context
// cancellation.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	if req.Context().Err() != nil {
		return nil, req.Context().Err()
	}

	return t.base.RoundTrip(req)
}

func newHTTPClient(headers map[string]string) *http.Client {
	// No fixed client timeout; contexts control request lifecycle. Trace
	// responses can legitimately stream for a long time.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Transport: &headerTransport{headers: headers, base: transport},
	}
}

// dialFirst selects a transport in fixed priority order: an externally
// injected endpoint always wins when present, then a connectable local IPC
// socket, then the HTTP endpoint. Candidates are attempted strictly in order,
// never raced, and each is verified with a round trip before being accepted.
func dialFirst(ctx context.Context, log logrus.FieldLogger, cfg *ethereum.Config, httpClient *http.Client) (*rpc.Client, string, error) {
	if uri := os.Getenv(ethereum.EnvProviderURI); uri != "" {
		log.WithField("uri", uri).Info("Using externally injected provider endpoint")

		client, err := dialAndVerify(ctx, uri, httpClient)
		if err != nil {
			return nil, "", classifyDialError(uri, err)
		}

		return client, uri, nil
	}

	if cfg.IPCPath != "" {
		if _, err := os.Stat(cfg.IPCPath); err == nil {
			client, err := dialAndVerify(ctx, cfg.IPCPath, httpClient)
			if err == nil {
				return client, cfg.IPCPath, nil
			}

			log.WithError(err).WithField("ipc", cfg.IPCPath).Debug("IPC socket exists but is not connectable")
		}
	}

	client, err := dialAndVerify(ctx, cfg.URI, httpClient)
	if err != nil {
		return nil, "", classifyDialError(cfg.CleanURI(), err)
	}

	return client, cfg.URI, nil
}

// dialAndVerify dials an endpoint and proves it with a cheap request: HTTP
// dialing is lazy, so a dial alone says nothing about whether anything is
// listening.
func dialAndVerify(ctx context.Context, endpoint string, httpClient *http.Client) (*rpc.Client, error) {
	var (
		client *rpc.Client
		err    error
	)

	if isIPCEndpoint(endpoint) {
		client, err = rpc.DialIPC(ctx, endpoint)
	} else {
		client, err = rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	}

	if err != nil {
		return nil, err
	}

	var version string
	if err := client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		client.Close()

		return nil, err
	}

	return client, nil
}

func isIPCEndpoint(endpoint string) bool {
	return len(endpoint) > 0 && (endpoint[0] == '/' || endpoint[0] == '.' || endpoint[0] == '\\')
}

// classifyDialError distinguishes "no process listening" from "DNS/network
// unreachable" so callers can decide whether self-starting a node makes sense.
func classifyDialError(endpoint string, err error) *ethereum.ConnectionError {
	kind := ethereum.ConnRefused

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		kind = ethereum.ConnUnreachable
	}

	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		kind = ethereum.ConnUnreachable
	}

	return &ethereum.ConnectionError{
		Endpoint: endpoint,
		Kind:     kind,
		Err:      fmt.Errorf("dial failed: %w", err),
	}
}
