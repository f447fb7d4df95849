package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"grid-keeper/internal/logger"
)

// HTTPClient talks to a running keeper server
type HTTPClient interface {
	Get(ctx context.Context, path string, params map[string]interface{}) (*HTTPResponse, error)
	Post(ctx context.Context, path string, data interface{}) (*HTTPResponse, error)
	Close() error
}

type httpClient struct {
	config    *HTTPConfig
	client    *http.Client
	transport *http.Transport
}

/**
 * Create new HTTP client for the keeper server
 * @param {*HTTPConfig} config - Where the server listens
 * @returns {HTTPClient} HTTP client interface
 * @description
 * - Unix socket configs dial the socket whatever host the URL names
 * @example
 * client := rpc.NewHTTPClient(rpc.ConfigFromServer(cfg.Server))
 * defer client.Close()
 * rsp, err := client.Get(ctx, rpc.APIPrefix+"/services", nil)
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	transport := &http.Transport{}
	if config.Network == "unix" {
		socket := config.Address
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		}
	}
	return &httpClient{
		config:    config,
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

func (c *httpClient) Get(ctx context.Context, path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *httpClient) Post(ctx context.Context, path string, data interface{}) (*HTTPResponse, error) {
	return c.do(ctx, http.MethodPost, path, nil, data)
}

func (c *httpClient) do(ctx context.Context, method, path string, params map[string]interface{}, data interface{}) (*HTTPResponse, error) {
	url, err := buildURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, err
	}
	body, err := serializeData(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	logger.Debugf("Sending %s request to %s via %s://%s", method, url, c.config.Network, c.config.Address)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keeper server at %s://%s unreachable: %w", c.config.Network, c.config.Address, err)
	}
	return deserializeResponse(resp)
}

func (c *httpClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
