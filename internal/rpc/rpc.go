package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
)

// APIPrefix is the route group of the keeper server.
const APIPrefix = "/grid/api/v1"

// HTTPConfig describes how to reach a running keeper server
type HTTPConfig struct {
	Network string        // unix or tcp
	Address string        // socket path or host:port
	Timeout time.Duration // per request, 0 waits until the context ends
	BaseURL string
}

/**
 * Client configuration for the server described by cfg
 * @param {config.ServerConfig} cfg - Server section of the configuration
 * @returns {*HTTPConfig} Unix socket when the socket file exists, TCP address otherwise
 */
func ConfigFromServer(cfg config.ServerConfig) *HTTPConfig {
	c := &HTTPConfig{
		Network: "tcp",
		Address: cfg.Address,
		Timeout: 10 * time.Second,
		BaseURL: "http://localhost",
	}
	if cfg.Socket != "" {
		if _, err := os.Stat(cfg.Socket); err == nil {
			c.Network = "unix"
			c.Address = cfg.Socket
		}
	}
	if c.Network == "tcp" {
		c.BaseURL = "http://" + cfg.Address
	}
	return c
}

// HTTPResponse is a fully read server response
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Error      string
}

// Decode unmarshals the JSON body into v.
func (r *HTTPResponse) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response (status %d): %w", r.StatusCode, err)
	}
	return nil
}

func buildURL(baseURL, path string, params map[string]interface{}) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		q := u.Query()
		for key, value := range params {
			q.Set(key, fmt.Sprint(value))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func serializeData(data interface{}) (io.Reader, error) {
	if data == nil {
		return nil, nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data: %w", err)
	}
	return bytes.NewReader(jsonData), nil
}

// deserializeResponse reads the body and extracts the error message of non-2xx replies.
func deserializeResponse(resp *http.Response) (*HTTPResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	httpResp := &HTTPResponse{StatusCode: resp.StatusCode, Body: body}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return httpResp, nil
	}
	var errBody models.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
		httpResp.Error = errBody.Error
	} else {
		httpResp.Error = resp.Status
	}
	return httpResp, nil
}
