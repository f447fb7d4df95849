package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"grid-keeper/internal/logger"

	"github.com/hashicorp/go-retryablehttp"
)

// partSuffix marks a download in progress; only complete files carry the canonical name
const partSuffix = ".part"

type Downloader struct {
	client *retryablehttp.Client
}

/**
 * Create a downloader with retry support
 * @param {int} retries - Retries after the first attempt on transport errors and 5xx
 * @param {time.Duration} timeout - Per attempt timeout including the body, 0 disables
 */
func NewDownloader(retries int, timeout time.Duration) *Downloader {
	client := retryablehttp.NewClient()
	if retries < 0 {
		retries = 0
	}
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 10 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = retryLogger{}
	return &Downloader{client: client}
}

/**
 * Fetch a file from the server into savePath
 * @param {context.Context} ctx - Cancels the request and the body copy
 * @param {string} urlStr - Artifact URL
 * @param {string} savePath - Final location of the file
 * @returns {error} Returns error on transport failure, non-2xx status or write failure
 * @description
 * - Writes to savePath + ".part" and renames on completion
 * - A failed or interrupted transfer removes the partial file
 */
func (d *Downloader) GetFile(ctx context.Context, urlStr string, savePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fmt.Errorf("GetFile('%s') failed: %w", urlStr, err)
	}
	rsp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("GetFile('%s') failed: %w", urlStr, err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		rspBody, _ := io.ReadAll(io.LimitReader(rsp.Body, 512))
		return fmt.Errorf("GetFile('%s') code: %d, error: %s", urlStr, rsp.StatusCode, string(rspBody))
	}

	if err = os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return fmt.Errorf("GetFile('%s'): MkdirAll('%s') error: %w", urlStr, savePath, err)
	}
	tmpPath := savePath + partSuffix
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("GetFile('%s'): create('%s') error: %w", urlStr, tmpPath, err)
	}
	n, copyErr := io.Copy(out, rsp.Body)
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("GetFile('%s'): copy error: %w", urlStr, copyErr)
	}
	if err := os.Rename(tmpPath, savePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("GetFile('%s'): rename error: %w", urlStr, err)
	}
	logger.Debugf("Downloaded %d bytes from '%s' to '%s'", n, urlStr, savePath)
	return nil
}

// retryLogger routes retryablehttp's leveled output to the keeper log
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { logger.Errorf("%s %v", msg, kv) }
func (retryLogger) Warn(msg string, kv ...interface{})  { logger.Warnf("%s %v", msg, kv) }
func (retryLogger) Info(msg string, kv ...interface{})  { logger.Debugf("%s %v", msg, kv) }
func (retryLogger) Debug(msg string, kv ...interface{}) { logger.Debugf("%s %v", msg, kv) }
