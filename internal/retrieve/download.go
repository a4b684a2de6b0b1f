// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDownloadTimeout bounds a single PDF download.
const DefaultDownloadTimeout = 30 * time.Second

// ErrNotPDF is returned when a download does not declare a PDF content type.
var ErrNotPDF = errors.New("not a valid PDF file")

// HTTPDownloader fetches PDFs over HTTP.
type HTTPDownloader struct {
	Client    *http.Client
	UserAgent string
	// Timeout bounds each download; zero uses DefaultDownloadTimeout.
	Timeout time.Duration
}

// Download fetches url to destPath. The response must be HTTP 200 and
// declare a PDF content type. The body is written to a temporary file in the
// destination directory and renamed over destPath on success, so a failed
// download never leaves a partial file and an existing file is replaced.
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(strings.ToLower(ct), "pdf") {
		return fmt.Errorf("%w: content type %q", ErrNotPDF, ct)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
