// Package source obtains provider byte streams for one ingestion run:
// local files and HTTPS endpoints. Transport failures are fatal for the
// run; there is no later retry stage in the core.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Open returns the byte stream for an input argument: an http(s) URL or a
// local file path. The caller closes the stream.
func Open(ctx context.Context, client *http.Client, logger *slog.Logger, input string) (io.ReadCloser, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return fetch(ctx, client, logger, input)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	logger.Info("reading local file", "path", input)
	return f, nil
}

func fetch(ctx context.Context, client *http.Client, logger *slog.Logger, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	logger.Info("fetching remote file", "url", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// ECDatamartURL constructs the Environment Canada datamart URL for an
// observation file.
//
//	freq:     "daily" or "hourly"
//	province: two-letter province code
//	language: "e" (english) or "f" (french)
//	t:        observation time the file covers
func ECDatamartURL(freq, province, language string, t time.Time) string {
	layout := "20060102"
	if freq == "hourly" {
		layout = "2006010215"
	}
	name := freq
	if freq == "daily" {
		name = "yesterday"
	}
	fname := fmt.Sprintf("%s_%s_%s_%s.xml",
		name, strings.ToLower(province), t.Format(layout), language)
	return fmt.Sprintf("http://dd.weatheroffice.ec.gc.ca/observations/xml/%s/%s/%s",
		strings.ToUpper(province), name, fname)
}
