package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/countygov/terrasync/internal/apperrors"
)

// APISource extracts records from an HTTP GET endpoint returning a JSON
// array, retried with bounded exponential backoff the same way the storage
// layer retries transient server errors. Config key: "url".
type APISource struct {
	Client *http.Client
}

func (a APISource) Extract(ctx context.Context, config map[string]any) ([]map[string]any, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return fixtureRecords(), nil
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}

	var records []map[string]any
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(apperrors.Wrap(err, "build request for %q", url))
		}
		resp, err := client.Do(req)
		if err != nil {
			return apperrors.Wrap(err, "request %q", url)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return apperrors.Wrap(apperrors.ErrExternalService, "server error %d from %q", resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(apperrors.Wrap(apperrors.ErrExternalService, "unexpected status %d from %q", resp.StatusCode, url))
		}
		return json.NewDecoder(resp.Body).Decode(&records)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return records, nil
}
