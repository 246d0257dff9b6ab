// Remote product search adapter.
//
// Information Hiding:
// - Vendor endpoint, query parameters and auth headers
// - Response envelope shape and per-call dedup
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stylerush/stylerush/internal/async"
	"github.com/stylerush/stylerush/model"
)

const remoteSearchTimeout = 15 * time.Second

// RemoteSearcher queries an external product search API. Calls against
// it are budgeted per run by the gathering phase; the adapter itself is
// stateless.
type RemoteSearcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteSearcher creates a remote search adapter for the given API
// base URL and key.
func NewRemoteSearcher(baseURL, apiKey string) *RemoteSearcher {
	return &RemoteSearcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: remoteSearchTimeout,
		},
	}
}

// remoteEnvelope is the vendor's response shape.
type remoteEnvelope struct {
	Data struct {
		Products []struct {
			ASIN  string `json:"asin"`
			Title string `json:"product_title"`
			Photo string `json:"product_photo"`
		} `json:"products"`
	} `json:"data"`
}

// Search runs one keyworded search against the remote catalog.
// Results are deduplicated by product identity within the call, and an
// empty result set is returned (not an error) when nothing matches.
func (r *RemoteSearcher) Search(ctx context.Context, query string, category model.Category) ([]model.Product, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("country", "US")
	params.Set("sort_by", "RELEVANCE")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("remote search request: %w", err)
	}
	req.Header.Set("x-api-key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("remote search: unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, async.Permanent(err)
		}
		return nil, err
	}

	var envelope remoteEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("remote search: decoding response: %w", err)
	}

	seen := make(map[string]bool)
	var products []model.Product
	for _, p := range envelope.Data.Products {
		if p.ASIN == "" || p.Title == "" || p.Photo == "" || seen[p.ASIN] {
			continue
		}
		seen[p.ASIN] = true
		products = append(products, model.Product{
			ID:       p.ASIN,
			Title:    p.Title,
			Image:    p.Photo,
			Category: category,
			Provider: model.SourceRemote,
		})
	}
	return products, nil
}

// Verify RemoteSearcher implements Searcher
var _ Searcher = (*RemoteSearcher)(nil)
