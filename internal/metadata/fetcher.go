// Package metadata fetches off-chain NFT metadata documents.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"holder-roles/internal/domain"
)

// DefaultTimeout bounds a single metadata fetch.
const DefaultTimeout = 60 * time.Second

// maxDocumentSize caps the metadata body read into memory.
const maxDocumentSize = 1 << 20

// HTTPFetcher fetches metadata JSON over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// Option configures HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// NewHTTPFetcher creates a new metadata fetcher.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// document is the subset of the Metaplex JSON standard we read.
type document struct {
	Attributes []struct {
		TraitType json.RawMessage `json:"trait_type"`
		Value     json.RawMessage `json:"value"`
	} `json:"attributes"`
}

// Fetch returns the attributes listed in the metadata document at uri.
// A document without attributes yields an empty list.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]domain.Attribute, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	attrs := make([]domain.Attribute, 0, len(doc.Attributes))
	for _, a := range doc.Attributes {
		attrs = append(attrs, domain.Attribute{
			TraitType: text(a.TraitType),
			Value:     text(a.Value),
		})
	}
	return attrs, nil
}

// text renders a JSON scalar as a string. Strings are unquoted; anything else
// keeps its compact JSON form.
func text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if buf.String() == "null" {
		return ""
	}
	return buf.String()
}
