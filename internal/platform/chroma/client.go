package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxErrorBodyBytes = 1024

type Config struct {
	URL     string
	APIPath string
	Timeout time.Duration
}

// Client speaks the Chroma REST API. Collections are addressed by name and
// resolved to ids with get_or_create, so callers never create them explicitly.
type Client struct {
	baseURL string
	http    *http.Client

	mu  sync.RWMutex
	ids map[string]string
}

type Collection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
	Document  string
}

type Match struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chroma %s: http status=%d body=%q", e.Op, e.StatusCode, e.Body)
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Client {
	apiPath := "/" + strings.Trim(cfg.APIPath, "/")
	if apiPath == "/" {
		apiPath = ""
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/") + apiPath,
		http:    httpClient,
		ids:     make(map[string]string),
	}
}

func (c *Client) Heartbeat(ctx context.Context) error {
	return c.doJSON(ctx, "heartbeat", http.MethodGet, "/heartbeat", nil, nil)
}

func (c *Client) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	var out Collection
	in := map[string]any{
		"name":          name,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	if err := c.doJSON(ctx, "get_or_create_collection", http.MethodPost, "/collections", in, &out); err != nil {
		return Collection{}, err
	}
	if out.ID == "" {
		return Collection{}, fmt.Errorf("chroma get_or_create_collection: empty id for %q", name)
	}

	c.mu.Lock()
	c.ids[name] = out.ID
	c.mu.Unlock()
	return out, nil
}

func (c *Client) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	in := struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float32      `json:"embeddings"`
		Metadatas  []map[string]any `json:"metadatas"`
		Documents  []string         `json:"documents"`
	}{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
		Documents:  make([]string, len(records)),
	}
	for i, r := range records {
		in.IDs[i] = r.ID
		in.Embeddings[i] = r.Embedding
		in.Metadatas[i] = r.Metadata
		in.Documents[i] = r.Document
	}
	return c.doJSON(ctx, "upsert", http.MethodPost, collectionPath(id, "upsert"), in, nil)
}

// Query returns the n nearest records to embedding, optionally restricted by a where filter.
func (c *Client) Query(ctx context.Context, collection string, embedding []float32, n int, where map[string]any) ([]Match, error) {
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	in := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        n,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		in["where"] = where
	}

	var out struct {
		IDs       [][]string         `json:"ids"`
		Documents [][]*string        `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	if err := c.doJSON(ctx, "query", http.MethodPost, collectionPath(id, "query"), in, &out); err != nil {
		return nil, err
	}
	if len(out.IDs) == 0 {
		return nil, nil
	}

	matches := make([]Match, len(out.IDs[0]))
	for i, recordID := range out.IDs[0] {
		matches[i].ID = recordID
		if len(out.Documents) > 0 && i < len(out.Documents[0]) && out.Documents[0][i] != nil {
			matches[i].Document = *out.Documents[0][i]
		}
		if len(out.Metadatas) > 0 && i < len(out.Metadatas[0]) {
			matches[i].Metadata = out.Metadatas[0][i]
		}
		if len(out.Distances) > 0 && i < len(out.Distances[0]) {
			matches[i].Distance = out.Distances[0][i]
		}
	}
	return matches, nil
}

// Get fetches records by ids, by a where filter, or both.
func (c *Client) Get(ctx context.Context, collection string, ids []string, where map[string]any) ([]Record, error) {
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	in := map[string]any{"include": []string{"documents", "metadatas"}}
	if len(ids) > 0 {
		in["ids"] = ids
	}
	if len(where) > 0 {
		in["where"] = where
	}

	var out struct {
		IDs       []string         `json:"ids"`
		Documents []*string        `json:"documents"`
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := c.doJSON(ctx, "get", http.MethodPost, collectionPath(id, "get"), in, &out); err != nil {
		return nil, err
	}

	records := make([]Record, len(out.IDs))
	for i, recordID := range out.IDs {
		records[i].ID = recordID
		if i < len(out.Documents) && out.Documents[i] != nil {
			records[i].Document = *out.Documents[i]
		}
		if i < len(out.Metadatas) {
			records[i].Metadata = out.Metadatas[i]
		}
	}
	return records, nil
}

// Delete removes records by ids, by a where filter, or both. Calling it with
// neither is a no-op rather than a request to wipe the collection.
func (c *Client) Delete(ctx context.Context, collection string, ids []string, where map[string]any) error {
	if len(ids) == 0 && len(where) == 0 {
		return nil
	}
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	in := map[string]any{}
	if len(ids) > 0 {
		in["ids"] = ids
	}
	if len(where) > 0 {
		in["where"] = where
	}
	return c.doJSON(ctx, "delete", http.MethodPost, collectionPath(id, "delete"), in, nil)
}

func (c *Client) collectionID(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	id, ok := c.ids[name]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}
	col, err := c.GetOrCreateCollection(ctx, name)
	if err != nil {
		return "", err
	}
	return col.ID, nil
}

func collectionPath(id, op string) string {
	return "/collections/" + url.PathEscape(id) + "/" + op
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("chroma %s: encode request failed: %w", op, err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("chroma %s: build request failed: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chroma %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chroma %s: read response failed: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("chroma %s: decode response failed: %w", op, err)
	}
	return nil
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
