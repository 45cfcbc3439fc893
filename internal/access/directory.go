package access

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"handoff-backend/internal/model"
)

// StaticDirectory is a fixed actor -> assets mapping.
type StaticDirectory map[string][]string

// AssetsFor returns the configured assets for actorID.
func (d StaticDirectory) AssetsFor(_ context.Context, actorID string) ([]string, error) {
	return append([]string(nil), d[actorID]...), nil
}

// TableDirectory reads assignments from the asset_assignments table.
type TableDirectory struct {
	db *gorm.DB
}

// NewTableDirectory creates a table-backed directory.
func NewTableDirectory(db *gorm.DB) *TableDirectory {
	return &TableDirectory{db: db}
}

// AssetsFor returns the assets assigned to actorID.
func (d *TableDirectory) AssetsFor(ctx context.Context, actorID string) ([]string, error) {
	var assets []string
	err := d.db.WithContext(ctx).
		Model(&model.AssetAssignment{}).
		Where("actor_id = ?", actorID).
		Order("asset_id").
		Pluck("asset_id", &assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// assignmentResponse models the directory service's reply.
type assignmentResponse struct {
	ActorID string   `json:"actor_id"`
	Assets  []string `json:"assets"`
}

// HTTPDirectory queries an external assignment service at
// GET {baseURL}/actors/{actor_id}/assets.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDirectory creates an HTTP directory client, optionally through a proxy.
func NewHTTPDirectory(baseURL, proxy string) *HTTPDirectory {
	var transport http.RoundTripper = &http.Transport{}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Directory client will not use a proxy.", proxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return &HTTPDirectory{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
	}
}

// AssetsFor fetches the assets assigned to actorID.
func (d *HTTPDirectory) AssetsFor(ctx context.Context, actorID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/actors/%s/assets", d.baseURL, url.PathEscape(actorID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out assignmentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory response: %w", err)
	}
	sort.Strings(out.Assets)
	return out.Assets, nil
}

// CachedDirectory memoises another directory for a short TTL.
type CachedDirectory struct {
	inner Directory
	cache *cache.Cache
}

// NewCachedDirectory wraps inner with a TTL cache.
func NewCachedDirectory(inner Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

// AssetsFor returns cached assignments, fetching on a miss. Errors are not cached.
func (d *CachedDirectory) AssetsFor(ctx context.Context, actorID string) ([]string, error) {
	if v, found := d.cache.Get(actorID); found {
		return append([]string(nil), v.([]string)...), nil
	}
	assets, err := d.inner.AssetsFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(actorID, append([]string(nil), assets...))
	return assets, nil
}

// Invalidate drops any cached assignments for actorID.
func (d *CachedDirectory) Invalidate(actorID string) {
	d.cache.Delete(actorID)
}
