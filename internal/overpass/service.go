// Package overpass fetches named street geometries for a bounding box
// and caches them in two tiers: an in-process map and a durable
// kvcache.Store. Requests to the upstream API are spaced out by a
// single process-wide gate.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
	"github.com/SkaSmat/city-explorer/internal/kvcache"
)

const (
	// DefaultURL is the public Overpass interpreter endpoint.
	DefaultURL = "https://overpass-api.de/api/interpreter"

	cacheTTL   = 7 * 24 * time.Hour
	requestGap = 6 * time.Second
)

type memEntry struct {
	streets  []Street
	cachedAt time.Time
}

type Service struct {
	url        string
	httpClient *http.Client
	store      kvcache.Store // durable tier, may be nil

	mu  sync.Mutex
	mem map[string]memEntry

	// The gate is global: concurrent requests for different boxes still
	// serialize against the same 6-second window.
	gateMu      sync.Mutex
	lastRequest time.Time
	gap         time.Duration

	now func() time.Time
}

func NewService(apiURL string, store kvcache.Store) *Service {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	return &Service{
		url:        apiURL,
		httpClient: &http.Client{},
		store:      store,
		mem:        map[string]memEntry{},
		gap:        requestGap,
		now:        time.Now,
	}
}

// StreetsAround fetches streets within radiusKm of a position.
func (s *Service) StreetsAround(ctx context.Context, lat, lng, radiusKm float64) ([]Street, error) {
	return s.StreetsInBBox(ctx, geo.BBoxAround(lat, lng, radiusKm))
}

// StreetsInBBox returns the named streets inside the box, from cache
// when possible. Errors are never cached; retrying is the caller's job.
func (s *Service) StreetsInBBox(ctx context.Context, bbox geo.BBox) ([]Street, error) {
	key := cacheKey(bbox)

	if streets, ok := s.fromMemory(key); ok {
		return streets, nil
	}
	if streets, ok := s.fromStore(ctx, key); ok {
		s.toMemory(key, streets)
		return streets, nil
	}

	if err := s.waitForGate(ctx); err != nil {
		return nil, err
	}

	streets, err := s.fetch(ctx, bbox)
	if err != nil {
		return nil, err
	}

	s.toMemory(key, streets)
	s.toStore(ctx, key, streets)
	return streets, nil
}

func cacheKey(bbox geo.BBox) string {
	// ~11 m quantization keeps near-identical boxes on the same entry.
	return fmt.Sprintf("streets_%.4f_%.4f_%.4f_%.4f", bbox.MinLat, bbox.MinLng, bbox.MaxLat, bbox.MaxLng)
}

func (s *Service) fromMemory(key string) ([]Street, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.mem[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.cachedAt) > cacheTTL {
		delete(s.mem, key)
		return nil, false
	}
	return entry.streets, true
}

func (s *Service) toMemory(key string, streets []Street) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = memEntry{streets: streets, cachedAt: s.now()}
}

func (s *Service) fromStore(ctx context.Context, key string) ([]Street, bool) {
	if s.store == nil {
		return nil, false
	}

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// Corrupted entry reads as a miss and gets re-fetched.
		return nil, false
	}
	if s.now().Sub(time.UnixMilli(envelope.CachedAt)) > cacheTTL {
		return nil, false
	}
	return envelope.Streets, true
}

func (s *Service) toStore(ctx context.Context, key string, streets []Street) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(cacheEnvelope{Streets: streets, CachedAt: s.now().UnixMilli()})
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, raw, cacheTTL); err != nil {
		log.Printf("overpass: durable cache write failed: %v", err)
	}
}

// waitForGate suspends the caller until the inter-request window has
// elapsed. The wait is an internal delay, never an error, but the
// context is honored while waiting.
func (s *Service) waitForGate(ctx context.Context) error {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()

	wait := s.gap - s.now().Sub(s.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.lastRequest = s.now()
	return nil
}

func (s *Service) fetch(ctx context.Context, bbox geo.BBox) ([]Street, error) {
	query := fmt.Sprintf(`[out:json][timeout:90];
way["highway"]["name"](%f,%f,%f,%f);
out geom;`, bbox.MinLat, bbox.MinLng, bbox.MaxLat, bbox.MaxLng)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overpass status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("overpass read: %w", err)
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("overpass parse: %w", err)
	}
	return parseStreets(parsed), nil
}

func parseStreets(resp overpassResponse) []Street {
	var streets []Street
	for _, element := range resp.Elements {
		if element.Tags.Name == "" || len(element.Geometry) < 2 {
			continue
		}

		coords := make([]geo.Coord, 0, len(element.Geometry))
		for _, node := range element.Geometry {
			coords = append(coords, geo.Coord{Lng: node.Lon, Lat: node.Lat})
		}

		highway := element.Tags.Highway
		if highway == "" {
			highway = "unknown"
		}

		streets = append(streets, Street{
			ID:      element.ID,
			Name:    element.Tags.Name,
			Highway: highway,
			Coords:  coords,
		})
	}
	return streets
}
