// Package progress estimates how much of a city a user has explored.
// The total street count for a city is expensive to compute (geocode
// plus a full Overpass pull), so it is cached aggressively and treated
// as advisory: when street data is unreachable the dashboard shows an
// unknown total instead of an error.
package progress

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
	"github.com/SkaSmat/city-explorer/internal/kvcache"
	"github.com/SkaSmat/city-explorer/internal/overpass"
	"github.com/SkaSmat/city-explorer/internal/trackstore"
)

const countTTL = 24 * time.Hour

// StreetSource is the slice of the overpass service the aggregator uses.
type StreetSource interface {
	StreetsInBBox(ctx context.Context, bbox geo.BBox) ([]overpass.Street, error)
}

// ProgressReader exposes the persisted per-city counters.
type ProgressReader interface {
	CityProgress(ctx context.Context, userID, city string) (trackstore.CityProgress, error)
	ExploredCities(ctx context.Context, userID string) ([]trackstore.CityProgress, error)
}

type memCount struct {
	count    int
	cachedAt time.Time
}

type Service struct {
	geocoder Geocoder
	streets  StreetSource
	records  ProgressReader
	store    kvcache.Store

	mu  sync.Mutex
	mem map[string]memCount

	now func() time.Time
}

func NewService(geocoder Geocoder, streets StreetSource, records ProgressReader, store kvcache.Store) *Service {
	return &Service{
		geocoder: geocoder,
		streets:  streets,
		records:  records,
		store:    store,
		mem:      make(map[string]memCount),
		now:      time.Now,
	}
}

// TotalStreets estimates the street inventory of a city. Two ways
// sharing a name count once; "100% explored" means every named street,
// not every OSM way. Returns 0 when the city cannot be geocoded or
// street data is unavailable and never caches that failure.
func (s *Service) TotalStreets(ctx context.Context, city string) int {
	key := countKey(city)

	if count, ok := s.fromMemory(key); ok {
		return count
	}
	if count, ok := s.fromStore(ctx, key); ok {
		s.toMemory(key, count)
		return count
	}

	bbox, err := s.geocoder.Resolve(ctx, city)
	if err != nil {
		log.Printf("progress: geocode %q: %v", city, err)
		return 0
	}

	streets, err := s.streets.StreetsInBBox(ctx, bbox)
	if err != nil {
		log.Printf("progress: street census for %q: %v", city, err)
		return 0
	}

	count := distinctNames(streets)
	s.toMemory(key, count)
	s.toStore(ctx, key, count, bbox)
	return count
}

// Percent is explored/total clamped to [0, 100]. Unknown totals read
// as zero progress rather than a division error.
func (s *Service) Percent(ctx context.Context, city string, explored int) int {
	return s.percentOf(explored, s.TotalStreets(ctx, city))
}

// CityProgress combines the persisted counters for one city with the
// census estimate.
func (s *Service) CityProgress(ctx context.Context, userID, city string) (CityProgress, error) {
	rec, err := s.records.CityProgress(ctx, userID, city)
	if err != nil {
		return CityProgress{}, err
	}
	return s.view(ctx, rec), nil
}

// CitiesProgress is the batched variant for the dashboard list.
func (s *Service) CitiesProgress(ctx context.Context, userID string) ([]CityProgress, error) {
	recs, err := s.records.ExploredCities(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]CityProgress, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.view(ctx, rec))
	}
	return views, nil
}

func (s *Service) view(ctx context.Context, rec trackstore.CityProgress) CityProgress {
	total := s.TotalStreets(ctx, rec.City)
	return CityProgress{
		City:                rec.City,
		StreetsExplored:     rec.StreetsExplored,
		TotalStreets:        total,
		PercentExplored:     s.percentOf(rec.StreetsExplored, total),
		TotalDistanceMeters: rec.TotalDistanceMeters,
		LastActivity:        rec.LastActivity,
	}
}

func (s *Service) percentOf(explored, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(explored) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

func countKey(city string) string {
	return "city_streets_" + strings.ToLower(strings.TrimSpace(city))
}

func distinctNames(streets []overpass.Street) int {
	names := make(map[string]struct{}, len(streets))
	for _, st := range streets {
		names[strings.ToLower(st.Name)] = struct{}{}
	}
	return len(names)
}

func (s *Service) fromMemory(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.mem[key]
	if !ok || s.now().Sub(entry.cachedAt) > countTTL {
		delete(s.mem, key)
		return 0, false
	}
	return entry.count, true
}

func (s *Service) toMemory(key string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = memCount{count: count, cachedAt: s.now()}
}

func (s *Service) fromStore(ctx context.Context, key string) (int, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		log.Printf("progress: cache read %s: %v", key, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	var env countEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupted entries read as misses and get overwritten.
		return 0, false
	}
	return env.Count, true
}

func (s *Service) toStore(ctx context.Context, key string, count int, bbox geo.BBox) {
	env := countEnvelope{
		Count:    count,
		MinLat:   bbox.MinLat,
		MinLng:   bbox.MinLng,
		MaxLat:   bbox.MaxLat,
		MaxLng:   bbox.MaxLng,
		CachedAt: s.now().UnixMilli(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, raw, countTTL); err != nil {
		log.Printf("progress: cache write %s: %v", key, err)
	}
}
