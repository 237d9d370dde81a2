package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
	"github.com/SkaSmat/city-explorer/internal/kvcache"
)

const sampleResponse = `{
	"elements": [
		{
			"id": 101,
			"tags": {"name": "Rue de Rivoli", "highway": "primary"},
			"geometry": [{"lat": 48.8556, "lon": 2.3600}, {"lat": 48.8560, "lon": 2.3650}]
		},
		{
			"id": 102,
			"tags": {"highway": "residential"},
			"geometry": [{"lat": 48.8500, "lon": 2.3500}, {"lat": 48.8510, "lon": 2.3510}]
		},
		{
			"id": 103,
			"tags": {"name": "Impasse Courte", "highway": "residential"},
			"geometry": [{"lat": 48.8520, "lon": 2.3520}]
		}
	]
}`

func newTestService(t *testing.T, handler http.HandlerFunc, store kvcache.Store) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService(server.URL, store)
	svc.gap = time.Millisecond
	return svc, server
}

func TestStreetsInBBoxParsesAndFilters(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)

	streets, err := svc.StreetsInBBox(context.Background(), geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Unnamed ways and single-coordinate geometries are dropped.
	if len(streets) != 1 {
		t.Fatalf("expected 1 street, got %d", len(streets))
	}
	street := streets[0]
	if street.ID != 101 || street.Name != "Rue de Rivoli" || street.Highway != "primary" {
		t.Fatalf("unexpected street: %+v", street)
	}
	if len(street.Coords) != 2 || street.Coords[0].Lng != 2.36 {
		t.Fatalf("unexpected coords: %+v", street.Coords)
	}
}

func TestStreetsInBBoxUsesMemoryCache(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)

	bbox := geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}
	for i := 0; i < 3; i++ {
		if _, err := svc.StreetsInBBox(context.Background(), bbox); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", n)
	}
}

func TestStreetsInBBoxUsesDurableStore(t *testing.T) {
	var calls int32
	store := kvcache.NewMemory()
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(sampleResponse))
	}, store)

	bbox := geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}
	if _, err := svc.StreetsInBBox(context.Background(), bbox); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// A fresh service sharing the store must not hit the network.
	svc2 := NewService(svc.url, store)
	svc2.gap = time.Millisecond
	streets, err := svc2.StreetsInBBox(context.Background(), bbox)
	if err != nil {
		t.Fatalf("fetch via store: %v", err)
	}
	if len(streets) != 1 {
		t.Fatalf("expected cached street")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
}

func TestCorruptedStoreEntryIsMiss(t *testing.T) {
	var calls int32
	store := kvcache.NewMemory()
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(sampleResponse))
	}, store)

	bbox := geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}
	_ = store.Set(context.Background(), cacheKey(bbox), []byte("{not json"), time.Hour)

	streets, err := svc.StreetsInBBox(context.Background(), bbox)
	if err != nil {
		t.Fatalf("corrupted entry must be treated as a miss: %v", err)
	}
	if len(streets) != 1 || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a re-fetch past the corrupted entry")
	}
}

func TestFetchErrorNotCached(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)

	bbox := geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}
	if _, err := svc.StreetsInBBox(context.Background(), bbox); err == nil {
		t.Fatalf("expected upstream error")
	}

	// The failure must not have been cached.
	streets, err := svc.StreetsInBBox(context.Background(), bbox)
	if err != nil || len(streets) != 1 {
		t.Fatalf("expected successful retry, got %v", err)
	}
}

func TestParseErrorPropagates(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}, nil)

	bbox := geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}
	if _, err := svc.StreetsInBBox(context.Background(), bbox); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRateGateSpacesRequests(t *testing.T) {
	var calls int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)
	svc.gap = 150 * time.Millisecond

	start := time.Now()
	if _, err := svc.StreetsInBBox(context.Background(), geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	// Different box, same global gate.
	if _, err := svc.StreetsInBBox(context.Background(), geo.BBox{MinLat: 48.90, MinLng: 2.40, MaxLat: 48.91, MaxLng: 2.41}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Fatalf("second request should have waited for the gate, elapsed %v", elapsed)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected two upstream calls")
	}
}

func TestRateGateHonorsContext(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)
	svc.gap = time.Minute

	if _, err := svc.StreetsInBBox(context.Background(), geo.BBox{MinLat: 48.85, MinLng: 2.35, MaxLat: 48.86, MaxLng: 2.37}); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.StreetsInBBox(ctx, geo.BBox{MinLat: 48.90, MinLng: 2.40, MaxLat: 48.91, MaxLng: 2.41}); err == nil {
		t.Fatalf("expected context cancellation while gated")
	}
}

func TestStreetsAroundDerivesBBox(t *testing.T) {
	var sawBody string
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		sawBody = r.PostForm.Get("data")
		_, _ = w.Write([]byte(sampleResponse))
	}, nil)

	if _, err := svc.StreetsAround(context.Background(), 48.8566, 2.3522, 1); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sawBody == "" {
		t.Fatalf("expected an Overpass QL body")
	}
}
