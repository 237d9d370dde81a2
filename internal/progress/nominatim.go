package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SkaSmat/city-explorer/internal/geo"
)

// DefaultNominatimURL is the public Nominatim instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// fallbackRadiusKm is used when a geocoder hit carries no usable
// bounding box and we only have a center point.
const fallbackRadiusKm = 5.0

// Geocoder resolves a city name to the bounding box its streets live in.
type Geocoder interface {
	Resolve(ctx context.Context, city string) (geo.BBox, error)
}

// Nominatim is the production Geocoder.
type Nominatim struct {
	url        string
	httpClient *http.Client
}

func NewNominatim(apiURL string) *Nominatim {
	if apiURL == "" {
		apiURL = DefaultNominatimURL
	}
	return &Nominatim{
		url:        apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type nominatimResult struct {
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	BoundingBox []string `json:"boundingbox"`
}

// Resolve returns the first hit's bounding box. Nominatim reports the
// box as [minLat, maxLat, minLng, maxLng] strings; when the box is
// missing or malformed we fall back to a fixed radius around the
// result's center point.
func (n *Nominatim) Resolve(ctx context.Context, city string) (geo.BBox, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url+"/search?"+q.Encode(), nil)
	if err != nil {
		return geo.BBox{}, fmt.Errorf("geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", "city-explorer/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return geo.BBox{}, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.BBox{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.BBox{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(results) == 0 {
		return geo.BBox{}, fmt.Errorf("city %q not found", city)
	}

	hit := results[0]
	if box, ok := parseBoundingBox(hit.BoundingBox); ok {
		return box, nil
	}

	lat, latErr := strconv.ParseFloat(hit.Lat, 64)
	lng, lngErr := strconv.ParseFloat(hit.Lon, 64)
	if latErr != nil || lngErr != nil {
		return geo.BBox{}, fmt.Errorf("geocoder hit for %q has no usable location", city)
	}
	return geo.BBoxAround(lat, lng, fallbackRadiusKm), nil
}

func parseBoundingBox(raw []string) (geo.BBox, bool) {
	if len(raw) != 4 {
		return geo.BBox{}, false
	}
	vals := make([]float64, 4)
	for i, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.BBox{}, false
		}
		vals[i] = v
	}
	return geo.BBox{MinLat: vals[0], MaxLat: vals[1], MinLng: vals[2], MaxLng: vals[3]}, true
}
