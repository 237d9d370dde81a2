package overpass

import "github.com/SkaSmat/city-explorer/internal/geo"

// Street is a named way fetched from Overpass. Read-only reference data;
// ID is the stable OSM way id.
type Street struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Highway string      `json:"highway"`
	Coords  []geo.Coord `json:"coords"`
}

// Wire format of an Overpass `out geom` response.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	ID   int64 `json:"id"`
	Tags struct {
		Name    string `json:"name"`
		Highway string `json:"highway"`
	} `json:"tags"`
	Geometry []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geometry"`
}

// cacheEnvelope is what gets written to the durable cache tier. The
// timestamp is checked on read so a store without expiry still honors
// the TTL.
type cacheEnvelope struct {
	Streets  []Street `json:"streets"`
	CachedAt int64    `json:"cached_at"`
}
