package catalog

import (
	"math"
	"strings"
)

const earthRadiusKm = 6371.0

// Directory resolves visitor input to an eligible service location. Only
// locations that pass the region check are indexed, so nothing outside the
// region can be resolved.
type Directory struct {
	region    Region
	locations []Location
	byID      map[string]int
	byName    map[string]int
}

// NewDirectory indexes the eligible subset of locs. The first location wins
// when two share an id or a name.
func NewDirectory(locs []Location, region Region) *Directory {
	d := &Directory{
		region: region,
		byID:   make(map[string]int, len(locs)),
		byName: make(map[string]int, len(locs)*2),
	}
	for _, loc := range locs {
		if !region.Eligible(loc) {
			continue
		}
		if _, dup := d.byID[loc.ID]; dup {
			continue
		}
		idx := len(d.locations)
		d.locations = append(d.locations, loc)
		d.byID[loc.ID] = idx
		name := normalizeQuery(loc.Name)
		if name == "" {
			continue
		}
		if _, ok := d.byName[name]; !ok {
			d.byName[name] = idx
		}
		qualified := name + ", " + strings.ToLower(region.Code)
		if _, ok := d.byName[qualified]; !ok {
			d.byName[qualified] = idx
		}
	}
	return d
}

// Region returns the region the directory was built for.
func (d *Directory) Region() Region {
	return d.region
}

// All returns the eligible locations in input order.
func (d *Directory) All() []Location {
	out := make([]Location, len(d.locations))
	copy(out, d.locations)
	return out
}

// Lookup finds an eligible location by slug.
func (d *Directory) Lookup(id string) (Location, bool) {
	idx, ok := d.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Location{}, false
	}
	return d.locations[idx], true
}

// Resolve matches a free-text query against slugs, display names and
// "Name, ST" forms, ignoring case and surrounding whitespace.
func (d *Directory) Resolve(query string) (Location, bool) {
	q := normalizeQuery(query)
	if q == "" {
		return Location{}, false
	}
	if loc, ok := d.Lookup(q); ok {
		return loc, true
	}
	if idx, ok := d.byName[q]; ok {
		return d.locations[idx], true
	}
	return Location{}, false
}

// Nearest returns the closest eligible location with coordinates within
// maxKm of p. A non-positive maxKm means unbounded.
func (d *Directory) Nearest(p GeoPoint, maxKm float64) (Location, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, loc := range d.locations {
		if loc.Coordinates == nil {
			continue
		}
		dist := Distance(p, *loc.Coordinates)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 || (maxKm > 0 && bestDist > maxKm) {
		return Location{}, 0, false
	}
	return d.locations[best], bestDist, true
}

// Distance is the great-circle distance between a and b in kilometres.
func Distance(a, b GeoPoint) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func normalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
