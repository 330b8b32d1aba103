// Package catalog holds the static service taxonomy and service-area list the
// site is generated from, plus the shape checks shared by the sitemap
// generator and the location resolver.
package catalog

// Taxonomy is the ordered category list describing every offered service.
type Taxonomy struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// Category is a top-level grouping such as residential or commercial.
type Category struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Systems     []System `yaml:"systems" json:"systems"`
}

// System is an equipment family (heating, cooling, air quality).
type System struct {
	ID           string        `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Icon         string        `yaml:"icon" json:"icon"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	ServiceTypes []ServiceType `yaml:"service_types" json:"service_types"`
}

// ServiceType is the kind of work performed on a system.
type ServiceType struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// AllowEmptyItems marks types (emergency service) that are a leaf on
	// their own and need no item-level pages.
	AllowEmptyItems bool   `yaml:"allow_empty_items,omitempty" json:"allow_empty_items,omitempty"`
	Items           []Item `yaml:"items" json:"items"`
}

// Item is the most specific piece of equipment a page can target.
type Item struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Icon        string `yaml:"icon" json:"icon"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Location is one service area.
type Location struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	County      string    `yaml:"county" json:"county"`
	StateCode   string    `yaml:"state_code" json:"state_code"`
	Coordinates *GeoPoint `yaml:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Catalog bundles the taxonomy with the service areas.
type Catalog struct {
	Taxonomy  Taxonomy   `yaml:"taxonomy" json:"taxonomy"`
	Locations []Location `yaml:"locations" json:"locations"`
}
