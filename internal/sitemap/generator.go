package sitemap

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/catalog"
)

const (
	priorityDetail   = 0.9
	priorityCategory = 0.8
	priorityLocation = 0.7
)

// DefaultAllowedCategories are the categories with public index pages.
var DefaultAllowedCategories = []string{"residential", "commercial"}

type staticPage struct {
	path     string
	priority float64
	freq     ChangeFrequency
}

var staticPages = []staticPage{
	{path: "/", priority: 1.0, freq: Weekly},
	{path: "/about", priority: 0.8, freq: Monthly},
	{path: "/services", priority: 0.9, freq: Weekly},
	{path: "/contact", priority: 0.8, freq: Monthly},
}

// Config parameterizes a Generator.
type Config struct {
	// BaseURL is the absolute site origin; a trailing slash is ignored.
	BaseURL string
	// Region is the state code locations must match.
	Region string
	// RegionSuffix is the slug suffix eligible location ids carry. Defaults
	// to "-" plus the lowercase region.
	RegionSuffix string
	// AllowedCategories limits which categories get index and detail pages.
	AllowedCategories []string
}

// Generator builds sitemap entries. It holds no per-call state and is safe
// for concurrent use.
type Generator struct {
	baseURL string
	region  catalog.Region
	allowed map[string]bool
	logger  *zap.Logger
}

// Result is the outcome of one generation pass.
type Result struct {
	Entries     []Entry
	Diagnostics []Diagnostic
	Stats       Stats
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	region := catalog.NewRegion(cfg.Region, cfg.RegionSuffix)
	if region.Code == "" {
		return nil, errors.New("region is required")
	}
	allowedList := cfg.AllowedCategories
	if len(allowedList) == 0 {
		allowedList = DefaultAllowedCategories
	}
	allowed := make(map[string]bool, len(allowedList))
	for _, id := range allowedList {
		allowed[strings.TrimSpace(id)] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		baseURL: base,
		region:  region,
		allowed: allowed,
		logger:  logger,
	}, nil
}

// Region returns the region the generator filters locations by.
func (g *Generator) Region() catalog.Region {
	return g.region
}

// Generate expands tax and locs into deduplicated canonical entries, all
// stamped with asOf. Malformed input is excluded and reported through
// Result.Diagnostics; Generate never fails.
func (g *Generator) Generate(tax catalog.Taxonomy, locs []catalog.Location, asOf time.Time) Result {
	p := &pass{g: g, asOf: asOf.UTC()}

	static := p.staticEntries()
	categoryEntries, expandable := p.categoryEntries(tax.Categories)
	locations := p.eligibleLocations(locs)
	var hubs []Entry
	if len(expandable) > 0 {
		hubs = p.locationEntries(locations)
	}
	combos := p.validCombinations(expandable)
	details := p.detailEntries(combos, locations)

	merged := make([]Entry, 0, len(details)+len(static)+len(categoryEntries)+len(hubs))
	merged = append(merged, details...)
	merged = append(merged, static...)
	merged = append(merged, categoryEntries...)
	merged = append(merged, hubs...)
	entries, collapsed, dropped := dedupe(merged)

	stats := StatsOf(entries)
	stats.Excluded = len(p.diagnostics)
	stats.Collapsed = collapsed
	stats.Dropped = dropped

	g.logger.Info("sitemap generated",
		zap.Int("total", stats.Total),
		zap.Int("detail", stats.ByBucket[BucketDetail]),
		zap.Int("static", stats.ByBucket[BucketStatic]),
		zap.Int("category", stats.ByBucket[BucketCategory]),
		zap.Int("location", stats.ByBucket[BucketLocation]),
		zap.Int("excluded", stats.Excluded),
		zap.Int("collapsed", stats.Collapsed),
	)
	return Result{Entries: entries, Diagnostics: p.diagnostics, Stats: stats}
}

// Combination is one member of the valid-combination set. Item is empty for
// service types that are a leaf on their own.
type Combination struct {
	Category    string
	System      string
	ServiceType string
	Item        string
}

func (c Combination) path() string {
	parts := []string{"services", c.Category, c.System, c.ServiceType}
	if c.Item != "" {
		parts = append(parts, c.Item)
	}
	return "/" + strings.Join(parts, "/")
}

// pass carries the scratch state of a single Generate call.
type pass struct {
	g           *Generator
	asOf        time.Time
	diagnostics []Diagnostic
}

func (p *pass) exclude(kind, path, reason string) {
	p.diagnostics = append(p.diagnostics, Diagnostic{Kind: kind, Path: path, Reason: reason})
	p.g.logger.Debug("sitemap exclusion",
		zap.String("kind", kind),
		zap.String("path", path),
		zap.String("reason", reason),
	)
}

func (p *pass) entry(path string, priority float64, freq ChangeFrequency, bucket Bucket) Entry {
	return Entry{
		URL:             p.g.baseURL + path,
		LastModified:    p.asOf,
		ChangeFrequency: freq,
		Priority:        priority,
		Canonical:       true,
		Bucket:          bucket,
	}
}

func (p *pass) staticEntries() []Entry {
	out := make([]Entry, 0, len(staticPages))
	for _, page := range staticPages {
		out = append(out, p.entry(page.path, page.priority, page.freq, BucketStatic))
	}
	return out
}

// categoryEntries emits one index page per allowlisted category and returns
// the categories whose children may expand into detail pages.
func (p *pass) categoryEntries(categories []catalog.Category) ([]Entry, []catalog.Category) {
	var (
		out        []Entry
		expandable []catalog.Category
		seen       = make(map[string]bool, len(categories))
	)
	for _, cat := range categories {
		if reason := catalog.CheckID(cat.ID); reason != "" {
			p.exclude(KindCategory, cat.Name, reason)
			continue
		}
		if seen[cat.ID] {
			p.exclude(KindCategory, cat.ID, catalog.ReasonDuplicateID)
			continue
		}
		seen[cat.ID] = true
		if !p.g.allowed[cat.ID] {
			p.exclude(KindCategory, cat.ID, "category not in allowlist")
			p.g.logger.Info("category excluded from sitemap", zap.String("category", cat.ID))
			continue
		}
		out = append(out, p.entry("/services/"+cat.ID, priorityCategory, Weekly, BucketCategory))
		expandable = append(expandable, cat)
	}
	return out, expandable
}

func (p *pass) eligibleLocations(locs []catalog.Location) []catalog.Location {
	out := make([]catalog.Location, 0, len(locs))
	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if reason := p.g.region.Check(loc); reason != "" {
			p.exclude(KindLocation, loc.ID, reason)
			continue
		}
		if seen[loc.ID] {
			p.exclude(KindLocation, loc.ID, catalog.ReasonDuplicateID)
			continue
		}
		seen[loc.ID] = true
		out = append(out, loc)
	}
	return out
}

func (p *pass) locationEntries(locs []catalog.Location) []Entry {
	out := make([]Entry, 0, len(locs))
	for _, loc := range locs {
		out = append(out, p.entry("/locations/"+loc.ID, priorityLocation, Weekly, BucketLocation))
	}
	return out
}

// validCombinations walks category -> system -> service type -> item and
// returns every combination that may be expanded, in taxonomy order.
func (p *pass) validCombinations(categories []catalog.Category) []Combination {
	var combos []Combination
	set := make(map[Combination]struct{})
	add := func(c Combination) {
		if _, ok := set[c]; ok {
			return
		}
		set[c] = struct{}{}
		combos = append(combos, c)
	}
	for _, cat := range categories {
		systems := make(map[string]bool, len(cat.Systems))
		for _, sys := range cat.Systems {
			sysPath := cat.ID + "/" + sys.ID
			if reason := catalog.CheckID(sys.ID); reason != "" {
				p.exclude(KindSystem, sysPath, reason)
				continue
			}
			if systems[sys.ID] {
				p.exclude(KindSystem, sysPath, catalog.ReasonDuplicateID)
				continue
			}
			systems[sys.ID] = true
			if len(sys.ServiceTypes) == 0 {
				p.exclude(KindSystem, sysPath, "no service types")
				continue
			}
			types := make(map[string]bool, len(sys.ServiceTypes))
			for _, st := range sys.ServiceTypes {
				stPath := sysPath + "/" + st.ID
				if reason := catalog.CheckID(st.ID); reason != "" {
					p.exclude(KindServiceType, stPath, reason)
					continue
				}
				if types[st.ID] {
					p.exclude(KindServiceType, stPath, catalog.ReasonDuplicateID)
					continue
				}
				types[st.ID] = true
				base := Combination{Category: cat.ID, System: sys.ID, ServiceType: st.ID}
				switch {
				case len(st.Items) == 0 && st.AllowEmptyItems:
					add(base)
					continue
				case len(st.Items) == 0:
					p.exclude(KindServiceType, stPath, "no items")
					continue
				case st.HasEmptyItemID():
					p.exclude(KindServiceType, stPath, "contains an item with an empty id")
					continue
				}
				items := make(map[string]bool, len(st.Items))
				for _, item := range st.Items {
					itemPath := stPath + "/" + item.ID
					if reason := catalog.CheckID(item.ID); reason != "" {
						p.exclude(KindItem, itemPath, reason)
						continue
					}
					if items[item.ID] {
						p.exclude(KindItem, itemPath, catalog.ReasonDuplicateID)
						continue
					}
					items[item.ID] = true
					c := base
					c.Item = item.ID
					add(c)
				}
			}
		}
	}
	return combos
}

func (p *pass) detailEntries(combos []Combination, locs []catalog.Location) []Entry {
	out := make([]Entry, 0, len(combos)*len(locs))
	for _, c := range combos {
		prefix := c.path()
		for _, loc := range locs {
			out = append(out, p.entry(prefix+"/"+loc.ID, priorityDetail, Weekly, BucketDetail))
		}
	}
	return out
}

// dedupe collapses entries by URL keeping the first position and the last
// value, then drops non-canonical entries.
func dedupe(entries []Entry) (out []Entry, collapsed, dropped int) {
	index := make(map[string]int, len(entries))
	unique := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.URL]; ok {
			unique[i] = e
			collapsed++
			continue
		}
		index[e.URL] = len(unique)
		unique = append(unique, e)
	}
	out = unique[:0]
	for _, e := range unique {
		if !e.Canonical {
			dropped++
			continue
		}
		out = append(out, e)
	}
	return out, collapsed, dropped
}
