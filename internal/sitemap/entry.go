// Package sitemap expands the service taxonomy and the service areas into the
// canonical list of public URLs and serializes it for crawlers.
package sitemap

import "time"

// ChangeFrequency is the sitemap <changefreq> hint.
type ChangeFrequency string

// Supported change frequencies.
const (
	Weekly  ChangeFrequency = "weekly"
	Monthly ChangeFrequency = "monthly"
)

// Bucket identifies which page family produced an entry.
type Bucket string

// Page families, in emission order.
const (
	BucketDetail   Bucket = "detail"
	BucketStatic   Bucket = "static"
	BucketCategory Bucket = "category"
	BucketLocation Bucket = "location"
)

var bucketOrder = []Bucket{BucketDetail, BucketStatic, BucketCategory, BucketLocation}

// Entry is one sitemap URL.
type Entry struct {
	URL             string
	LastModified    time.Time
	ChangeFrequency ChangeFrequency
	Priority        float64
	Canonical       bool
	Bucket          Bucket
}

// Stats summarizes a generation pass.
type Stats struct {
	Total     int
	ByBucket  map[Bucket]int
	Excluded  int
	Collapsed int
	Dropped   int
}

// StatsOf counts entries per bucket. Excluded, Collapsed and Dropped are not
// recoverable from the entries alone and stay zero.
func StatsOf(entries []Entry) Stats {
	s := Stats{ByBucket: make(map[Bucket]int, len(bucketOrder))}
	for _, b := range bucketOrder {
		s.ByBucket[b] = 0
	}
	for _, e := range entries {
		s.ByBucket[e.Bucket]++
		s.Total++
	}
	return s
}

// Diagnostic records an element left out of the sitemap and why.
type Diagnostic struct {
	Kind   string
	Path   string
	Reason string
}

// Diagnostic kinds.
const (
	KindCategory    = "category"
	KindSystem      = "system"
	KindServiceType = "service_type"
	KindItem        = "item"
	KindLocation    = "location"
)
