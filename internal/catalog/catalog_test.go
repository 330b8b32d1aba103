package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"akron-oh":   "",
		"central-ac": "",
		"":           ReasonEmptyID,
		"   ":        ReasonEmptyID,
		"Central AC": ReasonMalformedID,
		"trailing-":  ReasonMalformedID,
		"a--b":       ReasonMalformedID,
	}
	for id, want := range cases {
		require.Equal(t, want, CheckID(id), "id %q", id)
	}
}

func TestRegionCheck(t *testing.T) {
	t.Parallel()

	region := NewRegion(" oh ", "")
	require.Equal(t, "OH", region.Code)
	require.Equal(t, "-oh", region.Suffix)

	require.True(t, region.Eligible(Location{ID: "akron-oh", StateCode: "OH"}))
	require.True(t, region.Eligible(Location{ID: "akron-oh", StateCode: "oh"}))
	require.Equal(t, ReasonOutsideRegion, region.Check(Location{ID: "columbus-oh", StateCode: "GA"}))
	require.Equal(t, ReasonSuffixMismatch, region.Check(Location{ID: "columbus-ga", StateCode: "OH"}))
	require.Equal(t, ReasonEmptyID, region.Check(Location{ID: "", StateCode: "OH"}))
}

func TestServiceTypeHasEmptyItemID(t *testing.T) {
	t.Parallel()

	require.False(t, ServiceType{Items: []Item{{ID: "a"}, {ID: "b"}}}.HasEmptyItemID())
	require.True(t, ServiceType{Items: []Item{{ID: "a"}, {ID: " "}}}.HasEmptyItemID())
	require.False(t, ServiceType{}.HasEmptyItemID())
}

// TestDefaultCatalogIsWellFormed guards the built-in data against typos that
// would silently drop pages.
func TestDefaultCatalogIsWellFormed(t *testing.T) {
	t.Parallel()

	c := Default()
	region := NewRegion("OH", "")
	seenCategories := map[string]bool{}
	for _, cat := range c.Taxonomy.Categories {
		require.Empty(t, CheckID(cat.ID))
		require.False(t, seenCategories[cat.ID], "duplicate category %s", cat.ID)
		seenCategories[cat.ID] = true
		seenSystems := map[string]bool{}
		for _, sys := range cat.Systems {
			require.Empty(t, CheckID(sys.ID))
			require.False(t, seenSystems[sys.ID], "duplicate system %s/%s", cat.ID, sys.ID)
			seenSystems[sys.ID] = true
			require.NotEmpty(t, sys.ServiceTypes)
			for _, st := range sys.ServiceTypes {
				require.Empty(t, CheckID(st.ID))
				if len(st.Items) == 0 {
					require.True(t, st.AllowEmptyItems, "%s/%s/%s has no items", cat.ID, sys.ID, st.ID)
				}
				require.False(t, st.HasEmptyItemID())
			}
		}
	}
	for _, loc := range c.Locations {
		require.True(t, region.Eligible(loc), "location %s", loc.ID)
		require.NotNil(t, loc.Coordinates)
	}

	// Default hands out independent copies.
	c.Locations[0].ID = "mutated"
	require.Equal(t, "akron-oh", Default().Locations[0].ID)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	doc := `
taxonomy:
  categories:
    - id: residential
      name: Residential
      systems:
        - id: heating
          name: Heating
          service_types:
            - id: emergency
              name: Emergency
              allow_empty_items: true
            - id: repairs
              name: Repairs
              items:
                - id: furnace
                  name: Furnace
locations:
  - id: akron-oh
    name: Akron
    county: Summit
    state_code: OH
    coordinates: {lat: 41.08, lon: -81.52}
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, c.Taxonomy.Categories, 1)
	types := c.Taxonomy.Categories[0].Systems[0].ServiceTypes
	require.True(t, types[0].AllowEmptyItems)
	require.Equal(t, "furnace", types[1].Items[0].ID)
	require.Equal(t, 41.08, c.Locations[0].Coordinates.Lat)
}

func TestLoadRejectsUnknownFieldsAndEmptyDocs(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader("locations:\n  - id: akron-oh\n    zip: 44308\n"))
	require.Error(t, err)

	_, err = Load(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = Load(strings.NewReader("taxonomy: {}\n"))
	require.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestLoadFileDefaultsWhenPathEmpty(t *testing.T) {
	t.Parallel()

	c, err := LoadFile("")
	require.NoError(t, err)
	require.Equal(t, Default(), c)

	_, err = LoadFile("/does/not/exist.yaml")
	require.Error(t, err)
}
