package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []string{
		"boundary=administrative",
		"admin_level=8",
		"?name",
		".name",
		"$population",
		"highway!=_",
		"surface=paved|gravel|dirt",
		"name",
	}
	for _, p := range cases {
		got := Parse(p).String()
		assert.Equal(t, Parse(p).String(), Parse(got).String(), "round trip for %q", p)
	}
}

func TestParsePrefixSemantics(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		p := Parse("highway")
		assert.True(t, p.MustMatch)
		assert.False(t, p.Include)
		assert.Equal(t, String, p.Type)
		assert.Equal(t, NotEqual, p.Equality)
		assert.Equal(t, []string{"_"}, p.Values)
	})
	t.Run("dot", func(t *testing.T) {
		p := Parse(".name")
		assert.True(t, p.MustMatch)
		assert.True(t, p.Include)
		assert.Equal(t, String, p.Type)
	})
	t.Run("question", func(t *testing.T) {
		p := Parse("?name")
		assert.False(t, p.MustMatch)
		assert.True(t, p.Include)
		assert.Equal(t, String, p.Type)
	})
	t.Run("dollar", func(t *testing.T) {
		p := Parse("$population")
		assert.False(t, p.MustMatch)
		assert.True(t, p.Include)
		assert.Equal(t, SInt, p.Type)
	})
}

func TestMatcherAlgebra(t *testing.T) {
	dicts := []Dict{
		MapDict{"boundary": "administrative"},
		MapDict{"boundary": "national_park"},
		MapDict{},
	}
	for _, d := range dicts {
		eq := Parse("boundary=administrative")
		neq := Parse("boundary!=administrative")
		assert.Equal(t, eq.Matches(d), !neq.Matches(d))
	}
}

func TestMatchesAbsent(t *testing.T) {
	p := Parse("name")
	assert.False(t, p.Matches(MapDict{}))
	assert.False(t, p.Matches(MapDict{"name": ""}))
	assert.True(t, p.Matches(MapDict{"name": "Saint Paul"}))
}

func TestValuesList(t *testing.T) {
	p := Parse("surface=paved|gravel")
	assert.Equal(t, []string{"paved", "gravel"}, p.Values)
}

func TestParseListDuplicate(t *testing.T) {
	_, err := ParseList([]string{"boundary=administrative", "boundary=national_park"})
	require.Error(t, err)
	var dup ErrDuplicateTag
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "boundary", dup.Tag)
}

func TestCheckTagsAllMustMatch(t *testing.T) {
	list, err := ParseList([]string{
		"?name",
		"?population",
		"boundary=administrative",
		"admin_level=8",
	})
	require.NoError(t, err)

	ok := MapDict{
		"name":         "Saint Paul",
		"population":   "311527",
		"boundary":     "administrative",
		"admin_level":  "8",
	}
	assert.True(t, list.CheckTags(ok))

	missingLevel := MapDict{
		"name":        "Saint Paul",
		"boundary":    "administrative",
		"admin_level": "4",
	}
	assert.False(t, list.CheckTags(missingLevel))
}

func TestTagValuesAndProperties(t *testing.T) {
	list, err := ParseList([]string{
		"?name",
		"$population",
		"boundary=administrative",
		"admin_level=8",
	})
	require.NoError(t, err)

	d := MapDict{
		"name":        "Saint Paul",
		"population":  "311527",
		"boundary":    "administrative",
		"admin_level": "8",
	}
	values := list.TagValues(42, d)
	props := list.Properties(values)
	require.Len(t, props, 2)
	assert.Equal(t, Property{Tag: "name", Value: "Saint Paul", SInt: false}, props[0])
	assert.Equal(t, Property{Tag: "population", Value: "311527", SInt: true}, props[1])
}

func TestTagValuesOsmID(t *testing.T) {
	list, err := ParseList([]string{".osm_id"})
	require.NoError(t, err)
	values := list.TagValues(99, MapDict{})
	props := list.Properties(values)
	require.Len(t, props, 1)
	assert.Equal(t, "99", props[0].Value)
}

func TestParseSIntDropsInvalid(t *testing.T) {
	_, err := ParseSInt("not-a-number")
	require.Error(t, err)
	v, err := ParseSInt("311527")
	require.NoError(t, err)
	assert.EqualValues(t, 311527, v)
}
