// Package pattern implements the tag-pattern DSL used by layer rules to
// decide which OSM (or json) tag dictionaries belong in a layer, and which
// tag values become MVT feature properties.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// absent is the sentinel value string meaning "tag missing or empty".
const absent = "_"

// FeatureType is the MVT property type a pattern's value is encoded as.
type FeatureType uint8

const (
	// String encodes the matched value as an MVT string property.
	String FeatureType = iota
	// SInt encodes the matched value as an MVT signed-integer property.
	SInt
)

// Equality selects whether a pattern matches or excludes its value list.
type Equality uint8

const (
	// Equal matches when the tag's value is one of the pattern's values.
	Equal Equality = iota
	// NotEqual matches when the tag's value is none of the pattern's values.
	NotEqual
)

// Pattern is one parsed tag-pattern rule.
type Pattern struct {
	MustMatch bool
	Include   bool
	Type      FeatureType
	Tag       string
	Equality  Equality
	Values    []string
}

// ErrDuplicateTag is returned when a tag appears more than once in a
// layer's pattern list.
type ErrDuplicateTag struct {
	Tag string
}

func (e ErrDuplicateTag) Error() string {
	return fmt.Sprintf("duplicate tag pattern: %s", e.Tag)
}

// Parse parses a single space-delimited pattern token.
//
//	pattern := [prefix] tag [ ("=" | "!=") valuelist ]
//	prefix  := "." | "?" | "$"
//	valuelist := value ("|" value)*
func Parse(tok string) Pattern {
	mustMatch, include, typ, rest := parsePrefix(tok)
	tag, eq, values := parseEquality(rest)
	return Pattern{
		MustMatch: mustMatch,
		Include:   include,
		Type:      typ,
		Tag:       tag,
		Equality:  eq,
		Values:    values,
	}
}

func parsePrefix(tok string) (mustMatch, include bool, typ FeatureType, rest string) {
	switch {
	case strings.HasPrefix(tok, "."):
		return true, true, String, tok[1:]
	case strings.HasPrefix(tok, "?"):
		return false, true, String, tok[1:]
	case strings.HasPrefix(tok, "$"):
		return false, true, SInt, tok[1:]
	default:
		return true, false, String, tok
	}
}

func parseEquality(tok string) (tag string, eq Equality, values []string) {
	if i := strings.IndexByte(tok, '='); i >= 0 {
		tag = tok[:i]
		valStr := tok[i+1:]
		if strings.HasSuffix(tag, "!") {
			tag = tag[:len(tag)-1]
			eq = NotEqual
		} else {
			eq = Equal
		}
		return tag, eq, strings.Split(valStr, "|")
	}
	// shorthand "tag" == "tag!=_": must be present and non-empty.
	return tok, NotEqual, []string{absent}
}

// String formats a pattern back into DSL form. format(parse(p)) is
// semantically equal to p for any well-formed p.
func (p Pattern) String() string {
	var b strings.Builder
	switch {
	case p.MustMatch && p.Include:
		b.WriteByte('.')
	case !p.MustMatch && p.Type == SInt:
		b.WriteByte('$')
	case !p.MustMatch:
		b.WriteByte('?')
	}
	b.WriteString(p.Tag)
	if p.Equality == NotEqual && len(p.Values) == 1 && p.Values[0] == absent {
		return b.String()
	}
	if p.Equality == NotEqual {
		b.WriteString("!=")
	} else {
		b.WriteByte('=')
	}
	b.WriteString(strings.Join(p.Values, "|"))
	return b.String()
}

// matchesValue reports whether an optional tag value satisfies the
// pattern's equality/value-list. A nil value denotes an absent tag.
func (p Pattern) matchesValue(value *string) bool {
	matched := p.matchesValueOption(value)
	if p.Equality == NotEqual {
		return !matched
	}
	return matched
}

func (p Pattern) matchesValueOption(value *string) bool {
	if value == nil {
		for _, v := range p.Values {
			if v == absent {
				return true
			}
		}
		return false
	}
	for _, v := range p.Values {
		if v == *value {
			return true
		}
	}
	return false
}

// Dict is a tag dictionary to be matched or mined for property values.
// It mirrors the minimal surface the core requires from a PBF reader's
// tag lookup: lookup by name, nothing more.
type Dict interface {
	Get(tag string) (string, bool)
}

// MapDict adapts a plain map[string]string to Dict.
type MapDict map[string]string

// Get implements Dict.
func (d MapDict) Get(tag string) (string, bool) {
	v, ok := d[tag]
	return v, ok
}

// Matches reports whether tag `p.Tag` in dict d satisfies the pattern.
// Only meaningful for MustMatch patterns, but callers may invoke it on
// any pattern.
func (p Pattern) Matches(d Dict) bool {
	v, ok := d.Get(p.Tag)
	if !ok || v == "" {
		return p.matchesValue(nil)
	}
	return p.matchesValue(&v)
}

// List is an ordered, validated collection of tag patterns for one layer.
type List []Pattern

// ParseList parses every token in tags, rejecting duplicate tag names:
// a duplicate tag within a layer's pattern list is a configuration
// error.
func ParseList(tags []string) (List, error) {
	list := make(List, 0, len(tags))
	for _, tok := range tags {
		p := Parse(tok)
		for _, existing := range list {
			if existing.Tag == p.Tag {
				return nil, ErrDuplicateTag{Tag: p.Tag}
			}
		}
		list = append(list, p)
	}
	return list, nil
}

// CheckTags reports whether a tag dictionary satisfies every MustMatch
// pattern in the list. Every one must pass for the feature to be
// accepted into the layer.
func (l List) CheckTags(d Dict) bool {
	for _, p := range l {
		if p.MustMatch && !p.Matches(d) {
			return false
		}
	}
	return true
}

// IncludedTags returns, in declaration order, the tag names to include as
// MVT properties.
func (l List) IncludedTags() []string {
	var tags []string
	for _, p := range l {
		if p.Include {
			tags = append(tags, p.Tag)
		}
	}
	return tags
}

// Values captures one value per included pattern, in declaration order;
// entry i corresponds to the i-th included pattern. A nil entry means the
// tag was absent for this feature.
type Values []*string

// TagValues extracts a Values slice from a tag dictionary and an OSM
// object id (for the special "osm_id" tag name).
func (l List) TagValues(id int64, d Dict) Values {
	var out Values
	for _, p := range l {
		if !p.Include {
			continue
		}
		if p.Tag == "osm_id" {
			s := strconv.FormatInt(id, 10)
			out = append(out, &s)
			continue
		}
		if v, ok := d.Get(p.Tag); ok && v != "" {
			vv := v
			out = append(out, &vv)
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Property is one (tag, value, sint) triple ready for MVT attachment.
type Property struct {
	Tag   string
	Value string
	SInt  bool
}

// Properties zips the list's included patterns against a geometry's
// stored Values, skipping absent entries. sint values are passed through
// unparsed; mvt.EncodeLayer is where ones that fail to parse are dropped,
// with a warning.
func (l List) Properties(values Values) []Property {
	var out []Property
	i := 0
	for _, p := range l {
		if !p.Include {
			continue
		}
		var v *string
		if i < len(values) {
			v = values[i]
		}
		i++
		if v == nil {
			continue
		}
		out = append(out, Property{Tag: p.Tag, Value: *v, SInt: p.Type == SInt})
	}
	return out
}

// ParseSInt parses a property's value as a signed integer for sint-typed
// patterns. Callers should drop the value (with a warning) on error
// rather than fail the whole feature.
func ParseSInt(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}
