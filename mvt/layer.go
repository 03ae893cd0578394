package mvt

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
)

// Mapbox Vector Tile field numbers (spec v2.1). These never change
// between tiles, so they're constants rather than config.
const (
	fieldTileLayers = 3

	fieldLayerVersion  = 15
	fieldLayerName     = 1
	fieldLayerFeatures = 2
	fieldLayerKeys     = 3
	fieldLayerValues   = 4
	fieldLayerExtent   = 5

	fieldFeatureID       = 1
	fieldFeatureTags     = 2
	fieldFeatureType     = 3
	fieldFeatureGeometry = 4

	fieldValueString = 1
	fieldValueSInt   = 6

	layerVersion = 2
)

// Feature is one feature ready for layer assembly: geometry already
// projected and clipped, properties already resolved.
type Feature struct {
	ID       uint64
	Type     GeomType
	Geometry []uint32
	Props    []pattern.Property
}

// BuildFeature projects and clips f's geometry into tr's pixel space and
// attaches def's property extraction. ok is false when f's geometry is
// fully clipped away, in which case the feature contributes nothing to
// the tile.
func BuildFeature(def layer.Def, f provider.Feature, tr grid.Transform, bbox provider.BBox) (Feature, bool) {
	typ, cmds, ok := EncodeGeometry(def.GeomKind(), f.Geom, tr, bbox)
	if !ok {
		return Feature{}, false
	}
	return Feature{
		ID:       uint64(f.ID),
		Type:     typ,
		Geometry: cmds,
		Props:    def.Properties(f.Values),
	}, true
}

// EncodeLayer assembles one MVT Layer message from its already-built
// features, interning tags and values into the layer's shared
// dictionaries. A property typed sint whose value fails to parse as an
// integer is dropped from its feature (with a warning) rather than
// coerced into a string property.
func EncodeLayer(name string, extent uint32, features []Feature, log logrus.FieldLogger) []byte {
	keys := newInterner()
	values := newValueInterner()

	var featBufs [][]byte
	for _, f := range features {
		var fb []byte
		fb = appendUint64Field(fb, fieldFeatureID, f.ID)
		var tags []uint32
		for _, p := range f.Props {
			if p.SInt {
				if _, err := strconv.ParseInt(p.Value, 10, 64); err != nil {
					log.WithField("tag", p.Tag).WithField("value", p.Value).Warn("mvt: dropping unparseable sint property")
					continue
				}
			}
			tags = append(tags, uint32(keys.intern(p.Tag)), uint32(values.intern(p)))
		}
		fb = appendPackedUint32Field(fb, fieldFeatureTags, tags)
		fb = appendUint32Field(fb, fieldFeatureType, uint32(f.Type))
		fb = appendPackedUint32Field(fb, fieldFeatureGeometry, f.Geometry)
		featBufs = append(featBufs, fb)
	}

	var buf []byte
	buf = appendUint32Field(buf, fieldLayerVersion, layerVersion)
	buf = appendStringField(buf, fieldLayerName, name)
	for _, fb := range featBufs {
		buf = appendMessageField(buf, fieldLayerFeatures, fb)
	}
	for _, k := range keys.ordered {
		buf = appendStringField(buf, fieldLayerKeys, k)
	}
	for _, v := range values.ordered {
		buf = appendMessageField(buf, fieldLayerValues, encodeValue(v))
	}
	buf = appendUint32Field(buf, fieldLayerExtent, extent)
	return buf
}

// EncodeTile wraps a tile's already-encoded layer messages into the
// top-level Tile message, a bare repeated Layer field.
func EncodeTile(layers [][]byte) []byte {
	var buf []byte
	for _, l := range layers {
		buf = appendMessageField(buf, fieldTileLayers, l)
	}
	return buf
}

type stringInterner struct {
	idx     map[string]int
	ordered []string
}

func newInterner() *stringInterner {
	return &stringInterner{idx: make(map[string]int)}
}

func (s *stringInterner) intern(v string) int {
	if i, ok := s.idx[v]; ok {
		return i
	}
	i := len(s.ordered)
	s.idx[v] = i
	s.ordered = append(s.ordered, v)
	return i
}

// valueKey dedupes MVT values by their (type, value) pair, independent
// of which tag referenced them -- the dictionary is shared across all
// properties in a layer, not per-tag.
type valueKey struct {
	value string
	sint  bool
}

type valueInterner struct {
	idx     map[valueKey]int
	ordered []valueKey
}

func newValueInterner() *valueInterner {
	return &valueInterner{idx: make(map[valueKey]int)}
}

func (v *valueInterner) intern(p pattern.Property) int {
	k := valueKey{value: p.Value, sint: p.SInt}
	if i, ok := v.idx[k]; ok {
		return i
	}
	i := len(v.ordered)
	v.idx[k] = i
	v.ordered = append(v.ordered, k)
	return i
}

// encodeValue assumes a sint-flagged key already parsed successfully in
// EncodeLayer, which drops unparseable ones before they ever reach here.
func encodeValue(k valueKey) []byte {
	if k.sint {
		n, _ := strconv.ParseInt(k.value, 10, 64)
		return appendSInt64Field(nil, fieldValueSInt, n)
	}
	return appendStringField(nil, fieldValueString, k.value)
}
