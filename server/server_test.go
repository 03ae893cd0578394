package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwyrm/wyrm/atlas"
	"github.com/openwyrm/wyrm/grid"
	"github.com/openwyrm/wyrm/layer"
	"github.com/openwyrm/wyrm/loam"
	"github.com/openwyrm/wyrm/pattern"
	"github.com/openwyrm/wyrm/provider"
	"github.com/openwyrm/wyrm/tile"
)

func testWyrm(t *testing.T) *atlas.Wyrm {
	t.Helper()
	id, err := grid.New(1, 0, 0)
	require.NoError(t, err)
	box := id.TightBBox()
	mid := orb.Point{(box.MinX + box.MaxX) / 2, (box.MinY + box.MaxY) / 2}

	def, err := layer.New(layer.Config{Name: "city", Source: "osm", GeomType: "point", Zoom: "0+", Tags: []string{"?name"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "city.loam")
	w, err := loam.NewWriter(path)
	require.NoError(t, err)
	name := "x"
	require.NoError(t, w.Push(provider.Feature{ID: 1, Geom: mid, Values: pattern.Values{&name}}))
	require.NoError(t, w.Finish())
	tr, err := loam.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	group := &atlas.Group{Name: "osm", TileExtent: 4096, EdgeExtent: 6, Layers: []tile.Layer{{Def: def, Tree: tr}}}
	return atlas.New([]*atlas.Group{group}, logrus.New())
}

func TestRouteOkTile(t *testing.T) {
	srv := New(testWyrm(t).FetchTile, logrus.New())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/osm/1/0/0.mvt", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())
	assert.Equal(t, mvtContentType, rec.Header().Get("Content-Type"))
}

func TestRouteUnknownGroupIs404(t *testing.T) {
	srv := New(testWyrm(t).FetchTile, logrus.New())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/xyz/10/246/368.mvt", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteMalformedYIs404(t *testing.T) {
	srv := New(testWyrm(t).FetchTile, logrus.New())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/osm/10/246/abc.mvt", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteEmptyTileIs204(t *testing.T) {
	def, err := layer.New(layer.Config{Name: "highway", Source: "osm", GeomType: "linestring", Zoom: "12-16", Tags: []string{"highway"}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "highway.loam")
	w, err := loam.NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Finish()) // never pushed, writer cancels -- index absent
	_, err = loam.Open(path)
	require.Error(t, err)

	group := &atlas.Group{Name: "osm", TileExtent: 4096, EdgeExtent: 6, Layers: []tile.Layer{{Def: def, Tree: nil}}}
	wyrm := atlas.New([]*atlas.Group{group}, logrus.New())
	srv := New(wyrm.FetchTile, logrus.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/osm/10/0/0.mvt", nil)
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
