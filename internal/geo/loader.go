// Package geo loads region geometry and joins it to dataset region names.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// DefaultNameField is the feature property holding the region name.
const DefaultNameField = "name"

// LoadFile reads regions from a GeoJSON (.geojson, .json) or ESRI
// shapefile (.shp) path.
func LoadFile(ctx context.Context, path, nameField string) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: load cancelled")
	}
	if nameField == "" {
		nameField = DefaultNameField
	}

	log := zap.L().With(zap.String("component", "geo.loader"))

	var (
		regions []Region
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "geo: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		regions, err = DecodeGeoJSON(f, nameField)
	case ".shp":
		regions, err = ReadShapefile(path, nameField)
	default:
		return nil, eris.Errorf("geo: unsupported geometry file %s", path)
	}
	if err != nil {
		return nil, err
	}

	log.Info("geometry loaded", zap.String("path", path), zap.Int("regions", len(regions)))
	return regions, nil
}

// DecodeGeoJSON reads a FeatureCollection. Features without a name are skipped.
func DecodeGeoJSON(r io.Reader, nameField string) ([]Region, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "geo: read geojson")
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "geo: decode geojson")
	}

	regions := make([]Region, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		name := propertyString(f.Properties, nameField)
		if name == "" {
			continue
		}
		regions = append(regions, Region{
			Name:     name,
			Bounds:   boundsOf(f.Geometry),
			Geometry: f.Geometry,
		})
	}
	return regions, nil
}

// ReadShapefile reads polygon records and their name attribute.
func ReadShapefile(path, nameField string) ([]Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: shapefile field %q not found", nameField)
	}

	var regions []Region
	for reader.Next() {
		_, shape := reader.Shape()
		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			continue
		}
		g := shapeToGeom(shape)
		regions = append(regions, Region{Name: name, Bounds: boundsOf(g), Geometry: g})
	}
	return regions, nil
}

// fieldIndex returns the index of a DBF field by name (case-insensitive), or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// shapeToGeom converts polygon and point shapes. Other shape types yield nil.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	default:
		return nil
	}
}

func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geo: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func propertyString(props map[string]interface{}, key string) string {
	for k, v := range props {
		if !strings.EqualFold(k, key) || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}
