package featureserver

import "github.com/mohammed-shakir/snowflake-featureserver/internal/core/apperr"

// Describe returns the layer's static metadata. It reads configuration only
// and works in any connection state.
func (s *Service) Describe(service string, idx int) (*LayerDescription, error) {
	l, err := s.layer(service, idx)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldInfo, 0, len(l.Fields))
	for _, f := range l.Fields {
		fields = append(fields, FieldInfo{Name: f.Name, Type: f.Type, Alias: f.Name})
	}
	return &LayerDescription{
		ID:                 idx,
		Name:               l.Name,
		Type:               "Feature Layer",
		Description:        l.Description,
		GeometryType:       l.GeometryType,
		IDField:            idField(l),
		ObjectIDField:      idField(l),
		MaxRecordCount:     l.MaxReturnCount,
		SupportsPagination: l.SupportsPagination,
		DrawingInfo:        DrawingInfo{Renderer: defaultRenderer(l.GeometryType)},
		Fields:             fields,
	}, nil
}

// Info lists the layers of a service.
func (s *Service) Info(service string) (*ServiceInfo, error) {
	def, ok := s.layers.Service(service)
	if !ok {
		return nil, apperr.NotFoundf("service %q not found", service)
	}
	out := &ServiceInfo{
		ServiceDescription: def.Description,
		Layers:             make([]LayerStub, 0, len(def.Layers)),
	}
	for i, l := range def.Layers {
		out.Layers = append(out.Layers, LayerStub{ID: i, Name: l.Name, GeometryType: l.GeometryType})
		if l.MaxReturnCount > out.MaxRecordCount {
			out.MaxRecordCount = l.MaxReturnCount
		}
	}
	if out.ServiceDescription == "" && len(def.Layers) > 0 {
		out.ServiceDescription = def.Layers[0].Description
	}
	return out, nil
}

var (
	fillColor    = [4]int{0, 122, 194, 200}
	outlineColor = [4]int{255, 255, 255, 255}
)

// defaultRenderer picks a simple symbol for the geometry type; anything
// unrecognized gets the point marker.
func defaultRenderer(geometryType string) Renderer {
	var sym Symbol
	switch geometryType {
	case "esriGeometryPolyline":
		sym = Symbol{Type: "esriSLS", Style: "esriSLSSolid", Color: fillColor, Width: 2}
	case "esriGeometryPolygon", "esriGeometryEnvelope":
		sym = Symbol{
			Type:    "esriSFS",
			Style:   "esriSFSSolid",
			Color:   [4]int{fillColor[0], fillColor[1], fillColor[2], 90},
			Outline: &Outline{Color: fillColor, Width: 1},
		}
	default:
		sym = Symbol{
			Type:    "esriSMS",
			Style:   "esriSMSCircle",
			Color:   fillColor,
			Size:    6,
			Outline: &Outline{Color: outlineColor, Width: 0.75},
		}
	}
	return Renderer{Type: "simple", Symbol: sym}
}
