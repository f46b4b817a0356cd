package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/model"
)

const defaultGeometryType = "esriGeometryPoint"

type ServiceDefinition struct {
	Description string              `json:"description"`
	Layers      []model.LayerConfig `json:"layers"`
}

// Layers maps a service name to its ordered sublayers. Read-only once loaded.
type Layers map[string]ServiceDefinition

type layersFile struct {
	ServiceDefinitions map[string]json.RawMessage `json:"serviceDefinitions"`
}

func LoadLayers(path string) (Layers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layers file: %w", err)
	}
	defer func() { _ = f.Close() }()

	l, err := ParseLayers(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// ParseLayers accepts either {"svc": [layer, ...]} or
// {"svc": {"description": "...", "layers": [layer, ...]}} per service.
func ParseLayers(r io.Reader) (Layers, error) {
	var raw layersFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode layers: %w", err)
	}
	if len(raw.ServiceDefinitions) == 0 {
		return nil, errors.New("no serviceDefinitions")
	}

	out := make(Layers, len(raw.ServiceDefinitions))
	for name, msg := range raw.ServiceDefinitions {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("service with empty name")
		}
		var def ServiceDefinition
		trimmed := strings.TrimSpace(string(msg))
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal(msg, &def.Layers); err != nil {
				return nil, fmt.Errorf("service %q: %w", name, err)
			}
		} else if err := json.Unmarshal(msg, &def); err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		if len(def.Layers) == 0 {
			return nil, fmt.Errorf("service %q: no layers", name)
		}
		for i := range def.Layers {
			if err := normalizeLayer(&def.Layers[i]); err != nil {
				return nil, fmt.Errorf("service %q layer %d: %w", name, i, err)
			}
		}
		out[name] = def
	}
	return out, nil
}

func normalizeLayer(l *model.LayerConfig) error {
	l.TableName = strings.TrimSpace(l.TableName)
	l.GeographyField = strings.TrimSpace(l.GeographyField)
	l.PrimaryID = strings.TrimSpace(l.PrimaryID)
	if l.TableName == "" {
		return errors.New("tableName is required")
	}
	if l.GeographyField == "" {
		return errors.New("geographyField is required")
	}
	if len(l.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]struct{}, len(l.Fields))
	for i, f := range l.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate field %q", name)
		}
		seen[name] = struct{}{}
		l.Fields[i].Name = name
	}
	if l.MaxReturnCount < 0 {
		return fmt.Errorf("negative maxReturnCount %d", l.MaxReturnCount)
	}
	if l.Name == "" {
		l.Name = l.TableName
	}
	if l.GeometryType == "" {
		l.GeometryType = defaultGeometryType
	}
	return nil
}

func (l Layers) Service(name string) (ServiceDefinition, bool) {
	def, ok := l[name]
	return def, ok
}

func (l Layers) Layer(service string, idx int) (model.LayerConfig, bool) {
	def, ok := l[service]
	if !ok || idx < 0 || idx >= len(def.Layers) {
		return model.LayerConfig{}, false
	}
	return def.Layers[idx], true
}

// Tables returns every distinct table name across services, sorted.
func (l Layers) Tables() []string {
	set := map[string]struct{}{}
	for _, def := range l {
		for _, ly := range def.Layers {
			set[ly.TableName] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
