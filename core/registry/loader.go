package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rkiskaupas/roadrisk/core/model"
)

// topologyFile is the on-disk shape of a network description.
type topologyFile struct {
	Nodes []struct {
		ID  string  `json:"id" yaml:"id"`
		Lat float64 `json:"lat" yaml:"lat"`
		Lon float64 `json:"lon" yaml:"lon"`
	} `json:"nodes" yaml:"nodes"`
	Segments []struct {
		ID       string  `json:"id" yaml:"id"`
		From     string  `json:"from" yaml:"from"`
		To       string  `json:"to" yaml:"to"`
		Length   float64 `json:"length" yaml:"length"`
		RoadType string  `json:"road_type" yaml:"road_type"`
		Priority float64 `json:"priority" yaml:"priority"`
	} `json:"segments" yaml:"segments"`
}

// LoadTopology reads a network description from a JSON or YAML file and
// registers its contents. Road types may use either the plain class names
// or the IS-50V category names found in exported road data.
func LoadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeTopology(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeTopology reads a network description from r in the given format.
func DecodeTopology(r io.Reader, format string) (*Topology, error) {
	var tf topologyFile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&tf); err != nil {
			return nil, fmt.Errorf("decode topology: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&tf); err != nil {
			return nil, fmt.Errorf("decode topology: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported topology format: %s", format)
	}

	reg := New()
	for _, n := range tf.Nodes {
		if err := reg.RegisterNode(model.Node{ID: n.ID, Lat: n.Lat, Lon: n.Lon}); err != nil {
			return nil, err
		}
	}
	for _, s := range tf.Segments {
		class, err := model.ParseRoadClass(s.RoadType)
		if err != nil {
			return nil, fmt.Errorf("segment %s: %w", s.ID, err)
		}
		priority := s.Priority
		if priority == 0 {
			priority = 1
		}
		seg := model.Segment{
			ID:       s.ID,
			From:     s.From,
			To:       s.To,
			Length:   s.Length,
			Class:    class,
			Priority: priority,
		}
		if err := reg.RegisterSegment(seg); err != nil {
			return nil, err
		}
	}
	return reg.Topology(), nil
}

// LoadResources reads resource records from a JSON or YAML file.
func LoadResources(path string) ([]model.Resource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Resources []model.Resource `json:"resources" yaml:"resources"`
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &doc)
	case ".json":
		err = json.Unmarshal(b, &doc)
	default:
		return nil, fmt.Errorf("unsupported resource format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}
	for _, r := range doc.Resources {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Resources, nil
}

// ResolveLocations snaps resources positioned by coordinates onto their
// nearest network node. Resources that already name a node pass through
// unchanged.
func ResolveLocations(topo *Topology, resources []model.Resource) ([]model.Resource, error) {
	out := make([]model.Resource, len(resources))
	copy(out, resources)
	for i, r := range out {
		if r.Location != "" {
			continue
		}
		n, ok := topo.NearestNode(r.Lat, r.Lon)
		if !ok {
			return nil, fmt.Errorf("resource %s: no node to snap coordinates onto", r.ID)
		}
		out[i].Location = n.ID
	}
	return out, nil
}
