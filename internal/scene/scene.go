// Package scene loads declarative entity files into a stage.
package scene

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/stage"
	"gopkg.in/yaml.v3"
)

var ErrDuplicateEntity = errors.New("duplicate entity name")

// Scene is a list of entities with their component payloads. Both YAML and
// JSON documents decode into it.
type Scene struct {
	Entities []Entity `yaml:"entities" json:"entities"`
}

type Entity struct {
	// Name derives a stable id through Stage.EntityFor. Unnamed entities get
	// a fresh id.
	Name       string         `yaml:"name,omitempty" json:"name,omitempty"`
	Components map[string]any `yaml:"components" json:"components"`
}

func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read scene %s", path)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse scene %s", path)
	}
	return sc, nil
}

func Parse(data []byte) (*Scene, error) {
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every component against the stage registry without
// touching the stage.
func (sc *Scene) Validate(s *stage.Stage) error {
	names := make(map[string]struct{}, len(sc.Entities))
	for i, e := range sc.Entities {
		if e.Name != "" {
			if _, dup := names[e.Name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateEntity, e.Name)
			}
			names[e.Name] = struct{}{}
		}
		for _, typ := range sortedTypes(e.Components) {
			if _, err := s.Registry().Validate(typ, e.Components[typ]); err != nil {
				return fmt.Errorf("entity %s: %w", label(i, e), err)
			}
			if e.Name == "" {
				continue
			}
			id := s.EntityFor(e.Name)
			if _, exists := s.Component(id, typ); exists {
				return fmt.Errorf("entity %s: %w", label(i, e), &stage.DuplicateComponentError{Entity: id, Type: typ})
			}
		}
	}
	return nil
}

// Apply validates the whole scene, then creates its components in document
// order. Nothing is created when validation fails. The returned ids follow
// the entity order of the scene.
func (sc *Scene) Apply(s *stage.Stage) ([]models.EntityID, error) {
	if err := sc.Validate(s); err != nil {
		return nil, err
	}
	ids := make([]models.EntityID, 0, len(sc.Entities))
	var errs []error
	for i, e := range sc.Entities {
		id := s.NewEntity()
		if e.Name != "" {
			id = s.EntityFor(e.Name)
		}
		ids = append(ids, id)
		for _, typ := range sortedTypes(e.Components) {
			_, err := s.CreateComponent(stage.ComponentSpec{Entity: id, Type: typ, Value: e.Components[typ]})
			if err != nil {
				errs = append(errs, fmt.Errorf("entity %s: %w", label(i, e), err))
			}
		}
	}
	return ids, errors.Join(errs...)
}

func sortedTypes(components map[string]any) []string {
	out := make([]string, 0, len(components))
	for typ := range components {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func label(i int, e Entity) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", i)
}
