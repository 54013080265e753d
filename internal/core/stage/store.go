package stage

import (
	"sort"

	"github.com/TheBitDrifter/mask"
	"github.com/zeusync/stagehand/internal/core/models"
	"github.com/zeusync/stagehand/internal/core/systems"
)

// entity is the store record of one entity: its components keyed by type and
// the bitset of the types it owns.
type entity struct {
	id         models.EntityID
	seq        uint64
	mask       mask.Mask
	components map[string]*models.Component
	order      []string
}

func (e *entity) drop(typ string) {
	delete(e.components, typ)
	for i, t := range e.order {
		if t == typ {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}

type instance struct {
	model *models.Model
	seq   uint64
}

// declaration is the live state of one ModelType in a stage. It exists while
// at least one binding refers to it, or while pinned by DeclareModel.
type declaration struct {
	typ      *models.ModelType
	mask     mask.Mask
	models   map[models.EntityID]*instance
	bindings []*binding
	pinned   bool
}

// ordered returns the live instances in creation order.
func (d *declaration) ordered() []*instance {
	out := make([]*instance, 0, len(d.models))
	for _, inst := range d.models {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// attach inserts b keeping the bindings in system order.
func (d *declaration) attach(b *binding) {
	i := sort.Search(len(d.bindings), func(i int) bool {
		return b.reg.before(d.bindings[i].reg)
	})
	d.bindings = append(d.bindings, nil)
	copy(d.bindings[i+1:], d.bindings[i:])
	d.bindings[i] = b
}

func (d *declaration) detach(b *binding) {
	for i, cur := range d.bindings {
		if cur == b {
			d.bindings = append(d.bindings[:i], d.bindings[i+1:]...)
			return
		}
	}
}

// binding is one Binding of one registered system.
type binding struct {
	reg      *registration
	key      string
	singular bool
	decl     *declaration

	current *models.Model
	members map[*models.Model]struct{}
}

// bound returns the models currently handed to the system, in match order.
func (b *binding) bound() []*models.Model {
	if b.singular {
		if b.current == nil {
			return nil
		}
		return []*models.Model{b.current}
	}
	var out []*models.Model
	for _, inst := range b.decl.ordered() {
		if _, ok := b.members[inst.model]; ok {
			out = append(out, inst.model)
		}
	}
	return out
}

type registration struct {
	system   systems.System
	tracker  systems.Tracker
	priority systems.Priority
	seq      uint64
	bindings []*binding
	removed  bool
}

// before reports whether r runs ahead of other: higher priority first, then
// registration order.
func (r *registration) before(other *registration) bool {
	if r.priority != other.priority {
		return r.priority > other.priority
	}
	return r.seq < other.seq
}
