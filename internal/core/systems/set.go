package systems

import (
	"iter"

	"github.com/zeusync/stagehand/internal/core/models"
)

// ModelSet is a live collection of bound models kept in match order.
type ModelSet struct {
	items []*models.Model
	index map[*models.Model]int
}

func newModelSet() *ModelSet {
	return &ModelSet{index: make(map[*models.Model]int)}
}

func (s *ModelSet) Len() int { return len(s.items) }

func (s *ModelSet) Has(m *models.Model) bool {
	_, ok := s.index[m]
	return ok
}

// All iterates a snapshot, so hooks may change the set while iterating.
func (s *ModelSet) All() iter.Seq[*models.Model] {
	snapshot := s.Slice()
	return func(yield func(*models.Model) bool) {
		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}

// Slice copies the current members.
func (s *ModelSet) Slice() []*models.Model {
	out := make([]*models.Model, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ModelSet) add(m *models.Model) {
	if _, ok := s.index[m]; ok {
		return
	}
	s.index[m] = len(s.items)
	s.items = append(s.items, m)
}

func (s *ModelSet) remove(m *models.Model) {
	i, ok := s.index[m]
	if !ok {
		return
	}
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	delete(s.index, m)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
}
