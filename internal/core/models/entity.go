package models

import "strconv"

// EntityID is the opaque identifier components attach to. It carries no
// behaviour of its own.
type EntityID uint64

func (id EntityID) String() string {
	return "e" + strconv.FormatUint(uint64(id), 16)
}

// Events emitted by components and models.
const (
	EventChange = "change"
	EventDelete = "delete"
)
