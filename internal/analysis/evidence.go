package analysis

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Access is the observed direction of a peripheral register access.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "write"
	}
	return "read"
}

// EvidenceItem is one recovered peripheral access.
type EvidenceItem struct {
	Addr uint32
	Kind Access
}

func (e EvidenceItem) String() string {
	return fmt.Sprintf("0x%08x (%s)", e.Addr, e.Kind)
}

// EvidenceSet collects evidence items in discovery order, dropping
// duplicates. Order is part of the contract: items found near the end of
// an image are more likely to be false positives (literal patterns inside
// padding or data), so consumers process earlier items first.
type EvidenceSet struct {
	items *orderedmap.OrderedMap[EvidenceItem, struct{}]
}

// NewEvidenceSet returns an empty set.
func NewEvidenceSet() *EvidenceSet {
	return &EvidenceSet{items: orderedmap.New[EvidenceItem, struct{}]()}
}

// Add appends an item unless an equal one was already recorded.
func (s *EvidenceSet) Add(addr uint32, kind Access) {
	key := EvidenceItem{Addr: addr, Kind: kind}
	if _, ok := s.items.Get(key); ok {
		return
	}
	s.items.Set(key, struct{}{})
}

// Len returns the number of distinct items.
func (s *EvidenceSet) Len() int { return s.items.Len() }

// Items returns the evidence in discovery order.
func (s *EvidenceSet) Items() []EvidenceItem {
	out := make([]EvidenceItem, 0, s.items.Len())
	for pair := s.items.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
