// Package match narrows a set of candidate devices by intersecting the
// devices covering each recovered register access, in discovery order.
// Evidence that would contradict everything seen so far is dropped, not
// allowed to wipe out the candidate set: trailing evidence is the least
// reliable.
package match

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/erdnaxe/chiprec/internal/analysis"
	"github.com/erdnaxe/chiprec/internal/catalog"
)

// Lookup is the catalog query the matcher needs.
type Lookup interface {
	LookupByAddress(addr uint32) ([]catalog.RegisterHit, error)
}

// Hit records one register of a candidate device covering an observed
// access.
type Hit struct {
	Peripheral string
	Register   string
	Access     analysis.Access
}

// DeviceHits pairs a candidate device with the accesses it explained.
type DeviceHits struct {
	DeviceID int64
	Hits     []Hit
}

// State is the running candidate set. It starts unconstrained, meaning
// no evidence has applied yet and every device is still a candidate —
// which is a different outcome than a narrowed-to-empty set.
type State struct {
	devices *orderedmap.OrderedMap[int64, []Hit] // nil while unconstrained
}

// Unconstrained returns the initial state.
func Unconstrained() *State { return &State{} }

// Constrained reports whether any evidence has narrowed the state.
func (s *State) Constrained() bool { return s.devices != nil }

// Len returns the number of candidate devices, 0 while unconstrained.
func (s *State) Len() int {
	if s.devices == nil {
		return 0
	}
	return s.devices.Len()
}

// Devices returns the candidates in first-matched order.
func (s *State) Devices() []DeviceHits {
	if s.devices == nil {
		return nil
	}
	out := make([]DeviceHits, 0, s.devices.Len())
	for pair := s.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, DeviceHits{DeviceID: pair.Key, Hits: pair.Value})
	}
	return out
}

// intersect keeps only the devices present in both the state and the new
// matches, concatenating hit lists. An unconstrained state means "all
// devices", so the new matches are taken verbatim.
func intersect(s *State, m *orderedmap.OrderedMap[int64, []Hit]) *State {
	if !s.Constrained() {
		return &State{devices: m}
	}
	out := orderedmap.New[int64, []Hit]()
	for pair := s.devices.Oldest(); pair != nil; pair = pair.Next() {
		more, ok := m.Get(pair.Key)
		if !ok {
			continue
		}
		hits := make([]Hit, 0, len(pair.Value)+len(more))
		hits = append(hits, pair.Value...)
		hits = append(hits, more...)
		out.Set(pair.Key, hits)
	}
	return &State{devices: out}
}

// Result is the outcome of matching one image's evidence.
type Result struct {
	State       *State
	Diagnostics []string
}

// Match applies the evidence in discovery order. Evidence no device
// covers, and evidence whose intersection with the running candidates is
// empty, is dropped with a diagnostic; the candidate set only ever
// shrinks. A still-unconstrained final state means no identification was
// possible.
func Match(ev *analysis.EvidenceSet, cat Lookup) (*Result, error) {
	res := &Result{State: Unconstrained()}
	for _, item := range ev.Items() {
		hits, err := cat.LookupByAddress(item.Addr)
		if err != nil {
			return nil, fmt.Errorf("match evidence %s: %w", item, err)
		}
		if len(hits) == 0 {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("no devices match register %s, skipping", item))
			continue
		}

		m := orderedmap.New[int64, []Hit]()
		for _, h := range hits {
			cur, _ := m.Get(h.DeviceID)
			m.Set(h.DeviceID, append(cur, Hit{
				Peripheral: h.Peripheral,
				Register:   h.Register,
				Access:     item.Kind,
			}))
		}

		next := intersect(res.State, m)
		if next.Len() == 0 {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("intersection with register %s is empty, skipping", item))
			continue
		}
		res.State = next
	}
	return res, nil
}
