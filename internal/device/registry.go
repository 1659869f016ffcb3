package device

import (
	"sync"
)

// cmdState remembers the last command sent to a device.
type cmdState struct {
	on  bool
	dim int
}

// registry holds a static device table plus last-command state. It backs
// the controllers that are configured with an explicit device list.
type registry struct {
	order []int
	byID  map[int]Descriptor

	mu    sync.Mutex
	state map[int]cmdState
}

func newRegistry(devices []Descriptor) *registry {
	r := &registry{
		byID:  make(map[int]Descriptor, len(devices)),
		state: make(map[int]cmdState),
	}
	for _, d := range devices {
		if _, dup := r.byID[d.ID]; dup {
			continue
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r
}

func (r *registry) DeviceIDs() []int {
	ids := make([]int, len(r.order))
	copy(ids, r.order)
	return ids
}

func (r *registry) Name(id int) string {
	return r.byID[id].Name
}

func (r *registry) SupportsOnOff(id int) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *registry) SupportsDim(id int) bool {
	d, ok := r.byID[id]
	return ok && d.Dimmable
}

func (r *registry) LastOn(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[id].on
}

func (r *registry) LastDimLevel(id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state[id].dim
}

func (r *registry) recordOn(id int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state[id]
	st.on = on
	r.state[id] = st
}

func (r *registry) recordDim(id, level int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state[id]
	st.on = level > 0
	st.dim = level
	r.state[id] = st
}
