// Package device abstracts the hardware used to switch and dim lights.
// Backends are best effort per device: an unsupported or failing device
// is logged and skipped, never aborting the rest of a batch.
package device

// Dim level bounds, matching the classic 433MHz dimmer range.
const (
	DimLevelMin = 0
	DimLevelMax = 255
)

// Controller is the capability-queryable device interface. Batch
// operations (TurnOn, TurnOff, Dim) try every ID in order and report
// per-device problems through the log only.
type Controller interface {
	// DeviceIDs returns all known device IDs in stable order.
	DeviceIDs() []int

	// Name returns the device's display name, or "" if unknown.
	Name(id int) string

	SupportsOnOff(id int) bool
	SupportsDim(id int) bool

	TurnOn(ids []int)
	TurnOff(ids []int)
	Dim(ids []int, level int)

	// LastOn reports whether the last command sent to the device was
	// "on". This reflects commands sent through this controller, not
	// necessarily the physical device state.
	LastOn(id int) bool

	// LastDimLevel returns the last dim level sent to the device.
	LastDimLevel(id int) int
}

// Descriptor declares a device for backends that cannot enumerate
// hardware themselves (debug, virtual, mqtt).
type Descriptor struct {
	ID       int
	Name     string
	Dimmable bool
}
