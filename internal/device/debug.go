package device

import (
	"github.com/rs/zerolog/log"
)

// Debug is a log-only controller for testing rule files without
// touching hardware. Commands are logged and their effect remembered
// in memory so the web API can report device state.
type Debug struct {
	*registry
}

// NewDebug creates a debug controller over the configured device list.
func NewDebug(devices []Descriptor) *Debug {
	return &Debug{registry: newRegistry(devices)}
}

func (d *Debug) TurnOn(ids []int) {
	for _, id := range ids {
		if !d.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned on")
			continue
		}
		log.Info().Int("device", id).Str("name", d.Name(id)).Msg("Turn on")
		d.recordOn(id, true)
	}
}

func (d *Debug) TurnOff(ids []int) {
	for _, id := range ids {
		if !d.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned off")
			continue
		}
		log.Info().Int("device", id).Str("name", d.Name(id)).Msg("Turn off")
		d.recordOn(id, false)
	}
}

func (d *Debug) Dim(ids []int, level int) {
	if level < DimLevelMin || level > DimLevelMax {
		log.Warn().Int("level", level).Msg("Dim level not valid")
		return
	}
	for _, id := range ids {
		if !d.SupportsDim(id) {
			log.Warn().Int("device", id).Msg("Device cannot be dimmed")
			continue
		}
		log.Info().Int("device", id).Str("name", d.Name(id)).Int("level", level).Msg("Dim")
		d.recordDim(id, level)
	}
}
