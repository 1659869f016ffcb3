package device

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// Virtual is a simulated controller whose last commanded state is
// persisted in SQLite, so device state reported over the web API
// survives restarts. Useful for dry runs and integration tests.
type Virtual struct {
	*registry
	db *sql.DB
}

// NewVirtual creates a virtual controller over the configured device
// list, restoring previously stored state from the database.
func NewVirtual(devices []Descriptor, db *sql.DB) *Virtual {
	v := &Virtual{registry: newRegistry(devices), db: db}
	v.restore()
	return v
}

// restore loads persisted last-command state into memory.
func (v *Virtual) restore() {
	rows, err := v.db.Query(`SELECT id, last_on, dim_level FROM device_state`)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read device state")
		return
	}
	defer rows.Close()

	restored := 0
	for rows.Next() {
		var id, lastOn, dim int
		if err := rows.Scan(&id, &lastOn, &dim); err != nil {
			log.Warn().Err(err).Msg("Failed to scan device state row")
			continue
		}
		if _, known := v.byID[id]; !known {
			continue
		}
		v.recordOn(id, lastOn == 1)
		if dim > 0 {
			v.recordDim(id, dim)
		}
		restored++
	}
	if restored > 0 {
		log.Debug().Int("devices", restored).Msg("Restored virtual device state")
	}
}

// persist writes the device's in-memory state to the database.
func (v *Virtual) persist(id int) {
	on := 0
	if v.LastOn(id) {
		on = 1
	}
	_, err := v.db.Exec(`
		INSERT OR REPLACE INTO device_state (id, last_on, dim_level, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, on, v.LastDimLevel(id), time.Now().Unix())
	if err != nil {
		log.Warn().Err(err).Int("device", id).Msg("Failed to persist device state")
	}
}

func (v *Virtual) TurnOn(ids []int) {
	for _, id := range ids {
		if !v.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned on")
			continue
		}
		log.Info().Int("device", id).Str("name", v.Name(id)).Msg("Turn on")
		v.recordOn(id, true)
		v.persist(id)
	}
}

func (v *Virtual) TurnOff(ids []int) {
	for _, id := range ids {
		if !v.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned off")
			continue
		}
		log.Info().Int("device", id).Str("name", v.Name(id)).Msg("Turn off")
		v.recordOn(id, false)
		v.persist(id)
	}
}

func (v *Virtual) Dim(ids []int, level int) {
	if level < DimLevelMin || level > DimLevelMax {
		log.Warn().Int("level", level).Msg("Dim level not valid")
		return
	}
	for _, id := range ids {
		if !v.SupportsDim(id) {
			log.Warn().Int("device", id).Msg("Device cannot be dimmed")
			continue
		}
		log.Info().Int("device", id).Str("name", v.Name(id)).Int("level", level).Msg("Dim")
		v.recordDim(id, level)
		v.persist(id)
	}
}
