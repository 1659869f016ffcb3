package device

import (
	"context"
	"strings"
	"sync"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Hue drives lights through a Philips Hue bridge. Hue light IDs are the
// device IDs. Commands are throttled with a rate limiter so a rule
// hitting a large group does not flood the bridge.
type Hue struct {
	bridge  *huego.Bridge
	limiter *rate.Limiter

	mu     sync.Mutex
	order  []int
	lights map[int]huego.Light
}

// NewHue connects to the bridge and takes a snapshot of the known
// lights. rps limits commands per second; 0 disables throttling.
func NewHue(host, user string, rps float64) (*Hue, error) {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	h := &Hue{
		bridge:  huego.New(host, user),
		limiter: rate.NewLimiter(limit, 1),
		lights:  make(map[int]huego.Light),
	}

	if err := h.refresh(); err != nil {
		return nil, err
	}

	log.Info().Str("bridge", host).Int("lights", len(h.lights)).Msg("Connected to Hue bridge")
	return h, nil
}

// refresh re-reads the light inventory from the bridge.
func (h *Hue) refresh() error {
	lights, err := h.bridge.GetLights()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = h.order[:0]
	h.lights = make(map[int]huego.Light, len(lights))
	for _, l := range lights {
		h.order = append(h.order, l.ID)
		h.lights[l.ID] = l
	}
	return nil
}

func (h *Hue) DeviceIDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, len(h.order))
	copy(ids, h.order)
	return ids
}

func (h *Hue) Name(id int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lights[id].Name
}

func (h *Hue) SupportsOnOff(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.lights[id]
	return ok
}

func (h *Hue) SupportsDim(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.lights[id]
	if !ok {
		return false
	}
	t := strings.ToLower(l.Type)
	return strings.Contains(t, "dimmable") || strings.Contains(t, "color")
}

func (h *Hue) TurnOn(ids []int) {
	for _, id := range ids {
		if !h.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned on")
			continue
		}
		h.limiter.Wait(context.Background())
		light, err := h.bridge.GetLight(id)
		if err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to fetch Hue light")
			continue
		}
		if err := light.On(); err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to turn on Hue light")
		}
	}
}

func (h *Hue) TurnOff(ids []int) {
	for _, id := range ids {
		if !h.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned off")
			continue
		}
		h.limiter.Wait(context.Background())
		light, err := h.bridge.GetLight(id)
		if err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to fetch Hue light")
			continue
		}
		if err := light.Off(); err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to turn off Hue light")
		}
	}
}

func (h *Hue) Dim(ids []int, level int) {
	if level < DimLevelMin || level > DimLevelMax {
		log.Warn().Int("level", level).Msg("Dim level not valid")
		return
	}
	bri := hueBrightness(level)
	for _, id := range ids {
		if !h.SupportsDim(id) {
			log.Warn().Int("device", id).Msg("Device cannot be dimmed")
			continue
		}
		h.limiter.Wait(context.Background())
		light, err := h.bridge.GetLight(id)
		if err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to fetch Hue light")
			continue
		}
		if err := light.Bri(bri); err != nil {
			log.Warn().Err(err).Int("device", id).Int("level", level).Msg("Failed to dim Hue light")
		}
	}
}

func (h *Hue) LastOn(id int) bool {
	light, err := h.bridge.GetLight(id)
	if err != nil || light.State == nil {
		return false
	}
	return light.State.On
}

func (h *Hue) LastDimLevel(id int) int {
	light, err := h.bridge.GetLight(id)
	if err != nil || light.State == nil {
		return 0
	}
	return dimFromHue(light.State.Bri)
}

// hueBrightness maps the 0-255 dim range onto Hue's 1-254 scale.
func hueBrightness(level int) uint8 {
	bri := level * 254 / DimLevelMax
	if bri < 1 {
		bri = 1
	}
	return uint8(bri)
}

// dimFromHue is the inverse of hueBrightness.
func dimFromHue(bri uint8) int {
	return int(bri) * DimLevelMax / 254
}
