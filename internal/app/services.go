package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tellhaus/masd/internal/config"
	"github.com/tellhaus/masd/internal/db"
	"github.com/tellhaus/masd/internal/device"
	"github.com/tellhaus/masd/internal/rules"
	"github.com/tellhaus/masd/internal/scheduler"
	"github.com/tellhaus/masd/internal/webapi"
)

// Services is a container for all application services. It manages
// service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	DB         *db.DB
	Controller device.Controller
	Scheduler  *scheduler.Scheduler
	WebAPI     *webapi.Server
}

// NewServices creates all services with proper dependency injection.
// The initial rule set is parsed here; a syntax error in the rules file
// is fatal at startup, unlike later reloads which keep the live set.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	ctrl, err := s.newController()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Controller = ctrl

	rs, err := rules.ParseFile(cfg.Rules)
	if err != nil {
		s.Close()
		return nil, err
	}
	log.Info().
		Str("path", cfg.Rules).
		Int("events", len(rs.Events)).
		Int("groups", rs.Groups.Len()).
		Msg("Rules loaded")

	s.Scheduler = scheduler.New(ctrl, rs)

	if cfg.WebAPI.Enabled {
		s.WebAPI = webapi.NewServer(cfg.WebAPI.Host, cfg.WebAPI.Port, ctrl, s.Scheduler, cfg.Rules)
	}

	return s, nil
}

// newController builds the device backend selected by the configuration.
func (s *Services) newController() (device.Controller, error) {
	cfg := &s.cfg.Device

	switch cfg.Backend {
	case "debug":
		return device.NewDebug(cfg.Descriptors()), nil

	case "virtual":
		database, err := db.Open(cfg.Virtual.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		return device.NewVirtual(cfg.Descriptors(), database.DB), nil

	case "hue":
		if cfg.Hue.Bridge == "" || cfg.Hue.Token == "" {
			return nil, fmt.Errorf("hue backend requires bridge and token")
		}
		return device.NewHue(cfg.Hue.Bridge, cfg.Hue.Token, cfg.RateLimitRPS)

	case "mqtt":
		if cfg.MQTT.Broker == "" {
			return nil, fmt.Errorf("mqtt backend requires a broker URL")
		}
		return device.NewMQTT(cfg.Descriptors(), device.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Timeout:     cfg.MQTT.Timeout.Duration(),
			RateRPS:     cfg.RateLimitRPS,
		})

	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Backend)
	}
}

// Start starts all background services.
func (s *Services) Start(ctx context.Context) {
	go func() {
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	if s.WebAPI != nil {
		go func() {
			if err := s.WebAPI.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
				log.Error().Err(err).Msg("Web API server error")
			}
		}()
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if closer, ok := s.Controller.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Controller close error")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
