package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/presale_layer/internal/app/domain/campaign"
	"github.com/R3E-Network/presale_layer/internal/app/events"
	"github.com/R3E-Network/presale_layer/internal/app/metrics"
	campaignsvc "github.com/R3E-Network/presale_layer/internal/app/services/campaign"
	treasurysvc "github.com/R3E-Network/presale_layer/internal/app/services/treasury"
	"github.com/R3E-Network/presale_layer/internal/app/storage"
	"github.com/R3E-Network/presale_layer/internal/app/storage/memory"
	"github.com/R3E-Network/presale_layer/internal/app/system"
	"github.com/R3E-Network/presale_layer/internal/config"
	"github.com/R3E-Network/presale_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Campaigns   storage.CampaignStore
	AccessLists storage.AccessListStore
	Events      storage.EventStore
	Withdrawals storage.WithdrawalStore
}

// Application ties the campaign service, event fan-out and background
// workers together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	redis   *events.RedisPublisher

	Campaigns *campaignsvc.Service
	Bus       *events.Bus
}

// New builds a fully initialised application with the provided stores. A nil
// config runs with local defaults: in-process payouts, no redis publisher,
// the phase announcer on its default schedule.
func New(stores Stores, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Campaigns == nil {
		stores.Campaigns = mem
	}
	if stores.AccessLists == nil {
		stores.AccessLists = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}
	if stores.Withdrawals == nil {
		stores.Withdrawals = mem
	}

	manager := system.NewManager()

	bus := events.NewBus()
	publishers := []events.Publisher{bus}

	var redisPublisher *events.RedisPublisher
	if cfg != nil && strings.TrimSpace(cfg.Redis.Addr) != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisPublisher = events.NewRedisPublisher(client, cfg.Redis.ChannelPrefix)
		publishers = append(publishers, redisPublisher)
		log.WithField("addr", cfg.Redis.Addr).Info("redis event publisher enabled")
	}

	recorder := events.NewRecorder(stores.Events, log, publishers...)
	campaignService := campaignsvc.New(stores.Campaigns, stores.AccessLists, stores.Withdrawals, recorder, log)

	payoutURL := ""
	payoutKey := ""
	requestTimeout := 10 * time.Second
	pollInterval := 30 * time.Second
	pendingAge := 5 * time.Minute
	principalFormat := "any"
	announcerEnabled := true
	announcerSchedule := "@every 1m"
	if cfg != nil {
		payoutURL = strings.TrimSpace(cfg.Treasury.PayoutURL)
		payoutKey = cfg.Treasury.PayoutKey
		requestTimeout = time.Duration(cfg.Treasury.RequestTimeout) * time.Second
		pollInterval = time.Duration(cfg.Treasury.PollInterval) * time.Second
		pendingAge = time.Duration(cfg.Treasury.PendingAge) * time.Second
		principalFormat = cfg.Campaign.PrincipalFormat
		announcerEnabled = cfg.Announcer.Enabled
		if strings.TrimSpace(cfg.Announcer.Schedule) != "" {
			announcerSchedule = cfg.Announcer.Schedule
		}
	}

	if payoutURL != "" {
		httpClient := &http.Client{Timeout: requestTimeout}
		transferor, err := treasurysvc.NewHTTPTransferor(httpClient, payoutURL, payoutKey, log)
		if err != nil {
			return nil, fmt.Errorf("configure payout transferor: %w", err)
		}
		campaignService.AttachTransferor(transferor)
	} else {
		log.Warn("TREASURY_PAYOUT_URL not set; withdrawals settle locally")
	}

	if principalFormat == "neo-n3" {
		campaignService.AttachValidator(campaignsvc.NeoAddressValidator())
		log.Info("neo n3 principal validation enabled")
	}

	poller := treasurysvc.NewSettlementPoller(stores.Withdrawals, campaignService, treasurysvc.NewTimeoutResolver(pendingAge), log).
		WithInterval(pollInterval)
	services := []system.Service{poller}

	if announcerEnabled {
		announcer := campaignsvc.NewAnnouncer(campaignService, announcerSchedule, log).
			WithObserver(func(counts map[campaign.Phase]int) {
				byName := make(map[string]int, len(counts))
				for phase, n := range counts {
					byName[string(phase)] = n
				}
				metrics.SetCampaignPhases(byName)
			})
		services = append(services, announcer)
	}

	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		redis:     redisPublisher,
		Campaigns: campaignService,
		Bus:       bus,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and closes the event fan-out.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Bus.Close()
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
