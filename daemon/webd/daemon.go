// Package webd is the HTTP ingestion and query daemon: devices post
// driving events, operators query last-known fixes and request
// segmentation of fix histories.
package webd

import (
	"log"
	"log/slog"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/trip"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig
	logger *slog.Logger

	feedIngested event.FeedOf[[]trip.DrivingEvent]

	// segmentCache holds recent segmentation responses keyed by request
	// body hash; replayed queries skip recomputation.
	segmentCache *lru.Cache[uint64, []byte]

	meterEventsIn  metrics.Meter
	meterEventsBad metrics.Meter
	meterSegments  metrics.Meter
}

func NewWebDaemon(config *params.WebDaemonConfig) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	// Meters are silent no-ops without this global setting.
	metrics.Enabled = true
	cache, _ := lru.New[uint64, []byte](config.SegmentCacheSize)
	return &WebDaemon{
		Config: config,

		logger:       slog.With("d", "web"),
		feedIngested: event.FeedOf[[]trip.DrivingEvent]{},
		segmentCache: cache,

		meterEventsIn:  metrics.NewRegisteredMeter("webd/events/in", nil),
		meterEventsBad: metrics.NewRegisteredMeter("webd/events/bad", nil),
		meterSegments:  metrics.NewRegisteredMeter("webd/segments", nil),
	}
}

// Run starts the HTTP server and waits for it, returning any server
// error.
func (s *WebDaemon) Run() error {
	router := s.NewRouter()
	listener, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	log.Printf("Starting web daemon on %s://%s", s.Config.Network, s.Config.Address)
	return http.Serve(listener, router)
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint.
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/v1/status").HandlerFunc(s.handleStatus).Methods(http.MethodGet)
	apiJSONRoutes.Path("/v1/devices/{device}/last").HandlerFunc(s.handleLastKnown).Methods(http.MethodGet)
	apiJSONRoutes.Path("/v1/events").HandlerFunc(s.handleEvents).Methods(http.MethodPost)
	apiJSONRoutes.Path("/v1/segment").HandlerFunc(s.handleSegment).Methods(http.MethodPost)

	return router
}
