// Package api exposes the inventory, the loaded scan files and the repair
// analysis over a REST API.
package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"furnacewear/internal/resultcache"
	"furnacewear/internal/store"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/filecache"
	"furnacewear/pkg/repair"
)

// Deps are the collaborators the handlers work on. Proposals and Logger
// may be nil.
type Deps struct {
	Store     *store.Store
	Files     *filecache.Cache
	Params    *analysis.ParamsStore
	Runner    *analysis.Runner
	Calc      *repair.Calculator
	Proposals *resultcache.ProposalCache
	Logger    *slog.Logger
}

// Options tune the HTTP server.
type Options struct {
	// BodyLimit caps request bodies, uploads included, in bytes
	BodyLimit int

	// AccessLog enables the request logger middleware
	AccessLog bool
}

// Server is the REST API.
type Server struct {
	app    *fiber.App
	deps   Deps
	logger *slog.Logger
}

// New builds the fiber application and registers every route.
func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Proposals == nil {
		deps.Proposals = resultcache.NewProposalCache(nil, 0, deps.Logger)
	}
	s := &Server{deps: deps, logger: deps.Logger}

	s.app = fiber.New(fiber.Config{
		AppName:      "furnacewear",
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: s.handleError,
	})

	s.app.Use(recover.New())
	if opts.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"*"},
		AllowMethods: []string{"*"},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health/live", s.liveness)
	s.app.Get("/health/ready", s.readiness)

	v1 := s.app.Group("/api/v1")

	v1.Get("/furnaces", s.listFurnaces)
	v1.Post("/furnaces", s.createFurnace)
	v1.Get("/furnaces/:id", s.getFurnace)
	v1.Put("/furnaces/:id", s.updateFurnace)
	v1.Delete("/furnaces/:id", s.deleteFurnace)

	v1.Get("/furnaces/:id/campaigns", s.listCampaigns)
	v1.Post("/furnaces/:id/campaigns", s.createCampaign)
	v1.Get("/campaigns/:id", s.getCampaign)
	v1.Delete("/campaigns/:id", s.deleteCampaign)

	v1.Get("/campaigns/:id/scans", s.listScans)
	v1.Post("/campaigns/:id/scans", s.uploadScan)
	v1.Get("/scans/:id", s.getScan)
	v1.Delete("/scans/:id", s.deleteScan)

	v1.Get("/files", s.listFiles)
	v1.Get("/files/:name", s.getFile)
	v1.Get("/files/:name/buffers", s.fileBuffers)
	v1.Get("/files/:name/grid", s.fileGrid)
	v1.Get("/files/:name/profiles/:index", s.fileProfile)
	v1.Get("/files/:name/stats", s.fileStats)
	v1.Get("/files/:name/proposal", s.fileProposal)
	v1.Get("/compare", s.compareFiles)

	v1.Get("/analysis/params", s.getParams)
	v1.Put("/analysis/params", s.putParams)
	v1.Post("/analysis/run", s.runAnalysis)
	v1.Get("/analysis/latest", s.latestAnalysis)
	v1.Get("/materials", s.listMaterials)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves the API on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
