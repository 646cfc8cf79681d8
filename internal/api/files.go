package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"furnacewear/internal/metrics"
	"furnacewear/internal/models"
	"furnacewear/internal/resultcache"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/colormap"
	"furnacewear/pkg/interpolation"
)

// loadedFile resolves the :name route parameter against the file cache.
func (s *Server) loadedFile(c fiber.Ctx) (*models.ParsedFile, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return nil, badRequest("invalid file name")
	}
	return s.lookupFile(name)
}

func (s *Server) lookupFile(name string) (*models.ParsedFile, error) {
	f, ok := s.deps.Files.Snapshot().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errFileNotLoaded, name)
	}
	return f, nil
}

// queryBool reads a boolean query parameter, false when absent.
func queryBool(c fiber.Ctx, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest(fmt.Sprintf("invalid %s: %q", key, v))
	}
	return b, nil
}

func (s *Server) listFiles(c fiber.Ctx) error {
	snap := s.deps.Files.Snapshot()
	return c.JSON(fiber.Map{
		"files":  snap.Summaries(),
		"global": snap.GlobalRange(),
	})
}

func (s *Server) getFile(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	return c.JSON(f.Summary())
}

// fileBuffers returns renderer buffers, optionally colored against the
// global range and filtered by a wear band.
func (s *Server) fileBuffers(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	band, err := colormap.ParseWearBand(c.Query("band"))
	if err != nil {
		return badRequest(err.Error())
	}
	useGlobal, err := queryBool(c, "global")
	if err != nil {
		return err
	}
	global := s.deps.Files.Snapshot().GlobalRange()
	buf := colormap.BuildBuffers(f.Points, colormap.FileRange(f), useGlobal, global, band)
	return c.JSON(fiber.Map{
		"name":      f.Name,
		"count":     buf.Len(),
		"band":      band,
		"positions": buf.Positions,
		"colors":    buf.Colors,
	})
}

// fileGrid returns the zone by profile grid. With ?fill=true empty cells
// are estimated by kriging.
func (s *Server) fileGrid(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	fill, err := queryBool(c, "fill")
	if err != nil {
		return err
	}
	g := analysis.BuildGrid(f.Points)
	if fill {
		if _, err := analysis.FillGrid(g, interpolation.Spherical); err != nil {
			return err
		}
	}
	return c.JSON(g)
}

func (s *Server) fileProfile(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest("profile index must be an integer")
	}
	useGlobal, err := queryBool(c, "global")
	if err != nil {
		return err
	}
	points, err := analysis.Profile(f, index, useGlobal, s.deps.Files.Snapshot().GlobalRange())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"name": f.Name, "index": index, "points": points})
}

func (s *Server) fileStats(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	return c.JSON(analysis.ComputeStats(f.Points))
}

func (s *Server) compareFiles(c fiber.Ctx) error {
	baseName, targetName := c.Query("base"), c.Query("target")
	if baseName == "" || targetName == "" {
		return badRequest("base and target are required")
	}
	base, err := s.lookupFile(baseName)
	if err != nil {
		return err
	}
	target, err := s.lookupFile(targetName)
	if err != nil {
		return err
	}
	return c.JSON(analysis.Compare(base, target))
}

// fileProposal computes the repair proposal of a file with the current
// parameters. Point-free results are served from the proposal cache;
// ?points=true bypasses it and returns the area members as well.
func (s *Server) fileProposal(c fiber.Ctx) error {
	f, err := s.loadedFile(c)
	if err != nil {
		return err
	}
	withPoints, err := queryBool(c, "points")
	if err != nil {
		return err
	}
	ctx := c.Context()
	params, version := s.deps.Params.Get()

	if !withPoints {
		if p, ok := s.deps.Proposals.Get(ctx, f, params); ok {
			c.Set("X-Cache", "hit")
			return c.JSON(fiber.Map{"file": f.Name, "paramsVersion": version, "proposal": p})
		}
	}

	start := time.Now()
	p, err := s.deps.Calc.Propose(ctx, f.Points, params)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveProposal(string(params.ClusterMode), time.Since(start), outcome)
	if err != nil {
		return err
	}

	if err := s.deps.Proposals.Set(ctx, f, params, p); err != nil {
		s.logger.Warn("proposal not cached", "file", f.Name, "error", err)
	}
	if !withPoints {
		p = resultcache.WithoutPoints(p)
	}
	c.Set("X-Cache", "miss")
	return c.JSON(fiber.Map{"file": f.Name, "paramsVersion": version, "proposal": p})
}
