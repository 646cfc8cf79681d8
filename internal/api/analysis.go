package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"furnacewear/pkg/analysis"
)

// maxAwait bounds how long /analysis/latest?wait= blocks.
const maxAwait = 30 * time.Second

type runRequest struct {
	File string `json:"file"`
}

func (s *Server) getParams(c fiber.Ctx) error {
	params, version := s.deps.Params.Get()
	return c.JSON(fiber.Map{"params": params, "version": version})
}

// putParams merges the body over the current parameters, stores them and
// reruns the last analysis with the new version.
func (s *Server) putParams(c fiber.Ctx) error {
	params, _ := s.deps.Params.Get()
	if err := decodeBody(c, &params); err != nil {
		return err
	}
	if _, err := s.deps.Calc.Materials().Lookup(params.RepairMaterial); err != nil {
		return err
	}
	version, err := s.deps.Params.Set(params)
	if err != nil {
		return badRequest(err.Error())
	}
	s.logger.Info("analysis parameters updated", "version", version,
		"material", params.RepairMaterial, "threshold", params.WearThreshold, "mode", params.ClusterMode)

	resp := fiber.Map{"params": params, "version": version}
	if gen, ok := s.deps.Runner.Resubmit(params, version); ok {
		resp["generation"] = gen
	}
	return c.JSON(resp)
}

func (s *Server) listMaterials(c fiber.Ctx) error {
	return c.JSON(s.deps.Calc.Materials().List())
}

// runAnalysis queues a proposal for a loaded file on the background
// runner, superseding any job still in flight.
func (s *Server) runAnalysis(c fiber.Ctx) error {
	var req runRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.File == "" {
		return badRequest("file is required")
	}
	f, err := s.lookupFile(req.File)
	if err != nil {
		return err
	}
	params, version := s.deps.Params.Get()
	gen := s.deps.Runner.Submit(analysis.Job{File: f, Params: params, ParamsVersion: version})
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"generation":    gen,
		"file":          f.Name,
		"paramsVersion": version,
	})
}

// latestAnalysis returns the newest published result. With ?wait=<generation>
// it blocks until that generation, or a newer one, is published.
func (s *Server) latestAnalysis(c fiber.Ctx) error {
	if v := c.Query("wait"); v != "" {
		gen, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest("wait must be a generation number")
		}
		ctx, cancel := context.WithTimeout(c.Context(), maxAwait)
		defer cancel()
		res, err := s.deps.Runner.Await(ctx, gen)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fiber.NewError(http.StatusRequestTimeout, "analysis still running")
		case errors.Is(err, analysis.ErrRunnerClosed):
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		case err != nil:
			return err
		}
		return c.JSON(res)
	}

	res, ok := s.deps.Runner.Latest()
	if !ok {
		return fiber.NewError(http.StatusNotFound, "no analysis has completed")
	}
	return c.JSON(res)
}
