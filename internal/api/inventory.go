package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v3"

	"furnacewear/internal/models"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/ingest"
)

type furnaceRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type campaignRequest struct {
	Name      string     `json:"name"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// decodeBody unmarshals a JSON request body into v.
func decodeBody(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return badRequest("empty body")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return badRequest("invalid json: " + err.Error())
	}
	return nil
}

func (s *Server) listFurnaces(c fiber.Ctx) error {
	furnaces, err := s.deps.Store.ListFurnaces(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(furnaces)
}

func (s *Server) createFurnace(c fiber.Ctx) error {
	var req furnaceRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	f, err := s.deps.Store.CreateFurnace(c.Context(), models.Furnace{Name: req.Name, Location: req.Location})
	if err != nil {
		return err
	}
	s.logger.Info("furnace created", "id", f.ID, "name", f.Name)
	return c.Status(http.StatusCreated).JSON(f)
}

func (s *Server) getFurnace(c fiber.Ctx) error {
	f, err := s.deps.Store.GetFurnace(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(f)
}

func (s *Server) updateFurnace(c fiber.Ctx) error {
	var req furnaceRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	f, err := s.deps.Store.UpdateFurnace(c.Context(), models.Furnace{
		ID:       c.Params("id"),
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(f)
}

func (s *Server) deleteFurnace(c fiber.Ctx) error {
	if err := s.deps.Store.DeleteFurnace(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) listCampaigns(c fiber.Ctx) error {
	campaigns, err := s.deps.Store.ListCampaigns(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(campaigns)
}

func (s *Server) createCampaign(c fiber.Ctx) error {
	var req campaignRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.EndedAt != nil && !req.StartedAt.IsZero() && req.EndedAt.Before(req.StartedAt) {
		return badRequest("endedAt is before startedAt")
	}
	cp, err := s.deps.Store.CreateCampaign(c.Context(), models.Campaign{
		FurnaceID: c.Params("id"),
		Name:      req.Name,
		StartedAt: req.StartedAt,
		EndedAt:   req.EndedAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(cp)
}

func (s *Server) getCampaign(c fiber.Ctx) error {
	cp, err := s.deps.Store.GetCampaign(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(cp)
}

// deleteCampaign removes the campaign, its scans and their loaded files.
func (s *Server) deleteCampaign(c fiber.Ctx) error {
	names, err := s.deps.Store.DeleteCampaign(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	for _, name := range names {
		s.deps.Files.Remove(name)
	}
	s.logger.Info("campaign deleted", "id", c.Params("id"), "scans", len(names))
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) listScans(c fiber.Ctx) error {
	scans, err := s.deps.Store.ListScans(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(scans)
}

// uploadScan parses a multipart "file" into the file cache and records it
// under the campaign. Parse errors are rejected before anything is stored.
func (s *Server) uploadScan(c fiber.Ctx) error {
	ctx := c.Context()
	campaign, err := s.deps.Store.GetCampaign(ctx, c.Params("id"))
	if err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest("file required in multipart/form-data")
	}
	src, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	name := filepath.Base(header.Filename)
	f, err := s.deps.Files.Parse(ingest.Blob{Name: name, Content: string(data)}, campaign.FurnaceID)
	if err != nil {
		s.logger.Warn("upload rejected", "file", name, "error", err)
		return err
	}

	scan := models.Scan{
		CampaignID:   campaign.ID,
		FileName:     f.Name,
		PointCount:   len(f.Points),
		MinThickness: f.MinThickness,
		MaxThickness: f.MaxThickness,
	}
	if ts, ok := analysis.ScanTime(f); ok {
		scan.ScannedAt = ts
	}
	scan, err = s.deps.Store.CreateScan(ctx, scan)
	if err != nil {
		return err
	}
	s.deps.Files.Put(f)

	s.logger.Info("scan uploaded", "file", f.Name, "campaign", campaign.ID,
		"points", len(f.Points), "skipped", f.SkippedRows)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"scan":    scan,
		"summary": f.Summary(),
	})
}

func (s *Server) getScan(c fiber.Ctx) error {
	sc, err := s.deps.Store.GetScan(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sc)
}

// deleteScan removes the scan record and unloads its file.
func (s *Server) deleteScan(c fiber.Ctx) error {
	sc, err := s.deps.Store.DeleteScan(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	s.deps.Files.Remove(sc.FileName)
	return c.SendStatus(http.StatusNoContent)
}
