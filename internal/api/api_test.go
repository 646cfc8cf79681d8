package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnacewear/internal/models"
	"furnacewear/internal/resultcache"
	"furnacewear/internal/store"
	"furnacewear/pkg/analysis"
	"furnacewear/pkg/filecache"
	"furnacewear/pkg/ingest"
	"furnacewear/pkg/repair"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	catalogue, err := repair.NewCatalogue(repair.DefaultMaterials())
	require.NoError(t, err)
	calc := repair.NewCalculator(repair.DefaultConstants(), catalogue)

	params, err := analysis.NewParamsStore(models.AnalysisParams{
		RepairMaterial:       "magnesia-gunning",
		WearThreshold:        20,
		DistanceBetweenAreas: 0.5,
		MinimumAreaSize:      10,
		ClusterMode:          models.ClusterSeedAnchored,
	})
	require.NoError(t, err)

	runner := analysis.NewRunner(calc, nil)
	t.Cleanup(runner.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	proposals := resultcache.NewProposalCache(resultcache.NewRedisProviderFromClient(client), time.Minute, nil)
	t.Cleanup(func() { proposals.Close() })

	return New(Deps{
		Store:     st,
		Files:     filecache.New(filecache.Options{Workers: 2}),
		Params:    params,
		Runner:    runner,
		Calc:      calc,
		Proposals: proposals,
	}, Options{})
}

// scanCSV builds a scan with one worn clump of 12 points at the roof.
func scanCSV() string {
	var b strings.Builder
	b.WriteString("x,y,z,thickness\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%g,%g,1,%g\n", float64(i%10)-4.5, float64(i/10)*0.8, 50.0)
	}
	for k := 0; k < 12; k++ {
		fmt.Fprintf(&b, "%g,4.2,1,15\n", 0.01*float64(k))
	}
	return b.String()
}

func do(t *testing.T, s *Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(t, s, req)
}

func send(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func upload(t *testing.T, s *Server, campaignID, name, content string) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+campaignID+"/scans", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return send(t, s, req)
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func createCampaign(t *testing.T, s *Server) (models.Furnace, models.Campaign) {
	t.Helper()
	resp, data := do(t, s, http.MethodPost, "/api/v1/furnaces", map[string]string{"name": "EAF-1", "location": "Melt shop"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	furnace := decode[models.Furnace](t, data)

	resp, data = do(t, s, http.MethodPost, "/api/v1/furnaces/"+furnace.ID+"/campaigns", map[string]string{"name": "C-42"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	return furnace, decode[models.Campaign](t, data)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, _ := do(t, s, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := do(t, s, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", decode[map[string]any](t, data)["status"])
}

func TestFurnaceCRUD(t *testing.T) {
	s := newTestServer(t)

	resp, data := do(t, s, http.MethodPost, "/api/v1/furnaces", map[string]string{"name": "BOF-2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	f := decode[models.Furnace](t, data)
	assert.NotEmpty(t, f.ID)

	resp, data = do(t, s, http.MethodPut, "/api/v1/furnaces/"+f.ID, map[string]string{"name": "BOF-2", "location": "North"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "North", decode[models.Furnace](t, data).Location)

	resp, data = do(t, s, http.MethodGet, "/api/v1/furnaces", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Furnace](t, data), 1)

	resp, _ = do(t, s, http.MethodPost, "/api/v1/furnaces", map[string]string{"name": "BOF-2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = do(t, s, http.MethodPost, "/api/v1/furnaces", map[string]string{"name": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, data)["error"], "name is required")

	resp, _ = do(t, s, http.MethodDelete, "/api/v1/furnaces/"+f.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, s, http.MethodGet, "/api/v1/furnaces/"+f.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadScan(t *testing.T) {
	s := newTestServer(t)
	furnace, campaign := createCampaign(t, s)

	resp, data := upload(t, s, campaign.ID, "scan_2024-03-18.csv", scanCSV())
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	created := decode[struct {
		Scan    models.Scan    `json:"scan"`
		Summary models.Summary `json:"summary"`
	}](t, data)
	assert.Equal(t, 72, created.Scan.PointCount)
	assert.Equal(t, 2024, created.Scan.ScannedAt.Year())
	assert.Equal(t, 72, created.Summary.PointCount)

	f, ok := s.deps.Files.Snapshot().Get("scan_2024-03-18.csv")
	require.True(t, ok)
	assert.Equal(t, furnace.ID, f.Points[0].FurnaceID)

	// the same file name cannot be recorded twice
	resp, _ = upload(t, s, campaign.ID, "scan_2024-03-18.csv", scanCSV())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = upload(t, s, campaign.ID, "bad.csv", "a,b,c\n1,2,3\n")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, data)["error"], "bad.csv")
	_, ok = s.deps.Files.Snapshot().Get("bad.csv")
	assert.False(t, ok)

	resp, _ = upload(t, s, "missing", "other.csv", scanCSV())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = do(t, s, http.MethodGet, "/api/v1/campaigns/"+campaign.ID+"/scans", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Scan](t, data), 1)

	// furnaces with campaigns are not deleted
	resp, _ = do(t, s, http.MethodDelete, "/api/v1/furnaces/"+furnace.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, s, http.MethodDelete, "/api/v1/campaigns/"+campaign.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/scan_2024-03-18.csv", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteScanUnloadsFile(t *testing.T) {
	s := newTestServer(t)
	_, campaign := createCampaign(t, s)

	resp, data := upload(t, s, campaign.ID, "scan.csv", scanCSV())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	scanID := decode[struct {
		Scan models.Scan `json:"scan"`
	}](t, data).Scan.ID

	resp, _ = do(t, s, http.MethodGet, "/api/v1/scans/"+scanID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, s, http.MethodDelete, "/api/v1/scans/"+scanID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.deps.Files.Snapshot().Len())

	resp, _ = do(t, s, http.MethodDelete, "/api/v1/scans/"+scanID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func loadFile(t *testing.T, s *Server, name string) {
	t.Helper()
	f, err := s.deps.Files.Parse(ingest.Blob{Name: name, Content: scanCSV()}, "")
	require.NoError(t, err)
	s.deps.Files.Put(f)
}

func TestFileViews(t *testing.T) {
	s := newTestServer(t)
	loadFile(t, s, "a.csv")

	resp, data := do(t, s, http.MethodGet, "/api/v1/files", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		Files  []models.Summary `json:"files"`
		Global struct {
			Min, Max    float64
			Initialized bool
		} `json:"global"`
	}](t, data)
	require.Len(t, list.Files, 1)
	assert.True(t, list.Global.Initialized)
	assert.Equal(t, 15.0, list.Global.Min)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/buffers?band=critical", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := decode[struct {
		Count     int       `json:"count"`
		Positions []float32 `json:"positions"`
		Colors    []float32 `json:"colors"`
	}](t, data)
	assert.Equal(t, 12, buf.Count)
	assert.Len(t, buf.Positions, 36)
	assert.Len(t, buf.Colors, 36)

	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/a.csv/buffers?band=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/a.csv/buffers?global=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/grid", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	grid := decode[analysis.Grid](t, data)
	assert.Len(t, grid.Zones, len(models.Zones))
	assert.Zero(t, grid.Cells[2][0].Count)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/grid?fill=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	filled := decode[analysis.Grid](t, data)
	assert.True(t, filled.Cells[2][0].Estimated)
	assert.Greater(t, filled.Cells[2][0].Mean, 0.0)

	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/a.csv/profiles/10", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/a.csv/profiles/20", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 72, decode[analysis.Stats](t, data).Count)

	resp, _ = do(t, s, http.MethodGet, "/api/v1/files/missing.csv/stats", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompare(t *testing.T) {
	s := newTestServer(t)
	loadFile(t, s, "a.csv")
	loadFile(t, s, "b.csv")

	resp, data := do(t, s, http.MethodGet, "/api/v1/compare?base=a.csv&target=b.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cmp := decode[analysis.Comparison](t, data)
	assert.Equal(t, "a.csv", cmp.Base)
	assert.Zero(t, cmp.MeanDelta)

	resp, _ = do(t, s, http.MethodGet, "/api/v1/compare?base=a.csv", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, s, http.MethodGet, "/api/v1/compare?base=a.csv&target=c.csv", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type proposalResponse struct {
	File          string          `json:"file"`
	ParamsVersion uint64          `json:"paramsVersion"`
	Proposal      models.Proposal `json:"proposal"`
}

func TestFileProposalCached(t *testing.T) {
	s := newTestServer(t)
	loadFile(t, s, "a.csv")

	resp, data := do(t, s, http.MethodGet, "/api/v1/files/a.csv/proposal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
	first := decode[proposalResponse](t, data)
	require.Len(t, first.Proposal.Areas, 1)
	assert.Equal(t, 12, first.Proposal.Areas[0].PointCount)
	assert.Empty(t, first.Proposal.Areas[0].Points)
	assert.Greater(t, first.Proposal.Total.Weight, 0.0)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/proposal", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Cache"))
	assert.Equal(t, first.Proposal, decode[proposalResponse](t, data).Proposal)

	resp, data = do(t, s, http.MethodGet, "/api/v1/files/a.csv/proposal?points=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[proposalResponse](t, data).Proposal.Areas[0].Points, 12)
}

func TestParams(t *testing.T) {
	s := newTestServer(t)

	resp, data := do(t, s, http.MethodGet, "/api/v1/materials", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Material](t, data), len(repair.DefaultMaterials()))

	resp, _ = do(t, s, http.MethodPut, "/api/v1/analysis/params", map[string]any{"repairMaterial": "unobtainium"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPut, "/api/v1/analysis/params", map[string]any{"minimumAreaSize": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = do(t, s, http.MethodPut, "/api/v1/analysis/params", map[string]any{"wearThreshold": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	updated := decode[struct {
		Params  models.AnalysisParams `json:"params"`
		Version uint64                `json:"version"`
	}](t, data)
	assert.Equal(t, uint64(2), updated.Version)
	assert.Equal(t, 10.0, updated.Params.WearThreshold)
	assert.Equal(t, "magnesia-gunning", updated.Params.RepairMaterial)

	params, version := s.deps.Params.Get()
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, 10.0, params.WearThreshold)
}

func TestRunAnalysis(t *testing.T) {
	s := newTestServer(t)
	loadFile(t, s, "a.csv")

	resp, _ := do(t, s, http.MethodGet, "/api/v1/analysis/latest", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, "/api/v1/analysis/run", map[string]string{"file": "missing.csv"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data := do(t, s, http.MethodPost, "/api/v1/analysis/run", map[string]string{"file": "a.csv"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	gen := decode[map[string]any](t, data)["generation"].(float64)

	resp, data = do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/analysis/latest?wait=%d", int(gen)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	res := decode[analysis.Result](t, data)
	assert.Equal(t, "a.csv", res.File)
	assert.Empty(t, res.Error)
	assert.Len(t, res.Proposal.Areas, 1)

	// a parameter change reruns the last file
	resp, data = do(t, s, http.MethodPut, "/api/v1/analysis/params", map[string]any{"minimumAreaSize": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decode[map[string]any](t, data)["generation"].(float64)
	assert.Greater(t, next, gen)

	resp, data = do(t, s, http.MethodGet, fmt.Sprintf("/api/v1/analysis/latest?wait=%d", int(next)), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[analysis.Result](t, data)
	assert.Equal(t, uint64(2), res.ParamsVersion)
	assert.Empty(t, res.Proposal.Areas)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	resp, data := do(t, s, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, data), "error")
}
