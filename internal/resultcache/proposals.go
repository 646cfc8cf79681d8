package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"furnacewear/internal/models"
)

const proposalPrefix = "proposal:"

// ProposalCache stores proposals keyed by file and analysis parameters.
type ProposalCache struct {
	provider Provider
	ttl      time.Duration
	logger   *slog.Logger
}

// NewProposalCache wraps provider; a nil provider disables caching.
func NewProposalCache(provider Provider, ttl time.Duration, logger *slog.Logger) *ProposalCache {
	if provider == nil {
		provider = NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProposalCache{provider: provider, ttl: ttl, logger: logger}
}

// Key identifies a proposal for one parse of a file under one parameter set.
// Re-uploading a file changes its parse time and therefore the key.
func Key(file *models.ParsedFile, params models.AnalysisParams) string {
	payload, _ := json.Marshal(struct {
		Params   models.AnalysisParams `json:"p"`
		ParsedAt int64                 `json:"t"`
	}{params, file.ParsedAt.UnixNano()})
	sum := sha256.Sum256(payload)
	return proposalPrefix + file.Name + ":" + hex.EncodeToString(sum[:12])
}

// Get returns a cached proposal. Cache failures other than a miss are
// logged and reported as a miss.
func (c *ProposalCache) Get(ctx context.Context, file *models.ParsedFile, params models.AnalysisParams) (models.Proposal, bool) {
	key := Key(file, params)
	data, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("proposal cache read failed", "key", key, "error", err)
		}
		return models.Proposal{}, false
	}
	var p models.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("discarding corrupt cached proposal", "key", key, "error", err)
		_ = c.provider.Del(ctx, key)
		return models.Proposal{}, false
	}
	return p, true
}

// Set stores a proposal without its member points.
func (c *ProposalCache) Set(ctx context.Context, file *models.ParsedFile, params models.AnalysisParams, p models.Proposal) error {
	data, err := json.Marshal(WithoutPoints(p))
	if err != nil {
		return fmt.Errorf("failed to marshal proposal: %w", err)
	}
	return c.provider.Set(ctx, Key(file, params), data, c.ttl)
}

// Close closes the underlying provider.
func (c *ProposalCache) Close() error { return c.provider.Close() }

// WithoutPoints returns a copy of p whose areas carry only their summaries.
func WithoutPoints(p models.Proposal) models.Proposal {
	areas := make([]models.RepairArea, len(p.Areas))
	for i, a := range p.Areas {
		a.Points = nil
		areas[i] = a
	}
	p.Areas = areas
	return p
}
