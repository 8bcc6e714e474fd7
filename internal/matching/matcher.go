// Package matching scores and selects a print vendor for a job:
// eligibility filtering, haversine distance with a hard radius cutoff,
// rate-table pricing, and a weighted distance/price ranking.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/printhub/printhub-be/internal/domain"
)

// DefaultRadiusKm is the hard distance cutoff for candidate vendors.
const DefaultRadiusKm = 20.0

// VendorSource supplies the active vendor snapshot. Read-only; the
// matcher never mutates vendor records.
type VendorSource interface {
	ListActiveVendors(ctx context.Context) ([]domain.Vendor, error)
}

// Result is a successful match: the selected vendor and the prices the
// job will carry.
type Result struct {
	Vendor       domain.Vendor
	PricePerPage float64
	TotalPrice   float64
}

// Matcher ranks candidate vendors for a job and selects the best one.
type Matcher struct {
	source   VendorSource
	policy   CapabilityPolicy
	radiusKm float64
	logger   *slog.Logger
}

// NewMatcher creates a Matcher. A zero or negative radius falls back to
// DefaultRadiusKm; a nil policy falls back to the permissive default.
func NewMatcher(source VendorSource, policy CapabilityPolicy, radiusKm float64, logger *slog.Logger) *Matcher {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if policy == nil {
		policy = PermissiveCapabilityPolicy
	}
	return &Matcher{
		source:   source,
		policy:   policy,
		radiusKm: radiusKm,
		logger:   logger,
	}
}

type candidate struct {
	vendor       domain.Vendor
	distanceKm   float64
	pricePerPage float64
	totalPrice   float64
	score        float64
}

// Match selects the best vendor for the job, skipping any vendor id in
// excluded. Returns domain.ErrNoEligibleVendor when no candidate
// survives the eligibility, exclusion, and radius checks.
func (m *Matcher) Match(ctx context.Context, job *domain.Job, excluded []string) (*Result, error) {
	vendors, err := m.source.ListActiveVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}

	eligible := Eligible(vendors, job.Requirements(), m.policy)

	excludedSet := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	candidates := make([]candidate, 0, len(eligible))
	for _, v := range eligible {
		if _, ok := excludedSet[v.VendorID]; ok {
			continue
		}

		distance := DistanceKm(job.Latitude, job.Longitude, v.Latitude, v.Longitude)
		if distance > m.radiusKm {
			continue
		}

		pricePerPage := v.PricePerPage(job.Color, job.Duplex)
		totalPrice := domain.TotalPrice(pricePerPage, job.PageCount, job.Copies)

		candidates = append(candidates, candidate{
			vendor:       v,
			distanceKm:   distance,
			pricePerPage: pricePerPage,
			totalPrice:   totalPrice,
			score:        MatchScore(distance, totalPrice),
		})
	}

	if len(candidates) == 0 {
		m.logger.Info("No eligible vendor for job",
			slog.String("job_id", job.JobID),
			slog.Int("snapshot_size", len(vendors)),
			slog.Int("excluded", len(excluded)),
		)
		return nil, domain.ErrNoEligibleVendor
	}

	// Lower score wins; ties break on lowest vendor id for determinism.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].vendor.VendorID < candidates[j].vendor.VendorID
	})

	best := candidates[0]
	m.logger.Info("Vendor matched",
		slog.String("job_id", job.JobID),
		slog.String("vendor_id", best.vendor.VendorID),
		slog.Float64("distance_km", best.distanceKm),
		slog.Float64("total_price", best.totalPrice),
		slog.Float64("score", best.score),
		slog.Int("candidates", len(candidates)),
	)

	return &Result{
		Vendor:       best.vendor,
		PricePerPage: best.pricePerPage,
		TotalPrice:   best.totalPrice,
	}, nil
}
