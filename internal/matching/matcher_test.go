package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/printhub/printhub-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVendorSource struct {
	vendors []domain.Vendor
	err     error
}

func (s *fakeVendorSource) ListActiveVendors(ctx context.Context) ([]domain.Vendor, error) {
	return s.vendors, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Job dropped near MG Road, Bangalore.
func testJob() *domain.Job {
	return &domain.Job{
		JobID:     "job-1",
		PaperSize: domain.PaperSizeA4,
		Copies:    2,
		PageCount: 5,
		Latitude:  12.9716,
		Longitude: 77.5946,
	}
}

func vendorAt(id string, lat, lon, rate float64) domain.Vendor {
	v := baseVendor(id)
	v.Latitude = lat
	v.Longitude = lon
	v.PriceBWSingle = rate
	v.PriceBWDouble = rate
	v.PriceColorSingle = rate * 2
	v.PriceColorDouble = rate * 2
	return v
}

func TestMatcher_Match_SelectsBestScore(t *testing.T) {
	// v-near is ~4.6 km away, v-far ~73 km (outside the 20 km radius).
	source := &fakeVendorSource{vendors: []domain.Vendor{
		vendorAt("v-far", 13.5000, 78.0000, 1.00),
		vendorAt("v-near", 12.9352, 77.6146, 2.50),
	}}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	result, err := m.Match(context.Background(), testJob(), nil)
	require.NoError(t, err)

	assert.Equal(t, "v-near", result.Vendor.VendorID)
	assert.Equal(t, 2.50, result.PricePerPage)
	// 5 pages x 2 copies x 2.50/page
	assert.Equal(t, 25.00, result.TotalPrice)
}

func TestMatcher_Match_RadiusCutoff(t *testing.T) {
	source := &fakeVendorSource{vendors: []domain.Vendor{
		vendorAt("v-far", 13.5000, 78.0000, 1.00),
	}}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	_, err := m.Match(context.Background(), testJob(), nil)
	assert.ErrorIs(t, err, domain.ErrNoEligibleVendor)
}

func TestMatcher_Match_TieBreaksOnLowestVendorID(t *testing.T) {
	// Identical location and rates, so identical scores.
	source := &fakeVendorSource{vendors: []domain.Vendor{
		vendorAt("v-b", 12.9352, 77.6146, 2.00),
		vendorAt("v-a", 12.9352, 77.6146, 2.00),
	}}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	result, err := m.Match(context.Background(), testJob(), nil)
	require.NoError(t, err)
	assert.Equal(t, "v-a", result.Vendor.VendorID)
}

func TestMatcher_Match_SkipsExcludedVendors(t *testing.T) {
	source := &fakeVendorSource{vendors: []domain.Vendor{
		vendorAt("v-1", 12.9352, 77.6146, 1.00),
		vendorAt("v-2", 12.9352, 77.6146, 2.00),
	}}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	result, err := m.Match(context.Background(), testJob(), []string{"v-1"})
	require.NoError(t, err)
	assert.Equal(t, "v-2", result.Vendor.VendorID)

	_, err = m.Match(context.Background(), testJob(), []string{"v-1", "v-2"})
	assert.ErrorIs(t, err, domain.ErrNoEligibleVendor)
}

func TestMatcher_Match_UsesRateForColorDuplex(t *testing.T) {
	v := vendorAt("v-1", 12.9352, 77.6146, 1.00)
	v.PriceBWSingle = 1.00
	v.PriceBWDouble = 1.50
	v.PriceColorSingle = 3.00
	v.PriceColorDouble = 4.00
	source := &fakeVendorSource{vendors: []domain.Vendor{v}}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	tests := []struct {
		name     string
		color    bool
		duplex   bool
		wantRate float64
	}{
		{"bw single", false, false, 1.00},
		{"bw duplex", false, true, 1.50},
		{"color single", true, false, 3.00},
		{"color duplex", true, true, 4.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := testJob()
			job.Color = tt.color
			job.Duplex = tt.duplex

			result, err := m.Match(context.Background(), job, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, result.PricePerPage)
			assert.Equal(t, domain.TotalPrice(tt.wantRate, job.PageCount, job.Copies), result.TotalPrice)
		})
	}
}

func TestMatcher_Match_SourceError(t *testing.T) {
	source := &fakeVendorSource{err: errors.New("db down")}
	m := NewMatcher(source, PermissiveCapabilityPolicy, DefaultRadiusKm, testLogger())

	_, err := m.Match(context.Background(), testJob(), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNoEligibleVendor)
}

func TestMatcher_Match_EmptySnapshot(t *testing.T) {
	m := NewMatcher(&fakeVendorSource{}, nil, 0, testLogger())

	_, err := m.Match(context.Background(), testJob(), nil)
	assert.ErrorIs(t, err, domain.ErrNoEligibleVendor)
}
