package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
}

func TestContextResolver_Resolve(t *testing.T) {
	r := security.NewContextResolver(14, 31).WithClock(fixedNow)

	claims := map[string]any{
		"nameid":                    "user-7",
		"tid":                       "tenant-a",
		"currentBusinessLocationId": float64(42),
	}

	t.Run("claim fallbacks and default window", func(t *testing.T) {
		rc, err := r.Resolve(security.ResolveInput{Claims: claims})
		require.NoError(t, err)

		assert.Equal(t, "user-7", rc.UserID)
		assert.Equal(t, "tenant-a", rc.TenantID)
		assert.Equal(t, "42", rc.LocationID)
		assert.Equal(t, domain.Date("2026-03-02"), rc.DateRange.Start)
		assert.Equal(t, domain.Date("2026-03-15"), rc.DateRange.End)
		assert.Equal(t, 14, rc.DateRange.Days())
	})

	t.Run("explicit range and matching scope", func(t *testing.T) {
		rc, err := r.Resolve(security.ResolveInput{
			Claims:     claims,
			TenantID:   "tenant-a",
			LocationID: "42",
			StartDate:  "2026-04-01",
			EndDate:    "2026-04-01T00:00:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, rc.DateRange.Days())
	})

	t.Run("end only uses today as start", func(t *testing.T) {
		rc, err := r.Resolve(security.ResolveInput{Claims: claims, EndDate: "2026-03-05"})
		require.NoError(t, err)
		assert.Equal(t, 4, rc.DateRange.Days())
	})
}

func TestContextResolver_Errors(t *testing.T) {
	r := security.NewContextResolver(14, 31).WithClock(fixedNow)
	good := map[string]any{"sub": "u1", "tenantId": "t1", "locationId": "l1"}

	tests := []struct {
		name      string
		in        security.ResolveInput
		wantRange bool
		field     string
		mismatch  bool
	}{
		{
			name:  "missing user",
			in:    security.ResolveInput{Claims: map[string]any{"tenantId": "t1", "locationId": "l1"}},
			field: "user_id",
		},
		{
			name:  "empty tenant",
			in:    security.ResolveInput{Claims: map[string]any{"sub": "u1", "tenantId": "  ", "locationId": "l1"}},
			field: "tenant_id",
		},
		{
			name:  "malformed location",
			in:    security.ResolveInput{Claims: map[string]any{"sub": "u1", "tenantId": "t1", "locationId": "l1; drop"}},
			field: "location_id",
		},
		{
			name:     "tenant mismatch",
			in:       security.ResolveInput{Claims: good, TenantID: "t2"},
			field:    "tenant_id",
			mismatch: true,
		},
		{
			name:      "inverted range",
			in:        security.ResolveInput{Claims: good, StartDate: "2026-03-10", EndDate: "2026-03-09"},
			wantRange: true,
			field:     "end_date",
		},
		{
			name:      "too long",
			in:        security.ResolveInput{Claims: good, StartDate: "2026-03-01", EndDate: "2026-04-30"},
			wantRange: true,
			field:     "end_date",
		},
		{
			name:      "unparsable start",
			in:        security.ResolveInput{Claims: good, StartDate: "03/01/2026"},
			wantRange: true,
			field:     "start_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.in)
			require.Error(t, err)

			if tt.wantRange {
				var rangeErr *domain.RangeError
				require.True(t, errors.As(err, &rangeErr), "want RangeError, got %T", err)
				assert.Equal(t, tt.field, rangeErr.Field)
				return
			}

			var ctxErr *domain.ContextError
			require.True(t, errors.As(err, &ctxErr), "want ContextError, got %T", err)
			assert.Equal(t, tt.field, ctxErr.Field)
			assert.Equal(t, tt.mismatch, ctxErr.Mismatch)
		})
	}
}
