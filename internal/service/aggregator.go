package service

import (
	"context"
	"time"

	"github.com/Rrens/hospital-scheduler/internal/domain"
	"github.com/Rrens/hospital-scheduler/internal/hospital"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// HospitalSource is the read-only hospital-data surface used by the aggregator.
type HospitalSource interface {
	OperatingHours(ctx context.Context, s hospital.Scope) (*hospital.OperatingHoursDTO, error)
	Availability(ctx context.Context, s hospital.Scope) ([]hospital.EmployeeGroupDTO, error)
	Holidays(ctx context.Context, s hospital.Scope) ([]hospital.HolidayDTO, error)
	Overtime(ctx context.Context, s hospital.Scope) (hospital.PolicyDTO, error)
	BreakTimings(ctx context.Context, s hospital.Scope) (hospital.PolicyDTO, error)
}

// Aggregator assembles a ConstraintSet from the hospital-data service.
type Aggregator struct {
	source HospitalSource
	opts   Options
	now    func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(source HospitalSource, opts Options) *Aggregator {
	return &Aggregator{source: source, opts: opts, now: time.Now}
}

type fetched struct {
	hours    *hospital.OperatingHoursDTO
	groups   []hospital.EmployeeGroupDTO
	holidays []hospital.HolidayDTO
	overtime hospital.PolicyDTO
	breaks   hospital.PolicyDTO
}

// Aggregate fetches every resource concurrently and normalizes the results.
// Any single failure fails the whole aggregation; nothing is substituted.
func (a *Aggregator) Aggregate(ctx context.Context, rc domain.RequestContext, accessToken string) (*domain.ConstraintSet, error) {
	scope := scopeOf(rc, accessToken)
	resources := []string{
		hospital.ResourceOperatingHours,
		hospital.ResourceAvailability,
		hospital.ResourceHolidays,
		hospital.ResourceOvertime,
	}

	var f fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		f.hours, err = a.source.OperatingHours(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		f.groups, err = a.source.Availability(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		f.holidays, err = a.source.Holidays(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		f.overtime, err = a.source.Overtime(gctx, scope)
		return err
	})
	if a.opts.FetchBreakTimings {
		resources = append(resources, hospital.ResourceBreakTimings)
		g.Go(func() (err error) {
			f.breaks, err = a.source.BreakTimings(gctx, scope)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cs, err := a.normalize(rc, f)
	if err != nil {
		return nil, err
	}
	cs.Metadata.Resources = resources

	log.Debug().
		Str("tenant_id", rc.TenantID).
		Str("location_id", rc.LocationID).
		Int("employees", len(cs.Employees)).
		Int("excluded", len(cs.Metadata.Excluded)).
		Int("slots", cs.Metadata.SlotCount).
		Int("holidays", cs.Metadata.HolidayDays).
		Msg("constraint set assembled")

	return cs, nil
}

func (a *Aggregator) normalize(rc domain.RequestContext, f fetched) (*domain.ConstraintSet, error) {
	cal, err := hospital.NormalizeCalendar(f.hours, a.opts.Defaults)
	if err != nil {
		return nil, err
	}
	staff, err := hospital.ExpandAvailability(f.groups, rc.DateRange, cal.Location)
	if err != nil {
		return nil, err
	}
	holidays, err := hospital.NormalizeHolidays(f.holidays, rc.DateRange)
	if err != nil {
		return nil, err
	}
	overtime, err := hospital.NormalizeOvertime(f.overtime, a.opts.Defaults)
	if err != nil {
		return nil, err
	}
	breaks := a.opts.Defaults.Breaks
	if f.breaks != nil {
		if breaks, err = hospital.NormalizeBreaks(f.breaks, a.opts.Defaults); err != nil {
			return nil, err
		}
	}

	return &domain.ConstraintSet{
		Context:          rc,
		TimeZone:         cal.TimeZone,
		Location:         cal.Location,
		Calendar:         cal.Calendar,
		Employees:        staff.Employees,
		Availability:     staff.Availability,
		Holidays:         holidays,
		HolidayOperating: cal.HolidayOperating,
		Overtime:         overtime,
		Breaks:           breaks,
		Metadata: domain.AggregationMetadata{
			Excluded:    staff.Excluded,
			FetchedAt:   a.now().UTC(),
			SlotCount:   len(staff.Availability),
			HolidayDays: len(holidays),
		},
	}, nil
}

// Calendar fetches and normalizes only the operating hours.
func (a *Aggregator) Calendar(ctx context.Context, rc domain.RequestContext, accessToken string) (*hospital.Calendar, error) {
	dto, err := a.source.OperatingHours(ctx, scopeOf(rc, accessToken))
	if err != nil {
		return nil, err
	}
	return hospital.NormalizeCalendar(dto, a.opts.Defaults)
}

// Staff fetches and expands only the availability. Times are read in the
// location's zone, so the calendar is fetched alongside.
func (a *Aggregator) Staff(ctx context.Context, rc domain.RequestContext, accessToken string) (*hospital.Staff, error) {
	cal, err := a.Calendar(ctx, rc, accessToken)
	if err != nil {
		return nil, err
	}
	groups, err := a.source.Availability(ctx, scopeOf(rc, accessToken))
	if err != nil {
		return nil, err
	}
	return hospital.ExpandAvailability(groups, rc.DateRange, cal.Location)
}

func scopeOf(rc domain.RequestContext, accessToken string) hospital.Scope {
	return hospital.Scope{
		TenantID:    rc.TenantID,
		LocationID:  rc.LocationID,
		AccessToken: accessToken,
		DateRange:   rc.DateRange,
	}
}
