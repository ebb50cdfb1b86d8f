package resolvers

import (
	"context"
	"time"

	"github.com/dalemusser/voluntahub/internal/app/policy/userpolicy"
	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/normalize"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
)

// AuditReader reads back the audit trail.
type AuditReader interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500

	// failedLoginWindow is how far back ListFailedLogins looks by default.
	failedLoginWindow = 24 * time.Hour
)

// AuditQuery filters ListAuditEvents. Zero values match everything.
type AuditQuery struct {
	Email     string
	Category  string
	EventType string
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
}

// AuditPage is one page of audit events, newest first, and the number of
// events matching the filter across all pages.
type AuditPage struct {
	Total  int64
	Events []audit.Event
}

// ListAuditEvents returns a page of the audit trail. Admin only.
func (s *Service) ListAuditEvents(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	filter, err := auditFilter(q)
	if err != nil {
		return nil, err
	}
	if err := userpolicy.CanReadAudit(auth.IdentityFrom(ctx)); err != nil {
		return nil, deny(ctx, err)
	}
	if s.auditReader == nil {
		return &AuditPage{Events: []audit.Event{}}, nil
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "list audit events")
	defer cancel()
	total, err := s.auditReader.CountByFilter(sctx, filter)
	if err != nil {
		return nil, s.storeErr("count audit events", err)
	}
	events, err := s.auditReader.Query(sctx, filter)
	if err != nil {
		return nil, s.storeErr("list audit events", err)
	}
	return &AuditPage{Total: total, Events: events}, nil
}

// ListFailedLogins returns failed and throttled logins since the given time,
// newest first. A nil since means the last 24 hours. Admin only.
func (s *Service) ListFailedLogins(ctx context.Context, since *time.Time, limit int) ([]audit.Event, error) {
	n, err := pageLimit(limit)
	if err != nil {
		return nil, err
	}
	if err := userpolicy.CanReadAudit(auth.IdentityFrom(ctx)); err != nil {
		return nil, deny(ctx, err)
	}
	if s.auditReader == nil {
		return []audit.Event{}, nil
	}
	from := time.Now().UTC().Add(-failedLoginWindow)
	if since != nil {
		from = *since
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "list failed logins")
	defer cancel()
	events, err := s.auditReader.GetFailedLogins(sctx, from, n)
	if err != nil {
		return nil, s.storeErr("list failed logins", err)
	}
	return events, nil
}

func auditFilter(q AuditQuery) (audit.QueryFilter, error) {
	switch q.Category {
	case "", audit.CategoryAuth, audit.CategoryAdmin:
	default:
		return audit.QueryFilter{}, apperr.New(apperr.InvalidArgument, "category must be %s or %s", audit.CategoryAuth, audit.CategoryAdmin)
	}
	if q.Offset < 0 {
		return audit.QueryFilter{}, apperr.New(apperr.InvalidArgument, "offset must not be negative")
	}
	if q.Since != nil && q.Until != nil && q.Since.After(*q.Until) {
		return audit.QueryFilter{}, apperr.New(apperr.InvalidArgument, "since must not be after until")
	}
	limit, err := pageLimit(q.Limit)
	if err != nil {
		return audit.QueryFilter{}, err
	}
	return audit.QueryFilter{
		UserEmail: normalize.Email(q.Email),
		Category:  q.Category,
		EventType: q.EventType,
		StartTime: q.Since,
		EndTime:   q.Until,
		Limit:     limit,
		Offset:    int64(q.Offset),
	}, nil
}

// pageLimit applies the default for 0 and caps large limits.
func pageLimit(limit int) (int64, error) {
	switch {
	case limit < 0:
		return 0, apperr.New(apperr.InvalidArgument, "limit must not be negative")
	case limit == 0:
		return defaultAuditLimit, nil
	case limit > maxAuditLimit:
		return maxAuditLimit, nil
	}
	return int64(limit), nil
}
