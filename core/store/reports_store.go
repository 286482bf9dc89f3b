package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ReportsStore interface {
	CreateReport(ctx context.Context, report *Report, photos []ReportPhoto, event ReportEvent) (int64, error)
	GetReport(ctx context.Context, id int64) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, error)
	ListReportPhotos(ctx context.Context, reportID int64) ([]ReportPhoto, error)
	TransitionReport(ctx context.Context, tr ReportTransition) (*Report, error)
	ListReportEvents(ctx context.Context, reportID int64) ([]ReportEvent, error)
}

type reportsStore struct {
	db *DB
}

func NewReportsStore(db *DB) ReportsStore {
	return &reportsStore{db: db}
}

const reportColumns = `id, title, description, category, status, latitude, longitude, is_anonymous, created_by, assignment_kind, assigned_user_id, assigned_company_id, external_assigned_by, rejection_reason, created_at, updated_at, version`

func (s *reportsStore) CreateReport(ctx context.Context, report *Report, photos []ReportPhoto, event ReportEvent) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	if report.Status == "" {
		report.Status = StatusPendingApproval
	}
	report.Version = 1
	kind, userID, companyID := report.Assignment.columns()
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reports(title, description, category, status, latitude, longitude, is_anonymous, created_by, assignment_kind, assigned_user_id, assigned_company_id, external_assigned_by, rejection_reason, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) RETURNING id`,
		report.Title, report.Description, string(report.Category), string(report.Status), report.Latitude, report.Longitude, report.IsAnonymous, report.CreatedBy,
		kind, nullableID(userID), nullableID(companyID), nullableID(report.ExternalAssignedBy), report.RejectionReason, now, now, report.Version).Scan(&id)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	report.ID = id
	report.CreatedAt = now
	report.UpdatedAt = now
	report.Photos = report.Photos[:0]
	for _, p := range photos {
		var photoID int64
		if err := tx.QueryRowContext(ctx, `INSERT INTO report_photos(report_id, url, filename, created_at) VALUES(?,?,?,?) RETURNING id`,
			id, strings.TrimSpace(p.URL), strings.TrimSpace(p.Filename), now).Scan(&photoID); err != nil {
			tx.Rollback()
			return 0, err
		}
		report.Photos = append(report.Photos, ReportPhoto{ID: photoID, ReportID: id, URL: strings.TrimSpace(p.URL), Filename: strings.TrimSpace(p.Filename), CreatedAt: now})
	}
	event.ReportID = id
	if err := insertEventTx(ctx, tx, &event, now); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *reportsStore) GetReport(ctx context.Context, id int64) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *reportsStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(filter.Status))
	}
	if filter.ExcludeStatus != "" {
		clauses = append(clauses, "status<>?")
		args = append(args, string(filter.ExcludeStatus))
	}
	if filter.CreatedBy > 0 {
		clauses = append(clauses, "created_by=?")
		args = append(args, filter.CreatedBy)
	}
	if filter.VisibleToUserID > 0 {
		clauses = append(clauses, "(created_by=? OR status<>?)")
		args = append(args, filter.VisibleToUserID, string(StatusPendingApproval))
	}
	if filter.TechnicianID > 0 {
		clauses = append(clauses, "((assignment_kind=? AND assigned_user_id=?) OR external_assigned_by=?)")
		args = append(args, string(AssignmentTechnician), filter.TechnicianID, filter.TechnicianID)
	}
	if filter.MaintainerID > 0 {
		clauses = append(clauses, `(((assignment_kind=? AND assigned_user_id=?) OR assignment_kind=?)
			AND assigned_company_id=? AND assigned_company_id IN (SELECT id FROM external_companies WHERE platform_access=?))`)
		args = append(args, string(AssignmentMaintainer), filter.MaintainerID, string(AssignmentCompany), filter.MaintainerOrg, true)
	}
	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func (s *reportsStore) ListReportPhotos(ctx context.Context, reportID int64) ([]ReportPhoto, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, report_id, url, filename, created_at FROM report_photos WHERE report_id=? ORDER BY id ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportPhoto
	for rows.Next() {
		var p ReportPhoto
		if err := rows.Scan(&p.ID, &p.ReportID, &p.URL, &p.Filename, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// TransitionReport applies tr only if the row still has the expected status and
// version. A lost race yields ErrConflict and leaves the row untouched.
func (s *reportsStore) TransitionReport(ctx context.Context, tr ReportTransition) (*Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	kind, userID, companyID := tr.Assignment.columns()
	res, err := tx.ExecContext(ctx, `
		UPDATE reports SET status=?, assignment_kind=?, assigned_user_id=?, assigned_company_id=?, external_assigned_by=?, rejection_reason=?, updated_at=?, version=version+1
		WHERE id=? AND status=? AND version=?`,
		string(tr.NewStatus), kind, nullableID(userID), nullableID(companyID), nullableID(tr.ExternalAssignedBy), tr.RejectionReason, now,
		tr.ReportID, string(tr.ExpectedStatus), tr.ExpectedVersion)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return nil, ErrConflict
	}
	ev := tr.Event
	ev.ReportID = tr.ReportID
	if ev.FromStatus == "" {
		ev.FromStatus = tr.ExpectedStatus
	}
	if ev.ToStatus == "" {
		ev.ToStatus = tr.NewStatus
	}
	if err := insertEventTx(ctx, tx, &ev, now); err != nil {
		tx.Rollback()
		return nil, err
	}
	row := tx.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, tr.ReportID)
	updated, err := scanReport(row)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *reportsStore) ListReportEvents(ctx context.Context, reportID int64) ([]ReportEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, event_type, from_status, to_status, actor_id, actor_role, details, created_at
		FROM report_events WHERE report_id=? ORDER BY id ASC`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ReportEvent
	for rows.Next() {
		var ev ReportEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.ReportID, &ev.EventType, &from, &to, &ev.ActorID, &ev.ActorRole, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.FromStatus = ReportStatus(from)
		ev.ToStatus = ReportStatus(to)
		res = append(res, ev)
	}
	return res, rows.Err()
}

func insertEventTx(ctx context.Context, tx *Tx, ev *ReportEvent, now time.Time) error {
	ev.CreatedAt = now
	return tx.QueryRowContext(ctx, `
		INSERT INTO report_events(report_id, event_type, from_status, to_status, actor_id, actor_role, details, created_at)
		VALUES(?,?,?,?,?,?,?,?) RETURNING id`,
		ev.ReportID, ev.EventType, string(ev.FromStatus), string(ev.ToStatus), ev.ActorID, ev.ActorRole, ev.Details, now).Scan(&ev.ID)
}

func scanReport(row rowScanner) (*Report, error) {
	var r Report
	var category, status, kind string
	var userID, companyID, extBy sql.NullInt64
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &category, &status, &r.Latitude, &r.Longitude, &r.IsAnonymous, &r.CreatedBy,
		&kind, &userID, &companyID, &extBy, &r.RejectionReason, &r.CreatedAt, &r.UpdatedAt, &r.Version); err != nil {
		return nil, err
	}
	r.Category = Category(category)
	r.Status = ReportStatus(status)
	assignment, err := assignmentFromColumns(kind, int64Ptr(userID), int64Ptr(companyID))
	if err != nil {
		return nil, fmt.Errorf("report %d: %w", r.ID, err)
	}
	r.Assignment = assignment
	r.ExternalAssignedBy = int64Ptr(extBy)
	return &r, nil
}
