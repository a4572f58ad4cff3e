package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

// CatalogRepository stores the course-management chain: sessions, sets, courses,
// offerings, enrollment sets, sections and the memberships recorded against them.
// Ensure* methods are idempotent and report whether a row was created.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ensure(ctx context.Context, op, query string, arg interface{}) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected > 0, nil
}

// EnsureAcademicSession creates the session when absent.
func (r *CatalogRepository) EnsureAcademicSession(ctx context.Context, session models.AcademicSession) (bool, error) {
	const query = `INSERT INTO academic_sessions (eid, title, start_date, end_date) VALUES (:eid, :title, :start_date, :end_date) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure academic session", query, session)
}

// EnsureCourseSet creates the course set when absent.
func (r *CatalogRepository) EnsureCourseSet(ctx context.Context, set models.CourseSet) (bool, error) {
	const query = `INSERT INTO course_sets (eid, title, category) VALUES (:eid, :title, :category) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure course set", query, set)
}

// EnsureCanonicalCourse creates the canonical course when absent.
func (r *CatalogRepository) EnsureCanonicalCourse(ctx context.Context, course models.CanonicalCourse) (bool, error) {
	const query = `INSERT INTO canonical_courses (eid, title) VALUES (:eid, :title) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure canonical course", query, course)
}

// LinkCanonicalCourse adds the canonical course to a course set.
func (r *CatalogRepository) LinkCanonicalCourse(ctx context.Context, setEID, courseEID string) error {
	const query = `INSERT INTO course_set_canonical_courses (course_set_eid, canonical_course_eid) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, setEID, courseEID); err != nil {
		return fmt.Errorf("link canonical course: %w", err)
	}
	return nil
}

// EnsureCourseOffering creates the offering when absent.
func (r *CatalogRepository) EnsureCourseOffering(ctx context.Context, offering models.CourseOffering) (bool, error) {
	const query = `INSERT INTO course_offerings (eid, canonical_course_eid, session_eid, title, status, start_date, end_date) VALUES (:eid, :canonical_course_eid, :session_eid, :title, :status, :start_date, :end_date) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure course offering", query, offering)
}

// LinkCourseOffering adds the offering to a course set.
func (r *CatalogRepository) LinkCourseOffering(ctx context.Context, setEID, offeringEID string) error {
	const query = `INSERT INTO course_set_offerings (course_set_eid, offering_eid) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, setEID, offeringEID); err != nil {
		return fmt.Errorf("link course offering: %w", err)
	}
	return nil
}

// EnsureEnrollmentSet creates the enrollment set when absent.
func (r *CatalogRepository) EnsureEnrollmentSet(ctx context.Context, set models.EnrollmentSet) (bool, error) {
	const query = `INSERT INTO enrollment_sets (eid, offering_eid, title, category, default_credits) VALUES (:eid, :offering_eid, :title, :category, :default_credits) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure enrollment set", query, set)
}

// FindSection returns a section by eid.
func (r *CatalogRepository) FindSection(ctx context.Context, eid string) (*models.Section, error) {
	const query = `SELECT eid, offering_eid, enrollment_set_eid, title, category FROM sections WHERE eid = $1 LIMIT 1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, eid); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

// EnsureSection creates the section when absent.
func (r *CatalogRepository) EnsureSection(ctx context.Context, section models.Section) (bool, error) {
	const query = `INSERT INTO sections (eid, offering_eid, enrollment_set_eid, title, category) VALUES (:eid, :offering_eid, :enrollment_set_eid, :title, :category) ON CONFLICT (eid) DO NOTHING`
	return r.ensure(ctx, "ensure section", query, section)
}

// AttachEnrollmentSet repairs a section created without its enrollment set.
func (r *CatalogRepository) AttachEnrollmentSet(ctx context.Context, sectionEID, enrollmentSetEID, category string) error {
	const query = `UPDATE sections SET enrollment_set_eid = $2, category = $3 WHERE eid = $1 AND enrollment_set_eid IS NULL`
	if _, err := r.db.ExecContext(ctx, query, sectionEID, enrollmentSetEID, category); err != nil {
		return fmt.Errorf("attach enrollment set: %w", err)
	}
	return nil
}

// UpsertSectionMembership adds or updates a section membership.
func (r *CatalogRepository) UpsertSectionMembership(ctx context.Context, m models.SectionMembership) error {
	const query = `INSERT INTO section_memberships (section_eid, login, role, status) VALUES (:section_eid, :login, :role, :status) ON CONFLICT (section_eid, login) DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("upsert section membership: %w", err)
	}
	return nil
}

// UpsertEnrollment adds or updates an enrollment.
func (r *CatalogRepository) UpsertEnrollment(ctx context.Context, e models.Enrollment) error {
	const query = `INSERT INTO enrollments (enrollment_set_eid, login, status, credits, grading_scheme) VALUES (:enrollment_set_eid, :login, :status, :credits, :grading_scheme) ON CONFLICT (enrollment_set_eid, login) DO UPDATE SET status = EXCLUDED.status, credits = EXCLUDED.credits, grading_scheme = EXCLUDED.grading_scheme`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}
	return nil
}

// UpsertOfferingMembership adds or updates an offering membership.
func (r *CatalogRepository) UpsertOfferingMembership(ctx context.Context, m models.OfferingMembership) error {
	const query = `INSERT INTO course_offering_memberships (offering_eid, login, role, status) VALUES (:offering_eid, :login, :role, :status) ON CONFLICT (offering_eid, login) DO UPDATE SET role = EXCLUDED.role, status = EXCLUDED.status`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("upsert offering membership: %w", err)
	}
	return nil
}

// ListEnrolledSections returns every section the login holds an enrollment in.
func (r *CatalogRepository) ListEnrolledSections(ctx context.Context, login string) ([]models.EnrolledSection, error) {
	const query = `SELECT s.eid AS section_eid, e.enrollment_set_eid, s.offering_eid, o.start_date, o.end_date
FROM enrollments e
JOIN sections s ON s.enrollment_set_eid = e.enrollment_set_eid
JOIN course_offerings o ON o.eid = s.offering_eid
WHERE e.login = $1 AND e.status = $2
ORDER BY s.eid`
	var sections []models.EnrolledSection
	if err := r.db.SelectContext(ctx, &sections, query, login, models.MemberEnrolled); err != nil {
		return nil, fmt.Errorf("list enrolled sections: %w", err)
	}
	return sections, nil
}

// ListActiveOfferings returns offerings of a canonical course running on day, with their session start.
func (r *CatalogRepository) ListActiveOfferings(ctx context.Context, canonicalEID string, day time.Time) ([]models.CourseOffering, error) {
	const query = `SELECT o.eid, o.canonical_course_eid, o.session_eid, o.title, o.status, o.start_date, o.end_date, a.start_date AS session_start
FROM course_offerings o
JOIN academic_sessions a ON a.eid = o.session_eid
WHERE o.canonical_course_eid = $1 AND o.start_date <= $2 AND o.end_date >= $2
ORDER BY a.start_date DESC`
	var offerings []models.CourseOffering
	if err := r.db.SelectContext(ctx, &offerings, query, canonicalEID, day); err != nil {
		return nil, fmt.Errorf("list active offerings: %w", err)
	}
	return offerings, nil
}

// RemoveOfferingMembership deletes a login's offering membership.
func (r *CatalogRepository) RemoveOfferingMembership(ctx context.Context, login, offeringEID string) error {
	const query = `DELETE FROM course_offering_memberships WHERE offering_eid = $1 AND login = $2`
	if _, err := r.db.ExecContext(ctx, query, offeringEID, login); err != nil {
		return fmt.Errorf("remove offering membership: %w", err)
	}
	return nil
}

// RemoveSectionMembership deletes a login's section membership.
func (r *CatalogRepository) RemoveSectionMembership(ctx context.Context, login, sectionEID string) error {
	const query = `DELETE FROM section_memberships WHERE section_eid = $1 AND login = $2`
	if _, err := r.db.ExecContext(ctx, query, sectionEID, login); err != nil {
		return fmt.Errorf("remove section membership: %w", err)
	}
	return nil
}

// RemoveEnrollment deletes a login's enrollment.
func (r *CatalogRepository) RemoveEnrollment(ctx context.Context, login, enrollmentSetEID string) error {
	const query = `DELETE FROM enrollments WHERE enrollment_set_eid = $1 AND login = $2`
	if _, err := r.db.ExecContext(ctx, query, enrollmentSetEID, login); err != nil {
		return fmt.Errorf("remove enrollment: %w", err)
	}
	return nil
}
