package pickup

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists pickup data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EmailOrPhoneInUse reports whether any user already holds the email or phone.
func (r *Repository) EmailOrPhoneInUse(ctx context.Context, email, phone string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR phone_number = $2)
	`, email, phone).Scan(&exists)
	return exists, err
}

// CreateUser inserts a user row built from the role-specific field group.
// A unique violation on insert maps to ErrDuplicate: the constraint is the
// authoritative duplicate check, EmailOrPhoneInUse only gives a friendlier path.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	var (
		vehicle, child1, child2, child3, child4, staffID sql.NullString
	)
	switch u.Role {
	case RoleParent:
		vehicle = toNull(u.Parent.VehicleNumber)
		child1 = toNull(u.Parent.Child1)
		child2 = toNull(u.Parent.Child2)
		child3 = toNull(u.Parent.Child3)
		child4 = toNull(u.Parent.Child4)
	case RoleAdmin:
		staffID = toNull(u.Admin.StaffID)
	default:
		return User{}, Validation("unknown role")
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, full_name, email, phone_number, password_hash, role,
		                   vehicle_number, child1_name, child2_name, child3_name, child4_name, staff_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, u.ID, u.FullName, u.Email, u.PhoneNumber, u.PasswordHash, u.Role,
		vehicle, child1, child2, child3, child4, staffID)
	if err := row.Scan(&u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return u, nil
}

// UserByEmail fetches a user by email, ErrUserNotFound on a miss.
func (r *Repository) UserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, phone_number, password_hash, role,
		       vehicle_number, child1_name, child2_name, child3_name, child4_name, staff_id, created_at
		FROM users WHERE email = $1 LIMIT 1
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u                                                roleless
		vehicle, child1, child2, child3, child4, staffID sql.NullString
		role                                             string
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PhoneNumber, &u.PasswordHash, &role,
		&vehicle, &child1, &child2, &child3, &child4, &staffID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}

	out := User{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PhoneNumber:  u.PhoneNumber,
		PasswordHash: u.PasswordHash,
		Role:         Role(role),
		CreatedAt:    u.CreatedAt,
	}
	switch out.Role {
	case RoleParent:
		out.Parent = &ParentProfile{
			VehicleNumber: vehicle.String,
			Child1:        child1.String,
			Child2:        child2.String,
			Child3:        child3.String,
			Child4:        child4.String,
		}
	case RoleAdmin:
		out.Admin = &AdminProfile{StaffID: staffID.String}
	}
	return out, nil
}

// roleless groups the columns common to both roles during scanning.
type roleless struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
}

// ListQueue joins non-rejected plate logs to parents by exact plate match,
// most recent arrival first. Unmatched detections are excluded by the join.
func (r *Repository) ListQueue(ctx context.Context) ([]QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.user_id, COALESCE(u.child1_name, ''), u.vehicle_number, u.full_name, p.detected_at
		FROM plate_logs p
		INNER JOIN users u ON p.detected_plate = u.vehicle_number
		WHERE p.status <> $1
		ORDER BY p.detected_at DESC
	`, DetectionRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		e := QueueEntry{Relationship: "Parent", Status: "Arrived"}
		if err := rows.Scan(&e.ID, &e.StudentName, &e.VehicleNumber, &e.GuardianName, &e.ArrivalTime); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertCamera ensures a camera record exists.
func (r *Repository) UpsertCamera(ctx context.Context, cameraID, location string) error {
	if cameraID == "" {
		return Validation("camera id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cameras (camera_id, location)
		VALUES ($1, $2)
		ON CONFLICT (camera_id) DO NOTHING
	`, cameraID, location)
	return err
}

// CameraActive reports whether a camera exists and is active.
func (r *Repository) CameraActive(ctx context.Context, cameraID string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_active FROM cameras WHERE camera_id = $1`, cameraID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return active, err
}

// RecentDetection returns the latest log for a plate/camera pair inside the
// window, or nil. The worker uses it to drop repeated reads of a parked car.
func (r *Repository) RecentDetection(ctx context.Context, plate, cameraID string, window time.Duration) (*PlateLog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, detected_plate, detected_at, camera_id, snapshot_url, confidence, status, created_at
		FROM plate_logs
		WHERE detected_plate = $1 AND camera_id = $2 AND detected_at >= NOW() - ($3 * interval '1 second')
		ORDER BY detected_at DESC
		LIMIT 1
	`, plate, cameraID, window.Seconds())
	var p PlateLog
	var snapshot sql.NullString
	if err := row.Scan(&p.ID, &p.Plate, &p.DetectedAt, &p.CameraID, &snapshot, &p.Confidence, &p.Status, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.SnapshotURL = snapshot.String
	return &p, nil
}

// InsertPlateLog writes a detection event.
func (r *Repository) InsertPlateLog(ctx context.Context, p PlateLog) (PlateLog, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.DetectedAt.IsZero() {
		p.DetectedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = DetectionRecorded
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO plate_logs (id, detected_plate, detected_at, camera_id, snapshot_url, confidence, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, p.ID, p.Plate, p.DetectedAt, p.CameraID, p.SnapshotURL, p.Confidence, p.Status)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return PlateLog{}, err
	}
	return p, nil
}

func toNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
