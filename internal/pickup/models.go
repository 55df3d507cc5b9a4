package pickup

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account categories. Anything else is rejected
// at parse time, before any SQL is built.
type Role string

const (
	RoleParent Role = "parent"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a raw role string from a request body.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleParent:
		return RoleParent, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", Validation(fmt.Sprintf("unknown role %q", s))
	}
}

// ParentProfile holds the fields that are only meaningful for parents.
type ParentProfile struct {
	VehicleNumber string // normalized plate, empty if none registered
	Child1        string
	Child2        string
	Child3        string
	Child4        string
}

// AdminProfile holds the fields that are only meaningful for admins.
type AdminProfile struct {
	StaffID string
}

// User mirrors the users table. Exactly one of Parent/Admin is non-nil,
// selected by Role.
type User struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         Role
	Parent       *ParentProfile
	Admin        *AdminProfile
	CreatedAt    time.Time
}

// PlateLog is one detection event from a camera, as stored in plate_logs.
type PlateLog struct {
	ID          string     `json:"id"`
	Plate       string     `json:"detected_plate"`
	DetectedAt  time.Time  `json:"detected_at"`
	CameraID    string     `json:"camera_id"`
	SnapshotURL string     `json:"snapshot_url,omitempty"`
	Confidence  *float64   `json:"confidence,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Plate log statuses. Only recorded and verified rows appear in the queue.
const (
	DetectionRecorded = "recorded"
	DetectionVerified = "verified"
	DetectionRejected = "rejected"
)

// Camera is an ingest device. Registration is an idempotent upsert.
type Camera struct {
	ID        string    `json:"camera_id"`
	Location  string    `json:"location"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueEntry is the derived arrival record served to the frontend. Field
// names follow the wire contract the frontend already consumes.
type QueueEntry struct {
	ID            string    `json:"id"`
	StudentName   string    `json:"studentName"`
	VehicleNumber string    `json:"vehicle_number"`
	GuardianName  string    `json:"guardianName"`
	Relationship  string    `json:"relationship"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	Status        string    `json:"status"`
}

// Profile is the sanitized user view returned by login. Optional fields
// serialize as null when absent; the password hash never leaves the server.
type Profile struct {
	UserID        string  `json:"user_id"`
	FullName      string  `json:"full_name"`
	Role          Role    `json:"role"`
	VehicleNumber *string `json:"vehicle_number"`
	StaffID       *string `json:"staff_id"`
	Child1        *string `json:"child1"`
	Child2        *string `json:"child2"`
	Child3        *string `json:"child3"`
	Child4        *string `json:"child4"`
}

// NormalizePlate uppercases a plate and strips spaces and dashes so the
// queue join can stay an exact string match. Applied identically at
// registration and at ingestion.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(plate)) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ProfileOf builds the login response view for a user.
func ProfileOf(u User) Profile {
	p := Profile{
		UserID:   u.ID,
		FullName: u.FullName,
		Role:     u.Role,
	}
	if u.Parent != nil {
		p.VehicleNumber = nullable(u.Parent.VehicleNumber)
		p.Child1 = nullable(u.Parent.Child1)
		p.Child2 = nullable(u.Parent.Child2)
		p.Child3 = nullable(u.Parent.Child3)
		p.Child4 = nullable(u.Parent.Child4)
	}
	if u.Admin != nil {
		p.StaffID = nullable(u.Admin.StaffID)
	}
	return p
}
