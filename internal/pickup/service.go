package pickup

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence surface the service needs. *Repository satisfies it.
type Store interface {
	EmailOrPhoneInUse(ctx context.Context, email, phone string) (bool, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	ListQueue(ctx context.Context) ([]QueueEntry, error)
	UpsertCamera(ctx context.Context, cameraID, location string) error
}

// Service implements registration, login and queue retrieval.
type Service struct {
	store      Store
	bcryptCost int
}

// NewService creates a service backed by a store.
func NewService(store Store, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, bcryptCost: bcryptCost}
}

// RegisterInput mirrors the /api/register request body.
type RegisterInput struct {
	Role          string `json:"role"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phone_number"`
	Password      string `json:"password"`
	VehicleNumber string `json:"vehicle_number"`
	StaffID       string `json:"staff_id"`
	Child1        string `json:"child1"`
	Child2        string `json:"child2"`
	Child3        string `json:"child3"`
	Child4        string `json:"child4"`
}

// Register validates input, hashes the password and inserts the user.
// The plaintext password is never stored or logged.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	if in.Role == "" || in.FullName == "" || in.Email == "" || in.PhoneNumber == "" || in.Password == "" {
		return Validation("Missing required fields")
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return err
	}
	if role == RoleParent && strings.TrimSpace(in.Child1) == "" {
		return Validation("Child1 is required for parents")
	}
	if len(in.Password) < 6 {
		return Validation("Password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return Internal(err)
	}

	inUse, err := s.store.EmailOrPhoneInUse(ctx, in.Email, in.PhoneNumber)
	if err != nil {
		return Internal(err)
	}
	if inUse {
		return Conflict("Email or phone already exists")
	}

	u := User{
		FullName:     in.FullName,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: string(hash),
		Role:         role,
	}
	switch role {
	case RoleParent:
		u.Parent = &ParentProfile{
			VehicleNumber: NormalizePlate(in.VehicleNumber),
			Child1:        strings.TrimSpace(in.Child1),
			Child2:        strings.TrimSpace(in.Child2),
			Child3:        strings.TrimSpace(in.Child3),
			Child4:        strings.TrimSpace(in.Child4),
		}
	case RoleAdmin:
		u.Admin = &AdminProfile{StaffID: strings.TrimSpace(in.StaffID)}
	}

	if _, err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Conflict("Email or phone already exists")
		}
		return Internal(err)
	}
	return nil
}

// Login verifies credentials and returns the sanitized profile. A lookup miss
// and a wrong password are reported with the same error value.
func (s *Service) Login(ctx context.Context, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Profile{}, Validation("Email and password required")
	}

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Profile{}, ErrInvalidCredentials
	}
	return ProfileOf(u), nil
}

// Queue returns the full ordered arrival list.
func (s *Service) Queue(ctx context.Context) ([]QueueEntry, error) {
	entries, err := s.store.ListQueue(ctx)
	if err != nil {
		return nil, Internal(err)
	}
	if entries == nil {
		entries = []QueueEntry{}
	}
	return entries, nil
}

// RegisterCamera validates and persists camera metadata.
func (s *Service) RegisterCamera(ctx context.Context, cameraID, location string) error {
	if strings.TrimSpace(cameraID) == "" {
		return Validation("camera_id required")
	}
	if err := s.store.UpsertCamera(ctx, strings.TrimSpace(cameraID), strings.TrimSpace(location)); err != nil {
		return Internal(err)
	}
	return nil
}
