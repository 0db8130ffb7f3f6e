package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ngvinh/circulib/internal/database/queries"
	"github.com/ngvinh/circulib/internal/models"
)

// UserQuerier is the account management slice of the query layer.
type UserQuerier interface {
	CreateUser(ctx context.Context, arg queries.CreateUserParams) (queries.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (queries.User, error)
	GetUserByEmail(ctx context.Context, email string) (queries.User, error)
	MarkUserVerified(ctx context.Context, id pgtype.UUID) error
	SetUserLock(ctx context.Context, arg queries.SetUserLockParams) (queries.User, error)
	ListUsers(ctx context.Context, arg queries.ListUsersParams) ([]queries.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type tokenIssuer interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hashedPassword, password string) (bool, error)
	GenerateToken(userID, email, role string) (string, time.Time, error)
	BlacklistToken(ctx context.Context, tokenString string) error
}

// UserService handles registration, login and profile reads.
type UserService struct {
	q      UserQuerier
	auth   tokenIssuer
	logger *slog.Logger
}

func NewUserService(q UserQuerier, auth tokenIssuer, logger *slog.Logger) *UserService {
	return &UserService{q: q, auth: auth, logger: logger}
}

// Register creates a member account. New accounts start verified; the flag
// exists so an operator can suspend borrowing without deleting the account.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserResponse, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, models.Validation("password must be at least 8 characters")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.q.CreateUser(ctx, queries.CreateUserParams{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         models.RoleMember,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", queries.UUIDString(user.ID), "email", user.Email)

	resp := user.ToResponse()
	return &resp, nil
}

// Login checks the credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.q.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Locked.Valid && user.Locked.Bool {
		return nil, models.ErrUserLocked
	}

	ok, err := s.auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.auth.GenerateToken(queries.UUIDString(user.ID), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToResponse(),
	}, nil
}

// SetLock locks or unlocks an account. A locked account cannot log in or
// open loans; its existing loans stay payable.
func (s *UserService) SetLock(ctx context.Context, userID uuid.UUID, locked bool, reason string) (*models.UserResponse, error) {
	user, err := s.q.SetUserLock(ctx, queries.SetUserLockParams{
		ID:     queries.PgUUID(userID),
		Locked: locked,
		Reason: strings.TrimSpace(reason),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set user lock: %w", err)
	}

	s.logger.Info("user lock changed",
		"user_id", queries.UUIDString(user.ID), "locked", locked)

	resp := user.ToResponse()
	return &resp, nil
}

// ListUsers is the administrative account list, newest first.
func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*models.UserListResponse, error) {
	users, err := s.q.ListUsers(ctx, queries.ListUsersParams{
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	total, err := s.q.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	resp := &models.UserListResponse{
		Users: make([]models.UserResponse, len(users)),
		Pagination: models.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
		},
	}
	resp.Pagination.TotalPages = int(total) / limit
	if int(total)%limit != 0 {
		resp.Pagination.TotalPages++
	}
	for i := range users {
		resp.Users[i] = users[i].ToResponse()
	}
	return resp, nil
}

// Logout revokes the presented token.
func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.auth.BlacklistToken(ctx, token)
}

// GetProfile returns the user with their mirrored loan list.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.ProfileResponse, error) {
	user, err := s.q.GetUserByID(ctx, queries.PgUUID(userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	resp := &models.ProfileResponse{
		User:          user.ToResponse(),
		BorrowedBooks: []models.BorrowedSummary{},
	}

	if len(user.BorrowedBooks) > 0 {
		if err := json.Unmarshal(user.BorrowedBooks, &resp.BorrowedBooks); err != nil {
			// A corrupt mirror must not take the profile down; the loans
			// table still has everything.
			s.logger.Error("failed to decode borrowed books mirror",
				"user_id", resp.User.ID, "error", err)
			resp.BorrowedBooks = []models.BorrowedSummary{}
		}
	}

	return resp, nil
}
