package user

import (
	"context"
	"log/slog"

	"usersvc/internal/api"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for user operations.
// Every method either returns a value or exactly one *api.AppError; raw
// repository failures are wrapped before they cross this boundary.
type UserService interface {
	GetPaginatedUsers(ctx context.Context, page, pageSize int64, sortField, sortOrder string) (*PaginatedUsers, error)
	GetUserAgeStatsByCity(ctx context.Context) ([]CityAgeStat, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*User, error)
	DeleteUser(ctx context.Context, id string) (*User, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// GetPaginatedUsers retrieves one page of users. An empty page fails with
// NOT_FOUND, even for out-of-range page numbers; the listing never returns
// an empty array.
func (s *UserServiceImpl) GetPaginatedUsers(ctx context.Context, page, pageSize int64, sortField, sortOrder string) (*PaginatedUsers, error) {
	l := s.logger.With(slog.String("method", "GetPaginatedUsers"),
		slog.Int64("page", page), slog.Int64("pageSize", pageSize))

	if sortField == "" {
		sortField = "createdAt"
	}
	skip := (page - 1) * pageSize
	ascending := sortOrder == "asc"

	users, err := s.repo.FindPage(ctx, sortField, ascending, skip, pageSize)
	if err != nil {
		l.ErrorContext(ctx, "Error retrieving paginated users", slog.Any("error", err))
		return nil, api.Internal("Failed to retrieve paginated users", map[string]any{
			"page": page, "pageSize": pageSize, "originalError": err.Error(),
		})
	}

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Error counting users", slog.Any("error", err))
		return nil, api.Internal("Failed to retrieve paginated users", map[string]any{
			"page": page, "pageSize": pageSize, "originalError": err.Error(),
		})
	}

	if len(users) == 0 {
		return nil, api.NotFound("No users found for the given page and pageSize", map[string]any{
			"page": page, "pageSize": pageSize,
		})
	}

	l.InfoContext(ctx, "Retrieved users page", slog.Int("count", len(users)))

	return &PaginatedUsers{
		Users:      users,
		Page:       page,
		PageSize:   pageSize,
		TotalUsers: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// GetUserAgeStatsByCity returns grouped age statistics per city, failing
// with NOT_FOUND when the store holds no users at all.
func (s *UserServiceImpl) GetUserAgeStatsByCity(ctx context.Context) ([]CityAgeStat, error) {
	l := s.logger.With(slog.String("method", "GetUserAgeStatsByCity"))

	stats, err := s.repo.CityAgeStats(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Error retrieving user age stats", slog.Any("error", err))
		return nil, api.Internal("Failed to retrieve user age stats", map[string]any{
			"originalError": err.Error(),
		})
	}

	if len(stats) == 0 {
		return nil, api.NotFound("No user stats found for cities", nil)
	}

	l.InfoContext(ctx, "Retrieved age stats", slog.Int("cities", len(stats)))
	return stats, nil
}

// CreateUser inserts a new user after pre-checking for an email or username
// conflict. The pre-check is check-then-act; the storage layer's unique
// indexes are the actual correctness backstop, and a lost race surfaces as a
// wrapped INTERNAL_ERROR with the original failure preserved.
func (s *UserServiceImpl) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	l := s.logger.With(slog.String("method", "CreateUser"),
		slog.String("username", params.Username), slog.String("email", params.Email))

	existing, err := s.repo.FindByEmailOrUsername(ctx, params.Email, params.Username)
	if err != nil {
		l.ErrorContext(ctx, "Error checking for existing user", slog.Any("error", err))
		return nil, api.Internal("Failed to create user", map[string]any{
			"originalError": err.Error(),
		})
	}
	if existing != nil {
		l.WarnContext(ctx, "User creation attempted with existing email or username")
		return nil, api.Conflict("User with this email or username already exists", map[string]any{
			"email":    params.Email,
			"username": params.Username,
		})
	}

	created, err := s.repo.Insert(ctx, params)
	if err != nil {
		l.ErrorContext(ctx, "Error creating user", slog.Any("error", err))
		return nil, api.Internal("Failed to create user", map[string]any{
			"originalError": err.Error(),
		})
	}

	l.InfoContext(ctx, "User created successfully", slog.String("userID", created.ID.Hex()))
	return created, nil
}

// UpdateUser applies a partial update. Email and username are stripped from
// the payload unconditionally; their presence is ignored rather than
// rejected, since both are immutable after creation.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	l := s.logger.With(slog.String("method", "UpdateUser"), slog.String("userID", id))

	params.Email = nil
	params.Username = nil

	updated, err := s.repo.UpdateByID(ctx, id, params)
	if err != nil {
		l.ErrorContext(ctx, "Error updating user", slog.Any("error", err))
		return nil, api.Internal("Failed to update user", map[string]any{
			"userId": id, "originalError": err.Error(),
		})
	}
	if updated == nil {
		l.WarnContext(ctx, "Attempt to update non-existent user")
		return nil, api.NotFound("User not found for the given ID", map[string]any{"userId": id})
	}

	l.InfoContext(ctx, "User updated successfully")
	return updated, nil
}

// DeleteUser removes a user by id and returns the deleted entity so callers
// can report what was removed.
func (s *UserServiceImpl) DeleteUser(ctx context.Context, id string) (*User, error) {
	l := s.logger.With(slog.String("method", "DeleteUser"), slog.String("userID", id))

	deleted, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		l.ErrorContext(ctx, "Error deleting user", slog.Any("error", err))
		return nil, api.Internal("Failed to delete user", map[string]any{
			"userId": id, "originalError": err.Error(),
		})
	}
	if deleted == nil {
		l.WarnContext(ctx, "Attempt to delete non-existent user")
		return nil, api.NotFound("User not found for the given ID", map[string]any{"userId": id})
	}

	l.InfoContext(ctx, "User deleted successfully", slog.String("username", deleted.Username))
	return deleted, nil
}
