package user

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"usersvc/internal/api"
)

// MockUserRepo is a mock implementation of UserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindPage(ctx context.Context, sortField string, ascending bool, skip, limit int64) ([]User, error) {
	args := m.Called(ctx, sortField, ascending, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockUserRepo) CountAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepo) FindByEmailOrUsername(ctx context.Context, email, username string) (*User, error) {
	args := m.Called(ctx, email, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) Insert(ctx context.Context, params CreateUserParams) (*User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) UpdateByID(ctx context.Context, id string, params UpdateUserParams) (*User, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) DeleteByID(ctx context.Context, id string) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepo) CityAgeStats(ctx context.Context) ([]CityAgeStat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CityAgeStat), args.Error(1)
}

func testUser(username, email string, age int, city string) *User {
	return &User{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Email:     email,
		Age:       age,
		City:      city,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *api.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *api.AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestGetPaginatedUsers(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("Success computes skip and totalPages", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		users := []User{*testUser("alice", "a@x.com", 30, "Lyon")}
		// page 3, pageSize 10 -> skip 20
		mockRepo.On("FindPage", ctx, "createdAt", false, int64(20), int64(10)).Return(users, nil)
		mockRepo.On("CountAll", ctx).Return(int64(25), nil)

		result, err := service.GetPaginatedUsers(ctx, 3, 10, "createdAt", "desc")

		assert.NoError(t, err)
		assert.Equal(t, int64(3), result.Page)
		assert.Equal(t, int64(25), result.TotalUsers)
		assert.Equal(t, int64(3), result.TotalPages) // ceil(25/10)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Ascending sort order", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("FindPage", ctx, "age", true, int64(0), int64(10)).
			Return([]User{*testUser("bob", "b@x.com", 22, "Nice")}, nil)
		mockRepo.On("CountAll", ctx).Return(int64(1), nil)

		result, err := service.GetPaginatedUsers(ctx, 1, 10, "age", "asc")

		assert.NoError(t, err)
		assert.Equal(t, int64(1), result.TotalPages)
	})

	t.Run("Empty page is NOT_FOUND even when out of range", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		// Users exist, but page 99 is past the end. The listing still fails
		// with NOT_FOUND; it never returns an empty list.
		mockRepo.On("FindPage", ctx, "createdAt", false, int64(980), int64(10)).Return([]User{}, nil)
		mockRepo.On("CountAll", ctx).Return(int64(5), nil)

		result, err := service.GetPaginatedUsers(ctx, 99, 10, "createdAt", "desc")

		assert.Nil(t, result)
		assert.Equal(t, api.CodeNotFound, appErrorCode(t, err))
		assert.Equal(t, "No users found for the given page and pageSize", err.Error())
	})

	t.Run("Repository error wraps as INTERNAL_ERROR", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("FindPage", ctx, "createdAt", false, int64(0), int64(10)).
			Return(nil, errors.New("connection reset"))

		result, err := service.GetPaginatedUsers(ctx, 1, 10, "", "desc")

		assert.Nil(t, result)
		assert.Equal(t, api.CodeInternal, appErrorCode(t, err))

		var appErr *api.AppError
		errors.As(err, &appErr)
		assert.Equal(t, "connection reset", appErr.Details["originalError"])
	})
}

func TestGetUserAgeStatsByCity(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	stats := []CityAgeStat{
		{City: "Lyon", AverageAge: 31.5, MinAge: 21, MaxAge: 42, TotalUsers: 4},
		{City: "Nice", AverageAge: 28, MinAge: 28, MaxAge: 28, TotalUsers: 1},
	}

	tests := []struct {
		name         string
		setupMock    func(m *MockUserRepo)
		expectedCode string
		expectedLen  int
	}{
		{
			name: "Success",
			setupMock: func(m *MockUserRepo) {
				m.On("CityAgeStats", ctx).Return(stats, nil)
			},
			expectedLen: 2,
		},
		{
			name: "No users is NOT_FOUND",
			setupMock: func(m *MockUserRepo) {
				m.On("CityAgeStats", ctx).Return([]CityAgeStat{}, nil)
			},
			expectedCode: api.CodeNotFound,
		},
		{
			name: "Aggregation error wraps as INTERNAL_ERROR",
			setupMock: func(m *MockUserRepo) {
				m.On("CityAgeStats", ctx).Return(nil, errors.New("aggregation failed"))
			},
			expectedCode: api.CodeInternal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := new(MockUserRepo)
			tc.setupMock(mockRepo)
			service := NewUserService(mockRepo, logger)

			result, err := service.GetUserAgeStatsByCity(ctx)

			if tc.expectedCode != "" {
				assert.Equal(t, tc.expectedCode, appErrorCode(t, err))
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Len(t, result, tc.expectedLen)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	params := CreateUserParams{Username: "alice", Email: "a@x.com", Age: 30, City: "Lyon"}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		created := testUser("alice", "a@x.com", 30, "Lyon")
		mockRepo.On("FindByEmailOrUsername", ctx, "a@x.com", "alice").Return(nil, nil)
		mockRepo.On("Insert", ctx, params).Return(created, nil)

		result, err := service.CreateUser(ctx, params)

		assert.NoError(t, err)
		assert.Equal(t, "alice", result.Username)
		assert.False(t, result.ID.IsZero())
		mockRepo.AssertExpectations(t)
	})

	t.Run("Existing email or username is CONFLICT", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("FindByEmailOrUsername", ctx, "a@x.com", "alice").
			Return(testUser("alice", "a@x.com", 30, "Lyon"), nil)

		result, err := service.CreateUser(ctx, params)

		assert.Nil(t, result)
		assert.Equal(t, api.CodeConflict, appErrorCode(t, err))

		// Both fields are reported, so the client knows what to change.
		var appErr *api.AppError
		errors.As(err, &appErr)
		assert.Equal(t, "a@x.com", appErr.Details["email"])
		assert.Equal(t, "alice", appErr.Details["username"])
		mockRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("Insert failure wraps as INTERNAL_ERROR preserving the cause", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		// A lost uniqueness race surfaces as a store error after the
		// pre-check passed; it is wrapped, not translated to CONFLICT.
		mockRepo.On("FindByEmailOrUsername", ctx, "a@x.com", "alice").Return(nil, nil)
		mockRepo.On("Insert", ctx, params).Return(nil, errors.New("E11000 duplicate key error"))

		result, err := service.CreateUser(ctx, params)

		assert.Nil(t, result)
		assert.Equal(t, api.CodeInternal, appErrorCode(t, err))

		var appErr *api.AppError
		errors.As(err, &appErr)
		assert.Contains(t, appErr.Details["originalError"], "E11000")
	})

	t.Run("Pre-check failure wraps as INTERNAL_ERROR", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("FindByEmailOrUsername", ctx, "a@x.com", "alice").
			Return(nil, errors.New("server selection timeout"))

		result, err := service.CreateUser(ctx, params)

		assert.Nil(t, result)
		assert.Equal(t, api.CodeInternal, appErrorCode(t, err))
	})
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("Strips email and username before writing", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		age := 31
		email := "new@x.com"
		username := "eve"
		updated := testUser("alice", "a@x.com", 31, "Lyon")

		// The repository must only ever see the safe fields.
		mockRepo.On("UpdateByID", ctx, "abc123", UpdateUserParams{Age: &age}).Return(updated, nil)

		result, err := service.UpdateUser(ctx, "abc123", UpdateUserParams{
			Age:      &age,
			Email:    &email,
			Username: &username,
		})

		assert.NoError(t, err)
		assert.Equal(t, "a@x.com", result.Email)
		assert.Equal(t, 31, result.Age)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Missing id is NOT_FOUND", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("UpdateByID", ctx, "missing", UpdateUserParams{}).Return(nil, nil)

		result, err := service.UpdateUser(ctx, "missing", UpdateUserParams{})

		assert.Nil(t, result)
		assert.Equal(t, api.CodeNotFound, appErrorCode(t, err))
	})

	t.Run("Repository error wraps as INTERNAL_ERROR", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("UpdateByID", ctx, "abc123", UpdateUserParams{}).
			Return(nil, errors.New("schema validation failed: age 130 outside 18-120"))

		result, err := service.UpdateUser(ctx, "abc123", UpdateUserParams{})

		assert.Nil(t, result)
		assert.Equal(t, api.CodeInternal, appErrorCode(t, err))
	})
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("Returns the deleted entity", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		deleted := testUser("alice", "a@x.com", 30, "Lyon")
		mockRepo.On("DeleteByID", ctx, "abc123").Return(deleted, nil)

		result, err := service.DeleteUser(ctx, "abc123")

		assert.NoError(t, err)
		assert.Equal(t, "alice", result.Username)
	})

	t.Run("Missing id is NOT_FOUND", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("DeleteByID", ctx, "missing").Return(nil, nil)

		result, err := service.DeleteUser(ctx, "missing")

		assert.Nil(t, result)
		assert.Equal(t, api.CodeNotFound, appErrorCode(t, err))
	})

	t.Run("Repository error wraps as INTERNAL_ERROR", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := NewUserService(mockRepo, logger)

		mockRepo.On("DeleteByID", ctx, "abc123").Return(nil, errors.New("connection reset"))

		result, err := service.DeleteUser(ctx, "abc123")

		assert.Nil(t, result)
		assert.Equal(t, api.CodeInternal, appErrorCode(t, err))
	})
}
