package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the stored entity. The document layout (bson tags) is owned by
// this package; nothing outside the repository touches the collection.
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username  string             `json:"username" bson:"username"`
	Email     string             `json:"email" bson:"email"`
	Age       int                `json:"age" bson:"age"`
	City      string             `json:"city" bson:"city"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CreateUserParams is the create request body. Constraint tags are the
// request-time validation pass; the repository re-checks at write time.
type CreateUserParams struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"required,min=18,max=120"`
	City     string `json:"city" validate:"required,min=2,max=50"`
}

// UpdateUserParams is the partial update body. Username and email are
// accepted on the wire but stripped by the service before the write;
// they are immutable after creation.
type UpdateUserParams struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Age      *int    `json:"age,omitempty"`
	City     *string `json:"city,omitempty"`
}

// PaginatedUsers is one page of the listing plus its pagination envelope.
type PaginatedUsers struct {
	Users      []User `json:"users"`
	Page       int64  `json:"page"`
	PageSize   int64  `json:"pageSize"`
	TotalUsers int64  `json:"totalUsers"`
	TotalPages int64  `json:"totalPages"`
}

// CityAgeStat is one aggregation group. The grouping key keeps the
// store's _id naming on the wire.
type CityAgeStat struct {
	City       string  `json:"_id" bson:"_id"`
	AverageAge float64 `json:"averageAge" bson:"averageAge"`
	MinAge     int     `json:"minAge" bson:"minAge"`
	MaxAge     int     `json:"maxAge" bson:"maxAge"`
	TotalUsers int64   `json:"totalUsers" bson:"totalUsers"`
}
