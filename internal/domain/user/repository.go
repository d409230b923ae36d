package user

import "context"

// Repository defines persistence operations for User aggregate.
type Repository interface {
	// GetOrCreate inserts a user with the given profile unless one exists.
	// created is true when the row was inserted by this call.
	GetOrCreate(ctx context.Context, id int64, p Profile) (u *User, created bool, err error)
	// GetByID returns (nil, false, nil) when the user does not exist.
	GetByID(ctx context.Context, id int64) (*User, bool, error)
	Update(ctx context.Context, u *User) error
}
