package users

import apperrors "github.com/jrsteele09/go-session-client/internal/errors"

var ErrNotFound = apperrors.ErrNotFound

type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetLoggedIn(email string, loggedIn bool) error
}
