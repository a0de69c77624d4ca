package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/abakus-kids/academy/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username taken")
	ErrInvalidUser        = errors.New("invalid user")
)

type User struct {
	ID           string `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         string `json:"role" db:"role"`
	CreatedAt    int64  `json:"created_at" db:"created_at"`
}

// Users is the local account table.
type Users struct {
	db   *sqlx.DB
	cost int
}

func NewUsers(db *sqlx.DB) *Users { return &Users{db: db, cost: bcrypt.DefaultCost} }

// WithCost lowers the bcrypt cost; tests use bcrypt.MinCost.
func (u *Users) WithCost(cost int) *Users { u.cost = cost; return u }

func (u *Users) Create(ctx context.Context, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return User{}, fmt.Errorf("%w: username required", ErrInvalidUser)
	case len(password) < 6:
		return User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidUser)
	case !rbac.ValidRole(role):
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return User{}, err
	}
	usr := User{ID: uuid.NewString(), Username: username, PasswordHash: string(hash), Role: role, CreatedAt: time.Now().Unix()}
	_, err = u.db.NamedExecContext(ctx, `INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES (:id, :username, :password_hash, :role, :created_at)`, usr)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return usr, nil
}

// Authenticate returns the user when password matches the stored hash.
func (u *Users) Authenticate(ctx context.Context, username, password string) (User, error) {
	var usr User
	err := u.db.GetContext(ctx, &usr, u.db.Rebind(`SELECT id, username, password_hash, role, created_at
		FROM users WHERE username=?`), strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

// RoleOf looks up the current role of a user id.
func (u *Users) RoleOf(ctx context.Context, id string) (string, error) {
	var role string
	err := u.db.GetContext(ctx, &role, u.db.Rebind(`SELECT role FROM users WHERE id=?`), id)
	return role, err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}
