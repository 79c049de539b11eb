package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role issued today. Tokens still carry the role
// claim so handlers can branch on it without another lookup.
const RoleAdmin = "ADMIN"

// ErrInvalidCredentials is returned by AuthService.Authenticate for both
// unknown usernames and wrong passwords, so login responses cannot be
// used to probe which admin accounts exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal identifies the authenticated caller for one request.
type Principal struct {
	Username string
	Role     string
}

// AuthService verifies credentials against stored admins.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (*Admin, error)
}

// RepositoryAuthService checks bcrypt password hashes from AdminRepository.
type RepositoryAuthService struct {
	admins AdminRepository
}

func NewRepositoryAuthService(admins AdminRepository) *RepositoryAuthService {
	return &RepositoryAuthService{admins: admins}
}

func (s *RepositoryAuthService) Authenticate(ctx context.Context, username, password string) (*Admin, error) {
	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}
