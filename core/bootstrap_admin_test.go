package core

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// memAdminRepo is a mutable in-memory AdminRepository for bootstrap tests.
type memAdminRepo struct {
	admins map[string]Admin
	nextID int64
}

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{admins: map[string]Admin{}, nextID: 1}
}

func (r *memAdminRepo) FindByUsername(ctx context.Context, username string) (*Admin, error) {
	a, ok := r.admins[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *memAdminRepo) Create(ctx context.Context, username, passwordHash, name string) (int64, error) {
	id := r.nextID
	r.nextID++
	r.admins[username] = Admin{ID: id, Username: username, PasswordHash: passwordHash, Name: name}
	return id, nil
}

func (r *memAdminRepo) HasAdmin(ctx context.Context) (bool, error) {
	return len(r.admins) > 0, nil
}

func TestBootstrapAdminCreatesAccount(t *testing.T) {
	repo := newMemAdminRepo()
	cfg := Config{BootstrapAdminEnabled: true, AdminPassword: "hunter2hunter2"}

	if err := BootstrapAdmin(context.Background(), repo, cfg); err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}

	admin, err := repo.FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if admin.Name != "System Administrator" {
		t.Fatalf("name = %q, want System Administrator", admin.Name)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("hunter2hunter2")) != nil {
		t.Fatal("stored hash does not match configured password")
	}
}

func TestBootstrapAdminIdempotent(t *testing.T) {
	repo := newMemAdminRepo()
	cfg := Config{BootstrapAdminEnabled: true, AdminPassword: "first-password"}

	if err := BootstrapAdmin(context.Background(), repo, cfg); err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	original := repo.admins["admin"]

	cfg.AdminPassword = "second-password"
	if err := BootstrapAdmin(context.Background(), repo, cfg); err != nil {
		t.Fatalf("second BootstrapAdmin error: %v", err)
	}
	if repo.admins["admin"].PasswordHash != original.PasswordHash {
		t.Fatal("existing admin was overwritten")
	}
	if len(repo.admins) != 1 {
		t.Fatalf("admin count = %d, want 1", len(repo.admins))
	}
}

func TestBootstrapAdminDisabled(t *testing.T) {
	repo := newMemAdminRepo()
	if err := BootstrapAdmin(context.Background(), repo, Config{BootstrapAdminEnabled: false}); err != nil {
		t.Fatalf("BootstrapAdmin error: %v", err)
	}
	if len(repo.admins) != 0 {
		t.Fatal("admin created despite bootstrap disabled")
	}
}

func TestAuthenticateWithBcrypt(t *testing.T) {
	repo := newMemAdminRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	repo.admins["admin"] = Admin{ID: 1, Username: "admin", PasswordHash: string(hash), Name: "System Administrator"}

	svc := NewRepositoryAuthService(repo)

	if _, err := svc.Authenticate(context.Background(), "admin", "s3cret"); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "admin", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody", "s3cret"); err != ErrInvalidCredentials {
		t.Fatalf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}
