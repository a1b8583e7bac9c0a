package user

import (
	"context"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericpp/thumbs/domain"
)

type stubUserRepo struct {
	users  map[string]domain.User
	nextID int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]domain.User)}
}

func (r *stubUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *stubUserRepo) Insert(_ context.Context, u *domain.User) error {
	r.nextID++
	u.ID = r.nextID
	r.users[u.Username] = *u
	return nil
}

func (r *stubUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	u, ok := r.users[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *stubUserRepo) GetByIDs(_ context.Context, ids []int64) ([]domain.User, error) {
	var res []domain.User
	for _, id := range ids {
		if u, err := r.GetByID(context.Background(), id); err == nil {
			res = append(res, u)
		}
	}
	return res, nil
}

func TestRegister(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo, []byte("secret"), time.Hour)

	username := faker.Username()
	password := faker.Password()
	err := svc.Register(context.Background(), faker.Name(), username, password)
	require.NoError(t, err)

	stored, err := repo.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	// 密码必须哈希存储
	assert.NotEqual(t, password, stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(password)))
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo, []byte("secret"), time.Hour)

	username := faker.Username()
	require.NoError(t, svc.Register(context.Background(), faker.Name(), username, faker.Password()))

	err := svc.Register(context.Background(), faker.Name(), username, faker.Password())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_EmptyFields(t *testing.T) {
	svc := NewService(newStubUserRepo(), []byte("secret"), time.Hour)

	assert.ErrorIs(t, svc.Register(context.Background(), "", "user", "pass"), domain.ErrBadParamInput)
	assert.ErrorIs(t, svc.Register(context.Background(), "name", "", "pass"), domain.ErrBadParamInput)
	assert.ErrorIs(t, svc.Register(context.Background(), "name", "user", ""), domain.ErrBadParamInput)
}

func TestLogin(t *testing.T) {
	repo := newStubUserRepo()
	secret := []byte("secret")
	svc := NewService(repo, secret, time.Hour)

	username := faker.Username()
	password := faker.Password()
	require.NoError(t, svc.Register(context.Background(), faker.Name(), username, password))

	tokenStr, err := svc.Login(context.Background(), username, password)
	require.NoError(t, err)

	token, err := jwt.Parse(tokenStr, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(1), claims["user_id"])
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo, []byte("secret"), time.Hour)

	username := faker.Username()
	require.NoError(t, svc.Register(context.Background(), faker.Name(), username, faker.Password()))

	_, err := svc.Login(context.Background(), username, "wrong-password")
	assert.ErrorIs(t, err, domain.ErrBadParamInput)
}

func TestLogin_UnknownUser(t *testing.T) {
	svc := NewService(newStubUserRepo(), []byte("secret"), time.Hour)

	_, err := svc.Login(context.Background(), faker.Username(), faker.Password())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
