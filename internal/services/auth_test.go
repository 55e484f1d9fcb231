package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"civiceye/internal/apperror"
	"civiceye/internal/auth"
	"civiceye/internal/models"
	"civiceye/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(secret string) (*AuthService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewAuthService(st, auth.NewJWTManager(secret, time.Hour)), st
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService("")

	u, err := svc.Register(ctx, RegisterInput{Email: " Asha@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Equal(t, "asha", u.Name)
	assert.Equal(t, models.RoleCitizen, u.Role)
	assert.NotEqual(t, "correct horse", u.Password)

	_, err = svc.Register(ctx, RegisterInput{Email: "asha@example.com", Password: "another pass"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	logged, err := svc.Login(ctx, "ASHA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	_, err = svc.Login(ctx, "asha@example.com", "wrong")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
	_, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService("")
	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "long enough"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "short"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: strings.Repeat("x", 80)})
	assert.True(t, apperror.Is(err, apperror.KindValidation), "got %v", err)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: strings.Repeat("x", 72)})
	assert.NoError(t, err)
}

// racingUsers behaves as if another request inserted the same user just
// before this one.
type racingUsers struct {
	*store.MemoryStore
}

func (r racingUsers) CreateUser(ctx context.Context, u *models.User) error {
	if err := r.MemoryStore.CreateUser(ctx, u); err != nil {
		return err
	}
	return store.ErrDuplicate
}

func TestUserFromTokenConcurrentFirstRequest(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewAuthService(racingUsers{st}, auth.NewJWTManager("provider-secret", time.Hour))
	id := uuid.NewString()
	token, err := auth.NewJWTManager("provider-secret", time.Hour).GenerateToken(id, "race@example.com", "Racer")
	require.NoError(t, err)

	u, err := svc.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "race@example.com", u.Email)
}

func TestUserFromTokenProvisionsCitizen(t *testing.T) {
	ctx := context.Background()
	svc, st := newAuthService("provider-secret")
	id := uuid.NewString()
	token, err := auth.NewJWTManager("provider-secret", time.Hour).GenerateToken(id, "new@example.com", "New Person")
	require.NoError(t, err)

	u, err := svc.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, models.RoleCitizen, u.Role)

	stored, err := st.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "New Person", stored.Name)

	again, err := svc.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, again.ID)
}

func TestUserFromTokenRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService("provider-secret")

	_, err := svc.UserFromToken(ctx, "garbage")
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	token, err := auth.NewJWTManager("provider-secret", time.Hour).GenerateToken("not-a-uuid", "x@example.com", "")
	require.NoError(t, err)
	_, err = svc.UserFromToken(ctx, token)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	disabled, _ := newAuthService("")
	_, err = disabled.UserFromToken(ctx, token)
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}

func TestIssueTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService("secret")
	u, err := svc.Register(ctx, RegisterInput{Email: "b@example.com", Password: "password1"})
	require.NoError(t, err)

	token, err := svc.IssueToken(u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.UserFromToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	noTokens, _ := newAuthService("")
	token, err = noTokens.IssueToken(u)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	svc, st := newAuthService("")

	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))
	total, _ := st.CountUsers(ctx)
	assert.Zero(t, total)

	require.NoError(t, svc.EnsureAdmin(ctx, "Admin@City.gov", "s3cret-pass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin@city.gov", "s3cret-pass"))
	total, _ = st.CountUsers(ctx)
	assert.EqualValues(t, 1, total)

	admin, err := svc.Login(ctx, "admin@city.gov", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	err = svc.EnsureAdmin(ctx, "other@city.gov", strings.Repeat("p", 100))
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService("")
	u, err := svc.Register(ctx, RegisterInput{Email: "c@example.com", Password: "password1"})
	require.NoError(t, err)

	name := "  Chandra <b>K</b> "
	updated, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Chandra K", updated.Name)
	assert.Equal(t, models.RoleCitizen, updated.Role)

	empty := ""
	_, err = svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Name: &empty})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	unchanged, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{})
	require.NoError(t, err)
	assert.Equal(t, "Chandra K", unchanged.Name)
}
