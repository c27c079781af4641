package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

func newUserService(t *testing.T) *UserService {
	t.Helper()
	return NewUserService(newSQLiteStore(t).Users(), 6, zerolog.Nop(), WithHashCost(bcrypt.MinCost))
}

func TestRegisterThenAuthenticate(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  alice ", " alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.Active)
	assert.NotEmpty(t, u.UserID)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	byName, err := svc.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, byName.UserID)

	byEmail, err := svc.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, byEmail.UserID)

	_, err = svc.Authenticate(ctx, "alice", "wrong-pass")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret1")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	assert.Equal(t, err.Error(), model.ErrInvalidCredentials.Error())
}

func TestRegister_Conflicts(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "bob", "other@example.com", "secret1")
	require.True(t, model.IsConflictError(err), "got %v", err)
	assert.Equal(t, "username", model.ConflictField(err))

	_, err = svc.Register(ctx, "robert", "bob@example.com", "secret1")
	require.True(t, model.IsConflictError(err), "got %v", err)
	assert.Equal(t, "email", model.ConflictField(err))
}

func TestRegister_Validation(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "carol", "carol@example.com", "12345")
	var ve model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, model.KindWeakPassword, ve.Kind)

	_, err = svc.Register(ctx, "   ", "carol@example.com", "secret1")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, model.KindMissingField, ve.Kind)
	assert.Equal(t, "username", ve.Field)
}

func TestAuthenticate_MissingFields(t *testing.T) {
	svc := newUserService(t)
	_, err := svc.Authenticate(context.Background(), " ", "x")
	require.True(t, model.IsValidationError(err))
}

func TestCurrentUser(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	u, err := svc.CurrentUser(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = svc.CurrentUser(ctx, "missing-id")
	require.NoError(t, err)
	assert.Nil(t, u)

	reg, err := svc.Register(ctx, "dave", "dave@example.com", "secret1")
	require.NoError(t, err)
	u, err = svc.CurrentUser(ctx, reg.UserID)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "dave", u.Username)
}
