package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sprintline/sprintline/internal/clock"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
	userrepo "github.com/sprintline/sprintline/internal/user/repository"
	userservice "github.com/sprintline/sprintline/internal/user/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			external_id TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_users_external_id ON users(external_id)`,
		`CREATE INDEX ix_users_email ON users(email)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type recordingImporter struct {
	calls  int
	userID snowflake.ID
	email  string
}

func (r *recordingImporter) SyncLocalProgress(ctx context.Context, tx *gorm.DB, userID snowflake.ID, email string) error {
	r.calls++
	r.userID = userID
	r.email = email
	return nil
}

func newUserService(t *testing.T, db *gorm.DB, importer userdomain.LocalProgressImporter) userdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return userservice.NewService(userservice.ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:     userrepo.Provide(),
		Importer: importer,
	})
}

func TestCreateResolvesSameSubject(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, setupTestDB(t), nil)

	created, err := svc.Create(ctx, userdomain.CreateUserRequest{
		ExternalID: "auth0|abc123",
		Email:      "Founder@Example.COM",
	})
	require.NoError(t, err)
	assert.Equal(t, "founder@example.com", created.Email)

	again, err := svc.Create(ctx, userdomain.CreateUserRequest{
		ExternalID: "auth0|abc123",
		Email:      "founder@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	resolved, err := svc.Resolve(ctx, "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)

	byID, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc123", byID.ExternalID)
}

func TestCreateReplaysLocalProgressOnce(t *testing.T) {
	ctx := context.Background()
	importer := &recordingImporter{}
	svc := newUserService(t, setupTestDB(t), importer)

	created, err := svc.Create(ctx, userdomain.CreateUserRequest{
		ExternalID: "auth0|xyz",
		Email:      " Buyer@Example.com ",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, importer.calls)
	assert.Equal(t, created.ID, importer.userID)
	assert.Equal(t, "buyer@example.com", importer.email)

	// A repeated signup hits the existing record and must not replay.
	_, err = svc.Create(ctx, userdomain.CreateUserRequest{
		ExternalID: "auth0|xyz",
		Email:      "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, importer.calls)
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t, setupTestDB(t), nil)

	_, err := svc.Create(ctx, userdomain.CreateUserRequest{ExternalID: "  ", Email: "a@b.co"})
	assert.ErrorIs(t, err, userdomain.ErrInvalidExternalID)

	_, err = svc.Create(ctx, userdomain.CreateUserRequest{ExternalID: "auth0|ok", Email: "not-an-email"})
	assert.ErrorIs(t, err, userdomain.ErrInvalidEmail)

	_, err = svc.Resolve(ctx, "")
	assert.ErrorIs(t, err, userdomain.ErrInvalidExternalID)

	_, err = svc.Resolve(ctx, "auth0|missing")
	assert.ErrorIs(t, err, userdomain.ErrUserNotFound)
}

func TestDuplicateSubjectInsertReportsExistingRow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := userrepo.Provide()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	user := userdomain.User{
		ID:         node.Generate(),
		ExternalID: "auth0|race",
		Email:      "race@example.com",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	inserted, err := repo.Insert(ctx, db, &user)
	require.NoError(t, err)
	assert.True(t, inserted)

	// A racing insert for the same subject yields without erroring, so
	// the caller can reread the winner inside the same transaction.
	racer := user
	racer.ID = node.Generate()
	inserted, err = repo.Insert(ctx, db, &racer)
	require.NoError(t, err)
	assert.False(t, inserted)

	winner, err := repo.FindByExternalID(ctx, db, "auth0|race")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, user.ID, winner.ID)
}
