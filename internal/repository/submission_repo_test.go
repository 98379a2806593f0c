package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reembolso/internal/domain/entity"
	"github.com/garyjia/reembolso/migrations"
	"github.com/garyjia/reembolso/pkg/database"
)

func setupRepo(t *testing.T) (*SubmissionRepository, *database.DB) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return NewSubmissionRepository(db.DB, logger), db
}

func newSubmission(publicID string) *entity.Submission {
	return &entity.Submission{
		PublicID:        publicID,
		EmployeeName:    "SIDNEY VIEIRA NUNES",
		To:              []string{"contaspagar@comber.com.br"},
		Cc:              []string{"sidney@example.com", "gestor@example.com"},
		Subject:         "Solicitação de Reembolso - SIDNEY VIEIRA NUNES",
		Message:         "Segue recibo.",
		Total:           177,
		RequestJSON:     `{"itens":[]}`,
		AttachmentCount: 2,
	}
}

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	s := newSubmission("pub-1")
	var atts []*entity.Attachment
	for i, name := range []string{"recibo.pdf", "nota.png"} {
		atts = append(atts, &entity.Attachment{
			Position:    i,
			Filename:    name,
			ContentType: "application/pdf",
			Size:        10,
			FilePath:    "/tmp/" + name,
		})
	}
	require.NoError(t, repo.CreateWithAttachments(ctx, s, atts))
	assert.NotZero(t, s.ID)
	assert.Equal(t, entity.SubmissionStatusPending, s.Status)

	t.Run("by public id", func(t *testing.T) {
		got, err := repo.GetByPublicID(ctx, "pub-1")
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, s.To, got.To)
		assert.Equal(t, s.Cc, got.Cc)
		assert.Equal(t, s.Subject, got.Subject)
		assert.Equal(t, 177.0, got.Total)
		assert.Equal(t, entity.SubmissionStatusPending, got.Status)
		assert.Nil(t, got.SentAt)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("attachments in order", func(t *testing.T) {
		atts, err := repo.ListAttachments(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, atts, 2)
		assert.Equal(t, "recibo.pdf", atts[0].Filename)
		assert.Equal(t, "nota.png", atts[1].Filename)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByPublicID(ctx, "missing")
		assert.ErrorIs(t, err, ErrSubmissionNotFound)
		_, err = repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrSubmissionNotFound)
	})
}

func TestSubmissionRepository_CreateRollsBack(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	first := newSubmission("dup")
	require.NoError(t, repo.Create(ctx, nil, first))

	err := db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return repo.Create(ctx, tx, newSubmission("dup"))
	})
	assert.Error(t, err)

	pending, err := repo.ListPending(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSubmissionRepository_StatusTransitions(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	s := newSubmission("pub-2")
	s.Cc = nil
	require.NoError(t, repo.Create(ctx, nil, s))

	require.NoError(t, repo.Claim(ctx, s.ID))
	assert.ErrorIs(t, repo.Claim(ctx, s.ID), ErrNotClaimable)

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionStatusSending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.Cc)

	require.NoError(t, repo.MarkPending(ctx, s.ID, "dial tcp: refused"))
	got, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionStatusPending, got.Status)
	assert.Equal(t, "dial tcp: refused", got.ErrorMessage)

	require.NoError(t, repo.Claim(ctx, s.ID))
	sentAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSent(ctx, s.ID, sentAt))

	got, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionStatusSent, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.SentAt)
	assert.True(t, sentAt.Equal(*got.SentAt))
	assert.True(t, got.IsFinal())

	assert.ErrorIs(t, repo.MarkFailed(ctx, 9999, "x"), ErrSubmissionNotFound)
}

func TestSubmissionRepository_ListPending(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.Create(ctx, nil, newSubmission(id)))
	}
	b, err := repo.GetByPublicID(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, b.ID, "gave up"))

	d, err := repo.GetByPublicID(ctx, "d")
	require.NoError(t, err)
	require.NoError(t, repo.Claim(ctx, d.ID))

	later := time.Now().Add(time.Hour)
	got, err := repo.ListPending(ctx, later, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].PublicID)
	assert.Equal(t, "c", got[1].PublicID)

	limited, err := repo.ListPending(ctx, later, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	earlier, err := repo.ListPending(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, earlier)

	n, err := repo.RequeueStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recently claimed rows are left alone")

	n, err = repo.RequeueStale(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = repo.ListPending(ctx, later, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
