package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/file-approval-api/internal/models"
)

func TestListByFileNestsReplies(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	now := time.Now()
	commentRows := sqlmock.NewRows([]string{"id", "file_id", "author_id", "author_name", "author_role", "body", "type", "created_at"}).
		AddRow("c1", "f1", "tl1", "leader", string(models.RoleTeamLeader), "looks wrong", string(models.CommentTypeRevision), now).
		AddRow("c2", "f1", "u1", "alice", string(models.RoleUser), "fixed now", string(models.CommentTypeGeneral), now.Add(time.Minute))
	mock.ExpectQuery(`SELECT .+ FROM comments WHERE file_id = \$1 ORDER BY created_at ASC`).
		WithArgs("f1").
		WillReturnRows(commentRows)

	replyRows := sqlmock.NewRows([]string{"id", "comment_id", "author_id", "author_name", "author_role", "body", "created_at"}).
		AddRow("r1", "c1", "u1", "alice", string(models.RoleUser), "which part?", now.Add(30*time.Second))
	mock.ExpectQuery(`SELECT .+ FROM replies r`).
		WithArgs("f1").
		WillReturnRows(replyRows)

	comments, err := repo.ListByFile(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "which part?", comments[0].Replies[0].Body)
	assert.Empty(t, comments[1].Replies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByFileEmptyThreadSkipsReplyQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM comments WHERE file_id = \$1`).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_id", "author_id", "author_name", "author_role", "body", "type", "created_at"}))

	comments, err := repo.ListByFile(context.Background(), "f1")
	require.NoError(t, err)
	assert.Empty(t, comments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReplyGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec("INSERT INTO replies").WillReturnResult(sqlmock.NewResult(1, 1))

	reply := &models.Reply{CommentID: "c1", AuthorID: "u1", AuthorName: "alice", AuthorRole: models.RoleUser, Body: "thanks"}
	err := repo.CreateReply(context.Background(), reply)
	require.NoError(t, err)
	assert.NotEmpty(t, reply.ID)
	assert.False(t, reply.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplyExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectQuery(`SELECT 1 FROM replies WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM replies WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ReplyExists(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ReplyExists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
