package mysql

import (
	"context"
	"regexp"
	"testing"

	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (interfaces.ForumRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewForumRepository(db), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestApplyVoteLocksAndUpserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT score FROM posts WHERE id = ? FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(4))
	mock.ExpectQuery(q("SELECT vote FROM forum_votes WHERE target_type = ? AND target_id = ? AND user_id = ?")).
		WithArgs("post", "p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"vote"}))
	mock.ExpectExec(q("INSERT INTO forum_votes (target_type, target_id, user_id, vote) VALUES (?, ?, ?, ?)")).
		WithArgs("post", "p1", "u1", "upvote").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE posts SET score = score + ? WHERE id = ?")).
		WithArgs(1, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	target := model.VoteTarget{Kind: model.TargetPost, PostID: "p1"}
	result, err := repo.ApplyVote(context.Background(), target, "u1", model.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, model.VoteUp, result.Vote)
	assert.Equal(t, 1, result.Delta)
	assert.Equal(t, 5, result.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyVoteSwitchAndToggleOffOnReply(t *testing.T) {
	repo, mock := newMockRepo(t)
	target := model.VoteTarget{Kind: model.TargetReply, PostID: "p1", ReplyID: "r1"}

	// upvote held, downvote requested: switch by -2.
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT score FROM replies WHERE id = ? AND post_id = ? FOR UPDATE")).
		WithArgs("r1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(1))
	mock.ExpectQuery(q("SELECT vote FROM forum_votes")).
		WithArgs("reply", "r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"vote"}).AddRow("upvote"))
	mock.ExpectExec(q("INSERT INTO forum_votes")).
		WithArgs("reply", "r1", "u1", "downvote").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE replies SET score = score + ? WHERE id = ?")).
		WithArgs(-2, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.ApplyVote(context.Background(), target, "u1", model.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, model.VoteDown, result.Vote)
	assert.Equal(t, -1, result.Score)

	// downvote held, downvote requested: the entry is deleted.
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT score FROM replies WHERE id = ? AND post_id = ? FOR UPDATE")).
		WithArgs("r1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(-1))
	mock.ExpectQuery(q("SELECT vote FROM forum_votes")).
		WithArgs("reply", "r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"vote"}).AddRow("downvote"))
	mock.ExpectExec(q("DELETE FROM forum_votes WHERE target_type = ? AND target_id = ? AND user_id = ?")).
		WithArgs("reply", "r1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE replies SET score = score + ? WHERE id = ?")).
		WithArgs(1, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err = repo.ApplyVote(context.Background(), target, "u1", model.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, model.VoteNone, result.Vote)
	assert.Equal(t, 0, result.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyVoteMissingTargetRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT score FROM posts WHERE id = ? FOR UPDATE")).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"score"}))
	mock.ExpectRollback()

	target := model.VoteTarget{Kind: model.TargetPost, PostID: "gone"}
	_, err := repo.ApplyVote(context.Background(), target, "u1", model.VoteUp)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleReactionTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM posts WHERE id = ? FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectQuery(q("SELECT emoji FROM post_reactions WHERE post_id = ? AND user_id = ?")).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"emoji"}).AddRow("👍"))
	mock.ExpectExec(q("DELETE FROM post_reactions WHERE post_id = ? AND user_id = ?")).
		WithArgs("p1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.ToggleReaction(context.Background(), "p1", "u1", "👍")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM posts WHERE id = ? FOR UPDATE")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1"))
	mock.ExpectQuery(q("SELECT emoji FROM post_reactions")).
		WithArgs("p1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"emoji"}).AddRow("👍"))
	mock.ExpectExec(q("INSERT INTO post_reactions (post_id, user_id, emoji) VALUES (?, ?, ?)")).
		WithArgs("p1", "u1", "🎉").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	got, err = repo.ToggleReaction(context.Background(), "p1", "u1", "🎉")
	require.NoError(t, err)
	assert.Equal(t, "🎉", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostKeepsReplies(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM posts WHERE id = ?")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM post_images WHERE post_id = ?")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM post_reactions WHERE post_id = ?")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM forum_votes WHERE target_type = 'post' AND target_id = ?")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.DeletePost(context.Background(), "p1"))
	// Any statement touching replies would fail as unexpected.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePostMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM posts WHERE id = ?")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.DeletePost(context.Background(), "gone"), interfaces.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
