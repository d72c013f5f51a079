package memory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) interfaces.ForumRepository {
	t.Helper()
	repo := NewForumRepository(NewDB())
	require.NoError(t, repo.CreatePost(context.Background(), &model.Post{
		ID:        "p1",
		Title:     "Week 1",
		Content:   "Questions about week 1",
		AuthorID:  "u1",
		CreatedAt: time.Now(),
	}))
	return repo
}

func TestConcurrentVotersDoNotLoseEntries(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	target := model.VoteTarget{Kind: model.TargetPost, PostID: "p1"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ApplyVote(ctx, target, "voter-"+strconv.Itoa(i), model.VoteUp)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	post, err := repo.GetPostByID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, post.Votes, 50)
	assert.Equal(t, 50, post.Score)
	assert.Equal(t, forum.Tally(post.Votes), post.Score)
}

func TestReplyVotesAndMissingTarget(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateReply(ctx, &model.Reply{ID: "r1", PostID: "p1", Content: "hi", CreatedAt: time.Now()}))

	res, err := repo.ApplyVote(ctx, model.VoteTarget{Kind: model.TargetReply, PostID: "p1", ReplyID: "r1"}, "u2", model.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)

	_, err = repo.ApplyVote(ctx, model.VoteTarget{Kind: model.TargetReply, PostID: "p1", ReplyID: "nope"}, "u2", model.VoteDown)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestDeleteReplyKeepsChildren(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Now()
	parent := "r1"
	require.NoError(t, repo.CreateReply(ctx, &model.Reply{ID: "r1", PostID: "p1", Content: "parent", CreatedAt: base}))
	require.NoError(t, repo.CreateReply(ctx, &model.Reply{ID: "r2", PostID: "p1", Content: "child", CreatedAt: base.Add(time.Second), ParentReplyID: &parent}))

	require.NoError(t, repo.DeleteReply(ctx, "p1", "r1"))

	child, err := repo.GetReply(ctx, "p1", "r2")
	require.NoError(t, err)
	require.NotNil(t, child)
	require.NotNil(t, child.ParentReplyID)
	assert.Equal(t, "r1", *child.ParentReplyID)

	replies, err := repo.ListReplies(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestListPostsPinnedFirst(t *testing.T) {
	repo := NewForumRepository(NewDB())
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.CreatePost(ctx, &model.Post{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, repo.CreatePost(ctx, &model.Post{ID: "other-course", CourseID: "c1", CreatedAt: base}))
	require.NoError(t, repo.SetPinned(ctx, "old", true))

	posts, total, err := repo.ListPosts(ctx, model.PostFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, posts, 2)
	assert.Equal(t, "old", posts[0].ID)
	assert.Equal(t, "new", posts[1].ID)

	posts, _, err = repo.ListPosts(ctx, model.PostFilter{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestToggleReaction(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	got, err := repo.ToggleReaction(ctx, "p1", "u2", "👍")
	require.NoError(t, err)
	assert.Equal(t, "👍", got)

	got, err = repo.ToggleReaction(ctx, "p1", "u2", "👍")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	post, _ := repo.GetPostByID(ctx, "p1")
	assert.Empty(t, post.Reactions)
}
