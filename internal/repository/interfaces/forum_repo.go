package interfaces

import (
	"context"
	"time"

	"course-forum-backend/internal/model"
)

// ForumRepository is the store boundary for posts and replies. Lookups return
// (nil, nil) when the document does not exist.
type ForumRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error)
	UpdatePostContent(ctx context.Context, id, title, content string, editedAt time.Time) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	DeletePost(ctx context.Context, id string) error

	CreateReply(ctx context.Context, reply *model.Reply) error
	GetReply(ctx context.Context, postID, replyID string) (*model.Reply, error)
	// ListReplies returns the replies of a post sorted by creation time ascending.
	ListReplies(ctx context.Context, postID string) ([]model.Reply, error)
	UpdateReplyContent(ctx context.Context, postID, replyID, content string, editedAt time.Time) error
	DeleteReply(ctx context.Context, postID, replyID string) error

	// ApplyVote toggles voterID's vote on target and adjusts its score in a
	// single atomic step.
	ApplyVote(ctx context.Context, target model.VoteTarget, voterID string, requested model.VoteType) (*model.VoteResult, error)
	// ToggleReaction sets or clears userID's reaction on a post and returns
	// the reaction the user ends up with.
	ToggleReaction(ctx context.Context, postID, userID, emoji string) (string, error)
}
