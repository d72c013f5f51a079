package service

import (
	"context"

	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/realtime"
)

// ForumServiceInterface is the forum surface the HTTP handlers depend on.
type ForumServiceInterface interface {
	CreatePost(ctx context.Context, actor *model.Actor, in CreatePostInput) (*model.Post, error)
	GetPost(ctx context.Context, actor *model.Actor, postID string) (*model.Post, error)
	ListPosts(ctx context.Context, actor *model.Actor, filter model.PostFilter) ([]*model.Post, int, error)
	EditPost(ctx context.Context, actor *model.Actor, postID, title, content string) (*model.Post, error)
	DeletePost(ctx context.Context, actor *model.Actor, postID, reason string) error
	SetPinned(ctx context.Context, actor *model.Actor, postID string, pinned bool) (*model.Post, error)
	VotePost(ctx context.Context, actor *model.Actor, postID string, vote model.VoteType) (*model.VoteResult, error)
	ReactPost(ctx context.Context, actor *model.Actor, postID, emoji string) (string, error)

	ListReplyTree(ctx context.Context, actor *model.Actor, postID string) ([]forum.ReplyNode, error)
	AddReply(ctx context.Context, actor *model.Actor, postID, content string, parentReplyID *string) (*model.Reply, error)
	EditReply(ctx context.Context, actor *model.Actor, postID, replyID, content string) (*model.Reply, error)
	DeleteReply(ctx context.Context, actor *model.Actor, postID, replyID string) error
	VoteReply(ctx context.Context, actor *model.Actor, postID, replyID string, vote model.VoteType) (*model.VoteResult, error)

	Subscribe(ctx context.Context, actor *model.Actor, postID string) (<-chan realtime.Message, []realtime.Message, error)
}

// UserServiceInterface is the user surface the HTTP layer depends on.
type UserServiceInterface interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ResolveActor(ctx context.Context, userID string) (*model.Actor, error)
}

var (
	_ ForumServiceInterface = (*ForumService)(nil)
	_ UserServiceInterface  = (*UserService)(nil)
	_ Notifier              = (*NotificationService)(nil)
)
