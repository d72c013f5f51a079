package service

import (
	"context"
	stderrors "errors"
	"mime/multipart"
	"strings"
	"time"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/realtime"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/storage"
	"course-forum-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreatePostInput is the data a user submits for a new post.
type CreatePostInput struct {
	CourseID string
	Title    string
	Content  string
	Images   []*multipart.FileHeader
}

// Notifier is told about events that concern a post's author.
type Notifier interface {
	NotifyReply(ctx context.Context, post *model.Post, reply *model.Reply)
	NotifyPostDeleted(ctx context.Context, post *model.Post, by *model.Actor, reason string)
}

// ForumService runs every post and reply operation: it authenticates the
// actor, validates input, evaluates access and permissions, writes through
// the repository and publishes fresh snapshots to subscribers.
type ForumService struct {
	repo     interfaces.ForumRepository
	courses  interfaces.CourseRepository
	uploader storage.Uploader
	hub      *realtime.Hub
	notifier Notifier

	now   func() time.Time
	newID func() string
}

// NewForumService wires the service. uploader, hub and notifier may be nil.
func NewForumService(repo interfaces.ForumRepository, courses interfaces.CourseRepository,
	uploader storage.Uploader, hub *realtime.Hub, notifier Notifier) *ForumService {
	return &ForumService{
		repo:     repo,
		courses:  courses,
		uploader: uploader,
		hub:      hub,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// postScope is a loaded post with the course it belongs to.
type postScope struct {
	post   *model.Post
	course *model.Course
}

func requireActor(actor *model.Actor) error {
	if actor == nil || actor.UserID == "" {
		return errors.New(errors.ErrUnauthorized, "authentication required")
	}
	return nil
}

func requireContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New(errors.ErrValidation, "content must not be empty")
	}
	return nil
}

func requireVote(vote model.VoteType) error {
	if !vote.Valid() {
		return errors.New(errors.ErrValidation, "vote must be upvote or downvote")
	}
	return nil
}

// storeError maps a repository error to an AppError.
func storeError(err error, notFound errors.ErrorCode, message string) error {
	switch {
	case stderrors.Is(err, interfaces.ErrNotFound):
		return errors.New(notFound, message+": not found")
	case stderrors.Is(err, interfaces.ErrInvalidKey):
		return errors.Wrap(errors.ErrValidation, message+": invalid identifier", err)
	case stderrors.Is(err, interfaces.ErrConflict):
		return errors.Wrap(errors.ErrResourceConflict, message+": concurrent update, try again", err)
	default:
		return errors.Wrap(errors.ErrDatabase, message, err)
	}
}

// loadCourse returns the course for courseID, nil for the global forum, and
// checks that actor may use it.
func (s *ForumService) loadCourse(ctx context.Context, actor *model.Actor, courseID string) (*model.Course, error) {
	if courseID == "" {
		return nil, nil
	}
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load course", err)
	}
	if course == nil {
		return nil, errors.New(errors.ErrCourseNotFound, "course not found")
	}

	enrolled := false
	if !forum.IsStaff(actor) && course.OwnerID != actor.UserID {
		enrolled, err = s.courses.IsEnrolled(ctx, courseID, actor.UserID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to check enrollment", err)
		}
	}
	if !forum.CanAccess(actor, course, enrolled) {
		return nil, errors.New(errors.ErrForbidden, "you are not enrolled in this course")
	}
	return course, nil
}

// loadPost fetches a post and checks that actor may access its forum.
func (s *ForumService) loadPost(ctx context.Context, actor *model.Actor, postID string) (*postScope, error) {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load post", err)
	}
	if post == nil {
		return nil, errors.New(errors.ErrPostNotFound, "post not found")
	}
	course, err := s.loadCourse(ctx, actor, post.CourseID)
	if err != nil {
		return nil, err
	}
	return &postScope{post: post, course: course}, nil
}

func (s *ForumService) loadReply(ctx context.Context, postID, replyID string) (*model.Reply, error) {
	reply, err := s.repo.GetReply(ctx, postID, replyID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load reply", err)
	}
	if reply == nil {
		return nil, errors.New(errors.ErrReplyNotFound, "reply not found")
	}
	return reply, nil
}

func (s *ForumService) CreatePost(ctx context.Context, actor *model.Actor, in CreatePostInput) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New(errors.ErrValidation, "title must not be empty")
	}
	if err := requireContent(in.Content); err != nil {
		return nil, err
	}
	if len(in.Images) > 0 && s.uploader == nil {
		return nil, errors.New(errors.ErrBadRequest, "image uploads are not enabled")
	}
	for _, img := range in.Images {
		if err := storage.ValidateImage(img); err != nil {
			return nil, errors.Wrap(errors.ErrValidation, "invalid image", err)
		}
	}

	if _, err := s.loadCourse(ctx, actor, in.CourseID); err != nil {
		return nil, err
	}

	now := s.now()
	post := &model.Post{
		ID:         s.newID(),
		CourseID:   in.CourseID,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		AuthorID:   actor.UserID,
		AuthorName: actor.Name,
		Role:       actor.Role,
		CreatedAt:  now,
		UpdatedAt:  now,
		Reactions:  map[string]string{},
		Votes:      map[string]model.VoteType{},
		Images:     []string{},
	}

	var stored []string
	for _, img := range in.Images {
		key := storage.PostImagePath(post.ID, img)
		url, err := s.uploader.UploadFile(ctx, img, key)
		if err != nil {
			util.Logger.Error("failed to upload post image", zap.String("post_id", post.ID), zap.Error(err))
			s.discardUploads(ctx, post.ID, stored)
			return nil, errors.Wrap(errors.ErrStorage, "failed to upload image", err)
		}
		stored = append(stored, key)
		post.Images = append(post.Images, url)
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.discardUploads(ctx, post.ID, stored)
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create post", err)
	}
	return post, nil
}

// discardUploads removes the images of a post that was never stored.
func (s *ForumService) discardUploads(ctx context.Context, postID string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.uploader.Delete(ctx, key); err != nil {
			util.Logger.Warn("failed to remove orphaned image",
				zap.String("post_id", postID), zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *ForumService) GetPost(ctx context.Context, actor *model.Actor, postID string) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	return scope.post, nil
}

// ListPosts lists a course forum, or the global forum when filter.CourseID
// is empty, pinned posts first and then newest first.
func (s *ForumService) ListPosts(ctx context.Context, actor *model.Actor, filter model.PostFilter) ([]*model.Post, int, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	filter = filter.Normalize()

	if _, err := s.loadCourse(ctx, actor, filter.CourseID); err != nil {
		return nil, 0, err
	}

	posts, total, err := s.repo.ListPosts(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrDatabase, "failed to list posts", err)
	}
	return posts, total, nil
}

func (s *ForumService) EditPost(ctx context.Context, actor *model.Actor, postID, title, content string) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.New(errors.ErrValidation, "title must not be empty")
	}
	if err := requireContent(content); err != nil {
		return nil, err
	}

	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	if !forum.CanEditPost(actor, scope.post, scope.course) {
		return nil, errors.New(errors.ErrForbidden, "only the author or a moderator can edit this post")
	}

	editedAt := s.now()
	if err := s.repo.UpdatePostContent(ctx, postID, strings.TrimSpace(title), content, editedAt); err != nil {
		return nil, storeError(err, errors.ErrPostNotFound, "failed to update post")
	}

	post := scope.post
	post.Title = strings.TrimSpace(title)
	post.Content = content
	post.EditedAt = &editedAt
	post.UpdatedAt = editedAt
	s.publishPost(ctx, post.ID)
	return post, nil
}

// DeletePost removes a post. Its replies are kept. When someone other than
// the author deletes it, the author is notified with the optional reason.
func (s *ForumService) DeletePost(ctx context.Context, actor *model.Actor, postID, reason string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return err
	}
	if !forum.CanDeletePost(actor, scope.post, scope.course) {
		return errors.New(errors.ErrForbidden, "only the author or a moderator can delete this post")
	}

	if err := s.repo.DeletePost(ctx, postID); err != nil {
		return storeError(err, errors.ErrPostNotFound, "failed to delete post")
	}
	util.Logger.Info("post deleted",
		zap.String("post_id", postID), zap.String("by", actor.UserID), zap.String("reason", reason))

	if s.hub != nil {
		s.hub.Publish(realtime.PostTopic(postID), realtime.TypeDeleted, map[string]string{"id": postID})
		s.hub.Publish(realtime.RepliesTopic(postID), realtime.TypeDeleted, map[string]string{"id": postID})
	}
	if s.notifier != nil && scope.post.AuthorID != actor.UserID {
		s.notifier.NotifyPostDeleted(ctx, scope.post, actor, reason)
	}
	return nil
}

func (s *ForumService) SetPinned(ctx context.Context, actor *model.Actor, postID string, pinned bool) (*model.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	if !forum.CanPin(actor, scope.post, scope.course) {
		return nil, errors.New(errors.ErrForbidden, "only a moderator can pin posts")
	}

	if err := s.repo.SetPinned(ctx, postID, pinned); err != nil {
		return nil, storeError(err, errors.ErrPostNotFound, "failed to pin post")
	}
	scope.post.IsPinned = pinned
	s.publishPost(ctx, postID)
	return scope.post, nil
}

func (s *ForumService) VotePost(ctx context.Context, actor *model.Actor, postID string, vote model.VoteType) (*model.VoteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireVote(vote); err != nil {
		return nil, err
	}
	if _, err := s.loadPost(ctx, actor, postID); err != nil {
		return nil, err
	}

	target := model.VoteTarget{Kind: model.TargetPost, PostID: postID}
	result, err := s.repo.ApplyVote(ctx, target, actor.UserID, vote)
	if err != nil {
		return nil, storeError(err, errors.ErrPostNotFound, "failed to vote on post")
	}
	s.publishPost(ctx, postID)
	return result, nil
}

// ReactPost sets the actor's reaction. Reacting with the held emoji clears it.
func (s *ForumService) ReactPost(ctx context.Context, actor *model.Actor, postID, emoji string) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}
	if !forum.ValidEmoji(emoji) {
		return "", errors.New(errors.ErrValidation, "invalid reaction")
	}
	if _, err := s.loadPost(ctx, actor, postID); err != nil {
		return "", err
	}

	reaction, err := s.repo.ToggleReaction(ctx, postID, actor.UserID, emoji)
	if err != nil {
		return "", storeError(err, errors.ErrPostNotFound, "failed to react to post")
	}
	s.publishPost(ctx, postID)
	return reaction, nil
}

// ListReplyTree returns the replies of a post as a forest.
func (s *ForumService) ListReplyTree(ctx context.Context, actor *model.Actor, postID string) ([]forum.ReplyNode, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadPost(ctx, actor, postID); err != nil {
		return nil, err
	}
	return s.replyTree(ctx, postID)
}

func (s *ForumService) replyTree(ctx context.Context, postID string) ([]forum.ReplyNode, error) {
	replies, err := s.repo.ListReplies(ctx, postID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list replies", err)
	}
	return forum.BuildReplyTree(replies), nil
}

// AddReply posts a reply, nested under parentReplyID when it is set.
func (s *ForumService) AddReply(ctx context.Context, actor *model.Actor, postID, content string, parentReplyID *string) (*model.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireContent(content); err != nil {
		return nil, err
	}
	if parentReplyID != nil && *parentReplyID == "" {
		parentReplyID = nil
	}

	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}

	if parentReplyID != nil {
		parent, err := s.repo.GetReply(ctx, postID, *parentReplyID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to load parent reply", err)
		}
		if parent == nil {
			return nil, errors.New(errors.ErrValidation, "parent reply does not exist on this post")
		}
	}

	reply := &model.Reply{
		ID:            s.newID(),
		PostID:        postID,
		AuthorID:      actor.UserID,
		AuthorName:    actor.Name,
		Content:       content,
		CreatedAt:     s.now(),
		ParentReplyID: parentReplyID,
		Votes:         map[string]model.VoteType{},
	}
	if err := s.repo.CreateReply(ctx, reply); err != nil {
		return nil, storeError(err, errors.ErrPostNotFound, "failed to create reply")
	}

	s.publishReplies(ctx, postID)
	if s.notifier != nil && scope.post.AuthorID != actor.UserID {
		s.notifier.NotifyReply(ctx, scope.post, reply)
	}
	return reply, nil
}

func (s *ForumService) EditReply(ctx context.Context, actor *model.Actor, postID, replyID, content string) (*model.Reply, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireContent(content); err != nil {
		return nil, err
	}

	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return nil, err
	}
	reply, err := s.loadReply(ctx, postID, replyID)
	if err != nil {
		return nil, err
	}
	if !forum.CanEditReply(actor, reply, scope.post, scope.course) {
		return nil, errors.New(errors.ErrForbidden, "only the author or a moderator can edit this reply")
	}

	editedAt := s.now()
	if err := s.repo.UpdateReplyContent(ctx, postID, replyID, content, editedAt); err != nil {
		return nil, storeError(err, errors.ErrReplyNotFound, "failed to update reply")
	}
	reply.Content = content
	reply.EditedAt = &editedAt
	s.publishReplies(ctx, postID)
	return reply, nil
}

// DeleteReply removes one reply. Its children stay and show up as roots.
func (s *ForumService) DeleteReply(ctx context.Context, actor *model.Actor, postID, replyID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	scope, err := s.loadPost(ctx, actor, postID)
	if err != nil {
		return err
	}
	reply, err := s.loadReply(ctx, postID, replyID)
	if err != nil {
		return err
	}
	if !forum.CanDeleteReply(actor, reply, scope.post, scope.course) {
		return errors.New(errors.ErrForbidden, "you cannot delete this reply")
	}

	if err := s.repo.DeleteReply(ctx, postID, replyID); err != nil {
		return storeError(err, errors.ErrReplyNotFound, "failed to delete reply")
	}
	s.publishReplies(ctx, postID)
	return nil
}

func (s *ForumService) VoteReply(ctx context.Context, actor *model.Actor, postID, replyID string, vote model.VoteType) (*model.VoteResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := requireVote(vote); err != nil {
		return nil, err
	}
	if _, err := s.loadPost(ctx, actor, postID); err != nil {
		return nil, err
	}

	target := model.VoteTarget{Kind: model.TargetReply, PostID: postID, ReplyID: replyID}
	result, err := s.repo.ApplyVote(ctx, target, actor.UserID, vote)
	if err != nil {
		return nil, storeError(err, errors.ErrReplyNotFound, "failed to vote on reply")
	}
	s.publishReplies(ctx, postID)
	return result, nil
}

// Subscribe registers actor for live snapshots of a post and returns the
// stream with the snapshots to send first. The hub registration precedes the
// snapshot reads, so a mutation in between still reaches the stream. The
// subscription lasts until ctx is cancelled, also when an error is returned.
func (s *ForumService) Subscribe(ctx context.Context, actor *model.Actor, postID string) (<-chan realtime.Message, []realtime.Message, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	if s.hub == nil {
		return nil, nil, errors.New(errors.ErrBadRequest, "live updates are not enabled")
	}
	if _, err := s.loadPost(ctx, actor, postID); err != nil {
		return nil, nil, err
	}

	postTopic, repliesTopic := realtime.PostTopic(postID), realtime.RepliesTopic(postID)
	messages := s.hub.Subscribe(ctx, postTopic, repliesTopic)

	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrDatabase, "failed to load post", err)
	}
	if post == nil {
		return nil, nil, errors.New(errors.ErrPostNotFound, "post not found")
	}
	tree, err := s.replyTree(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	initial := []realtime.Message{
		{Type: realtime.TypePost, Topic: postTopic, Data: post},
		{Type: realtime.TypeReplies, Topic: repliesTopic, Data: tree},
	}
	return messages, initial, nil
}

func (s *ForumService) publishPost(ctx context.Context, postID string) {
	topic := realtime.PostTopic(postID)
	if s.hub == nil || s.hub.SubscriberCount(topic) == 0 {
		return
	}
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil || post == nil {
		util.Logger.Warn("failed to load post snapshot", zap.String("post_id", postID), zap.Error(err))
		return
	}
	s.hub.Publish(topic, realtime.TypePost, post)
}

func (s *ForumService) publishReplies(ctx context.Context, postID string) {
	topic := realtime.RepliesTopic(postID)
	if s.hub == nil || s.hub.SubscriberCount(topic) == 0 {
		return
	}
	tree, err := s.replyTree(ctx, postID)
	if err != nil {
		util.Logger.Warn("failed to load reply snapshot", zap.String("post_id", postID), zap.Error(err))
		return
	}
	s.hub.Publish(topic, realtime.TypeReplies, tree)
}
