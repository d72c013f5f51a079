package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/realtime"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockForumRepository is a testify mock of interfaces.ForumRepository.
type MockForumRepository struct {
	mock.Mock
}

func (m *MockForumRepository) CreatePost(ctx context.Context, post *model.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *MockForumRepository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockForumRepository) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*model.Post), args.Int(1), args.Error(2)
}

func (m *MockForumRepository) UpdatePostContent(ctx context.Context, id, title, content string, editedAt time.Time) error {
	return m.Called(ctx, id, title, content, editedAt).Error(0)
}

func (m *MockForumRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return m.Called(ctx, id, pinned).Error(0)
}

func (m *MockForumRepository) DeletePost(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockForumRepository) CreateReply(ctx context.Context, reply *model.Reply) error {
	return m.Called(ctx, reply).Error(0)
}

func (m *MockForumRepository) GetReply(ctx context.Context, postID, replyID string) (*model.Reply, error) {
	args := m.Called(ctx, postID, replyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reply), args.Error(1)
}

func (m *MockForumRepository) ListReplies(ctx context.Context, postID string) ([]model.Reply, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).([]model.Reply), args.Error(1)
}

func (m *MockForumRepository) UpdateReplyContent(ctx context.Context, postID, replyID, content string, editedAt time.Time) error {
	return m.Called(ctx, postID, replyID, content, editedAt).Error(0)
}

func (m *MockForumRepository) DeleteReply(ctx context.Context, postID, replyID string) error {
	return m.Called(ctx, postID, replyID).Error(0)
}

func (m *MockForumRepository) ApplyVote(ctx context.Context, target model.VoteTarget, voterID string, requested model.VoteType) (*model.VoteResult, error) {
	args := m.Called(ctx, target, voterID, requested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VoteResult), args.Error(1)
}

func (m *MockForumRepository) ToggleReaction(ctx context.Context, postID, userID, emoji string) (string, error) {
	args := m.Called(ctx, postID, userID, emoji)
	return args.String(0), args.Error(1)
}

// MockCourseRepository is a testify mock of interfaces.CourseRepository.
type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseRepository) IsEnrolled(ctx context.Context, courseID, userID string) (bool, error) {
	args := m.Called(ctx, courseID, userID)
	return args.Bool(0), args.Error(1)
}

type recordingNotifier struct {
	mu      sync.Mutex
	replies []string
	deleted []string
}

func (n *recordingNotifier) NotifyReply(_ context.Context, post *model.Post, reply *model.Reply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies = append(n.replies, reply.ID)
}

func (n *recordingNotifier) NotifyPostDeleted(_ context.Context, post *model.Post, _ *model.Actor, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, post.ID+":"+reason)
}

var (
	student  = &model.Actor{UserID: "stu-1", Name: "Sam", Role: model.RoleStudent}
	outsider = &model.Actor{UserID: "stu-2", Name: "Ola", Role: model.RoleStudent}
	owner    = &model.Actor{UserID: "teach-owner", Name: "Prof", Role: model.RoleStudent}
	teacher  = &model.Actor{UserID: "teach-1", Name: "Tia", Role: model.RoleTeacher}
)

// newMemoryService returns a service over a memory store with course c1
// owned by owner and student enrolled. The clock advances one second per call.
func newMemoryService(t *testing.T) (*ForumService, *recordingNotifier, *realtime.Hub) {
	t.Helper()
	db := memory.NewDB()
	db.SeedCourse(model.Course{ID: "c1", Title: "Algorithms", OwnerID: owner.UserID}, student.UserID)

	hub := realtime.NewHub(8)
	notifier := &recordingNotifier{}
	svc := NewForumService(memory.NewForumRepository(db), memory.NewCourseRepository(db), nil, hub, notifier)

	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, notifier, hub
}

func createPost(t *testing.T, svc *ForumService, actor *model.Actor, courseID string) *model.Post {
	t.Helper()
	post, err := svc.CreatePost(context.Background(), actor, CreatePostInput{
		CourseID: courseID,
		Title:    "Week 1",
		Content:  "Questions about the first lab",
	})
	require.NoError(t, err)
	return post
}

func TestAddReplyDeniedForNonEnrolledStudent(t *testing.T) {
	repo := new(MockForumRepository)
	courses := new(MockCourseRepository)
	svc := NewForumService(repo, courses, nil, nil, nil)
	ctx := context.Background()

	repo.On("GetPostByID", ctx, "p1").Return(&model.Post{ID: "p1", CourseID: "c1", AuthorID: "someone"}, nil)
	courses.On("GetCourse", ctx, "c1").Return(&model.Course{ID: "c1", OwnerID: "teach-owner"}, nil)
	courses.On("IsEnrolled", ctx, "c1", outsider.UserID).Return(false, nil)

	_, err := svc.AddReply(ctx, outsider, "p1", "can I join?", nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	repo.AssertNotCalled(t, "CreateReply", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
	courses.AssertExpectations(t)
}

func TestAddReplyValidatesBeforeAnyStoreCall(t *testing.T) {
	repo := new(MockForumRepository)
	courses := new(MockCourseRepository)
	svc := NewForumService(repo, courses, nil, nil, nil)

	_, err := svc.AddReply(context.Background(), student, "p1", "   \n\t", nil)

	assert.True(t, errors.Is(err, errors.ErrValidation))
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "GetPostByID", mock.Anything, mock.Anything)
}

func TestOperationsRequireAuthentication(t *testing.T) {
	repo := new(MockForumRepository)
	svc := NewForumService(repo, new(MockCourseRepository), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AddReply(ctx, nil, "p1", "hello", nil)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	_, err = svc.VotePost(ctx, nil, "p1", model.VoteUp)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	err = svc.DeleteReply(ctx, &model.Actor{}, "p1", "r1")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	repo.AssertExpectations(t)
}

func TestVoteRejectsUnknownVoteType(t *testing.T) {
	repo := new(MockForumRepository)
	svc := NewForumService(repo, new(MockCourseRepository), nil, nil, nil)

	_, err := svc.VotePost(context.Background(), student, "p1", model.VoteType("sideways"))
	assert.True(t, errors.Is(err, errors.ErrValidation))
	repo.AssertNotCalled(t, "ApplyVote", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVoteConflictMapsToResourceConflict(t *testing.T) {
	repo := new(MockForumRepository)
	svc := NewForumService(repo, new(MockCourseRepository), nil, nil, nil)
	ctx := context.Background()

	repo.On("GetPostByID", ctx, "p1").Return(&model.Post{ID: "p1"}, nil)
	target := model.VoteTarget{Kind: model.TargetPost, PostID: "p1"}
	repo.On("ApplyVote", ctx, target, student.UserID, model.VoteUp).Return(nil, interfaces.ErrConflict)

	_, err := svc.VotePost(ctx, student, "p1", model.VoteUp)
	assert.True(t, errors.Is(err, errors.ErrResourceConflict))
	assert.Equal(t, 409, errors.StatusOf(err))
}

func TestUnusableUserIDIsRejectedAsValidation(t *testing.T) {
	repo := new(MockForumRepository)
	svc := NewForumService(repo, new(MockCourseRepository), nil, nil, nil)
	ctx := context.Background()
	dotted := &model.Actor{UserID: "first.last", Name: "Dot", Role: model.RoleStudent}

	repo.On("GetPostByID", ctx, "p1").Return(&model.Post{ID: "p1"}, nil)
	repo.On("ToggleReaction", ctx, "p1", dotted.UserID, "🎉").
		Return("", fmt.Errorf("%w: user id %q", interfaces.ErrInvalidKey, dotted.UserID))

	_, err := svc.ReactPost(ctx, dotted, "p1", "🎉")
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, 400, errors.StatusOf(err))
}

type recordingUploader struct {
	mu       sync.Mutex
	failOn   string
	uploaded []string
	deleted  []string
}

func (u *recordingUploader) UploadFile(_ context.Context, file *multipart.FileHeader, path string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if file.Filename == u.failOn {
		return "", fmt.Errorf("bucket unavailable")
	}
	u.uploaded = append(u.uploaded, path)
	return "https://cdn.example.com/" + path, nil
}

func (u *recordingUploader) Delete(_ context.Context, path string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, path)
	return nil
}

func TestCreatePostRemovesUploadsWhenStoreFails(t *testing.T) {
	repo := new(MockForumRepository)
	uploader := &recordingUploader{}
	svc := NewForumService(repo, new(MockCourseRepository), uploader, nil, nil)
	ctx := context.Background()

	repo.On("CreatePost", ctx, mock.Anything).Return(fmt.Errorf("connection reset"))

	_, err := svc.CreatePost(ctx, student, CreatePostInput{
		Title:   "Lab photos",
		Content: "See attached",
		Images:  []*multipart.FileHeader{{Filename: "a.png", Size: 3}, {Filename: "b.jpg", Size: 3}},
	})
	assert.True(t, errors.Is(err, errors.ErrDatabase))
	require.Len(t, uploader.uploaded, 2)
	assert.ElementsMatch(t, uploader.uploaded, uploader.deleted)
}

func TestCreatePostRemovesEarlierUploadsWhenOneFails(t *testing.T) {
	repo := new(MockForumRepository)
	uploader := &recordingUploader{failOn: "b.jpg"}
	svc := NewForumService(repo, new(MockCourseRepository), uploader, nil, nil)

	_, err := svc.CreatePost(context.Background(), student, CreatePostInput{
		Title:   "Lab photos",
		Content: "See attached",
		Images:  []*multipart.FileHeader{{Filename: "a.png", Size: 3}, {Filename: "b.jpg", Size: 3}},
	})
	assert.True(t, errors.Is(err, errors.ErrStorage))
	assert.Equal(t, uploader.uploaded, uploader.deleted)
	repo.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}

func TestReplyLifecycle(t *testing.T) {
	svc, notifier, _ := newMemoryService(t)
	ctx := context.Background()
	post := createPost(t, svc, student, "c1")

	top, err := svc.AddReply(ctx, teacher, post.ID, "Look at chapter 2", nil)
	require.NoError(t, err)
	child, err := svc.AddReply(ctx, student, post.ID, "Thanks!", &top.ID)
	require.NoError(t, err)

	tree, err := svc.ListReplyTree(ctx, student, post.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, child.ID, tree[0].Replies[0].ID)

	// Only the teacher's reply concerns someone other than the post author.
	assert.Equal(t, []string{top.ID}, notifier.replies)

	edited, err := svc.EditReply(ctx, student, post.ID, child.ID, "Thanks, that helped")
	require.NoError(t, err)
	require.NotNil(t, edited.EditedAt)

	stored, err := svc.ListReplyTree(ctx, student, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thanks, that helped", stored[0].Replies[0].Content)
	assert.NotNil(t, stored[0].Replies[0].EditedAt)

	// The post author may remove any reply on their post; the child survives as a root.
	require.NoError(t, svc.DeleteReply(ctx, student, post.ID, top.ID))
	tree, err = svc.ListReplyTree(ctx, student, post.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, child.ID, tree[0].ID)
	assert.Empty(t, tree[0].Replies)
}

func TestAddReplyRejectsUnknownParent(t *testing.T) {
	svc, _, _ := newMemoryService(t)
	post := createPost(t, svc, student, "")

	missing := "no-such-reply"
	_, err := svc.AddReply(context.Background(), student, post.ID, "hello", &missing)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestEditReplyPermissions(t *testing.T) {
	svc, _, _ := newMemoryService(t)
	ctx := context.Background()
	post := createPost(t, svc, student, "")

	reply, err := svc.AddReply(ctx, student, post.ID, "first", nil)
	require.NoError(t, err)

	_, err = svc.EditReply(ctx, outsider, post.ID, reply.ID, "hijack")
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.EditReply(ctx, teacher, post.ID, reply.ID, "moderated")
	assert.NoError(t, err)
}

func TestPinRequiresModerator(t *testing.T) {
	svc, _, _ := newMemoryService(t)
	ctx := context.Background()
	post := createPost(t, svc, student, "c1")

	_, err := svc.SetPinned(ctx, student, post.ID, true)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	pinned, err := svc.SetPinned(ctx, owner, post.ID, true)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)

	second := createPost(t, svc, student, "c1")
	posts, total, err := svc.ListPosts(ctx, student, model.PostFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, post.ID, posts[0].ID, "pinned post first")
	assert.Equal(t, second.ID, posts[1].ID)
}

func TestVoteAndReact(t *testing.T) {
	svc, _, _ := newMemoryService(t)
	ctx := context.Background()
	post := createPost(t, svc, student, "")

	res, err := svc.VotePost(ctx, teacher, post.ID, model.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)

	res, err = svc.VotePost(ctx, teacher, post.ID, model.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	assert.Equal(t, -2, res.Delta)

	reaction, err := svc.ReactPost(ctx, student, post.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "👍", reaction)
	reaction, err = svc.ReactPost(ctx, student, post.ID, "👍")
	require.NoError(t, err)
	assert.Equal(t, "", reaction)

	_, err = svc.ReactPost(ctx, student, post.ID, "")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestDeletePostNotifiesAuthorAndKeepsReplies(t *testing.T) {
	svc, notifier, _ := newMemoryService(t)
	ctx := context.Background()
	post := createPost(t, svc, student, "c1")
	_, err := svc.AddReply(ctx, student, post.ID, "self reply", nil)
	require.NoError(t, err)

	err = svc.DeletePost(ctx, outsider, post.ID, "")
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	require.NoError(t, svc.DeletePost(ctx, owner, post.ID, "off topic"))
	assert.Equal(t, []string{post.ID + ":off topic"}, notifier.deleted)

	_, err = svc.GetPost(ctx, student, post.ID)
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))

	replies, err := svc.repo.ListReplies(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, replies, 1, "replies are not cascaded")
}

func receiveSnapshot(t *testing.T, ch <-chan realtime.Message) realtime.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	return realtime.Message{}
}

func TestSubscribersReceiveReplySnapshots(t *testing.T) {
	svc, _, hub := newMemoryService(t)
	post := createPost(t, svc, student, "")

	ctx, cancel := context.WithCancel(context.Background())
	messages, initial, err := svc.Subscribe(ctx, student, post.ID)
	require.NoError(t, err)
	require.Len(t, initial, 2)
	assert.Equal(t, realtime.TypePost, initial[0].Type)
	assert.Empty(t, initial[1].Data)

	// The reply lands after registration but before anything is read.
	_, err = svc.AddReply(context.Background(), teacher, post.ID, "hello", nil)
	require.NoError(t, err)

	msg := receiveSnapshot(t, messages)
	assert.Equal(t, realtime.TypeReplies, msg.Type)
	assert.Equal(t, realtime.RepliesTopic(post.ID), msg.Topic)
	tree, ok := msg.Data.([]forum.ReplyNode)
	require.True(t, ok)
	require.Len(t, tree, 1)
	assert.Equal(t, "hello", tree[0].Content)

	cancel()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(realtime.RepliesTopic(post.ID)) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeChecksAccessBeforeRegistering(t *testing.T) {
	svc, _, hub := newMemoryService(t)
	post := createPost(t, svc, student, "c1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := svc.Subscribe(ctx, outsider, post.ID)
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	assert.Equal(t, 0, hub.SubscriberCount(realtime.PostTopic(post.ID)))

	_, _, err = svc.Subscribe(ctx, student, "missing")
	assert.True(t, errors.Is(err, errors.ErrPostNotFound))
}

func TestCourseForumAccess(t *testing.T) {
	svc, _, _ := newMemoryService(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, outsider, CreatePostInput{CourseID: "c1", Title: "t", Content: "c"})
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	_, err = svc.CreatePost(ctx, student, CreatePostInput{CourseID: "missing", Title: "t", Content: "c"})
	assert.True(t, errors.Is(err, errors.ErrCourseNotFound))

	_, err = svc.CreatePost(ctx, student, CreatePostInput{Title: " ", Content: "c"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, _, err = svc.ListPosts(ctx, teacher, model.PostFilter{CourseID: "c1"})
	assert.NoError(t, err)
}
