package memory

import (
	"context"
	"sort"
	"time"

	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
)

type forumRepository struct {
	db *DB
}

func NewForumRepository(db *DB) interfaces.ForumRepository {
	return &forumRepository{db: db}
}

func (r *forumRepository) CreatePost(_ context.Context, post *model.Post) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := copyPost(*post)
	r.db.posts[post.ID] = &stored
	return nil
}

func (r *forumRepository) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.posts[id]
	if !ok {
		return nil, nil
	}
	post := copyPost(*p)
	return &post, nil
}

func (r *forumRepository) ListPosts(_ context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := make([]*model.Post, 0)
	for _, p := range r.db.posts {
		if p.CourseID == filter.CourseID {
			post := copyPost(*p)
			matched = append(matched, &post)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].IsPinned != matched[j].IsPinned {
			return matched[i].IsPinned
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return []*model.Post{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *forumRepository) UpdatePostContent(_ context.Context, id, title, content string, editedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.posts[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	p.Title = title
	p.Content = content
	p.EditedAt = &editedAt
	p.UpdatedAt = editedAt
	return nil
}

func (r *forumRepository) SetPinned(_ context.Context, id string, pinned bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.posts[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	p.IsPinned = pinned
	return nil
}

func (r *forumRepository) DeletePost(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.posts[id]; !ok {
		return interfaces.ErrNotFound
	}
	// Replies stay behind, detached, like a sub-collection in a document store.
	delete(r.db.posts, id)
	return nil
}

func (r *forumRepository) CreateReply(_ context.Context, reply *model.Reply) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.posts[reply.PostID]; !ok {
		return interfaces.ErrNotFound
	}
	if r.db.replies[reply.PostID] == nil {
		r.db.replies[reply.PostID] = make(map[string]*model.Reply)
	}
	stored := copyReply(*reply)
	r.db.replies[reply.PostID][reply.ID] = &stored
	return nil
}

func (r *forumRepository) GetReply(_ context.Context, postID, replyID string) (*model.Reply, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rp, ok := r.db.replies[postID][replyID]
	if !ok {
		return nil, nil
	}
	reply := copyReply(*rp)
	return &reply, nil
}

func (r *forumRepository) ListReplies(_ context.Context, postID string) ([]model.Reply, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	replies := make([]model.Reply, 0, len(r.db.replies[postID]))
	for _, rp := range r.db.replies[postID] {
		replies = append(replies, copyReply(*rp))
	}
	sort.Slice(replies, func(i, j int) bool {
		if !replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		}
		return replies[i].ID < replies[j].ID
	})
	return replies, nil
}

func (r *forumRepository) UpdateReplyContent(_ context.Context, postID, replyID, content string, editedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rp, ok := r.db.replies[postID][replyID]
	if !ok {
		return interfaces.ErrNotFound
	}
	rp.Content = content
	rp.EditedAt = &editedAt
	return nil
}

func (r *forumRepository) DeleteReply(_ context.Context, postID, replyID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.replies[postID][replyID]; !ok {
		return interfaces.ErrNotFound
	}
	delete(r.db.replies[postID], replyID)
	return nil
}

func (r *forumRepository) ApplyVote(_ context.Context, target model.VoteTarget, voterID string, requested model.VoteType) (*model.VoteResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var votes *map[string]model.VoteType
	var score *int
	switch target.Kind {
	case model.TargetPost:
		p, ok := r.db.posts[target.PostID]
		if !ok {
			return nil, interfaces.ErrNotFound
		}
		votes, score = &p.Votes, &p.Score
	case model.TargetReply:
		rp, ok := r.db.replies[target.PostID][target.ReplyID]
		if !ok {
			return nil, interfaces.ErrNotFound
		}
		votes, score = &rp.Votes, &rp.Score
	default:
		return nil, interfaces.ErrNotFound
	}

	updated, result := forum.ApplyVote(*votes, *score, voterID, requested)
	*votes = updated
	*score = result.Score
	return &result, nil
}

func (r *forumRepository) ToggleReaction(_ context.Context, postID, userID, emoji string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p, ok := r.db.posts[postID]
	if !ok {
		return "", interfaces.ErrNotFound
	}
	if p.Reactions == nil {
		p.Reactions = make(map[string]string)
	}
	next := forum.ToggleReaction(p.Reactions[userID], emoji)
	if next == "" {
		delete(p.Reactions, userID)
	} else {
		p.Reactions[userID] = next
	}
	return next, nil
}

func copyPost(p model.Post) model.Post {
	p.Votes = copyVotes(p.Votes)
	reactions := make(map[string]string, len(p.Reactions))
	for k, v := range p.Reactions {
		reactions[k] = v
	}
	p.Reactions = reactions
	p.Images = append([]string{}, p.Images...)
	if p.EditedAt != nil {
		edited := *p.EditedAt
		p.EditedAt = &edited
	}
	return p
}

func copyReply(r model.Reply) model.Reply {
	r.Votes = copyVotes(r.Votes)
	if r.ParentReplyID != nil {
		parent := *r.ParentReplyID
		r.ParentReplyID = &parent
	}
	if r.EditedAt != nil {
		edited := *r.EditedAt
		r.EditedAt = &edited
	}
	return r
}

func copyVotes(votes map[string]model.VoteType) map[string]model.VoteType {
	out := make(map[string]model.VoteType, len(votes))
	for k, v := range votes {
		out[k] = v
	}
	return out
}
