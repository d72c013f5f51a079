package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/util"

	"go.uber.org/zap"
)

type forumRepository struct {
	db *sql.DB
}

// NewForumRepository returns a ForumRepository backed by MySQL. Votes and
// reactions live in their own tables keyed by (target, user); the score
// column on posts and replies is kept in step inside the same transaction.
func NewForumRepository(db *sql.DB) interfaces.ForumRepository {
	return &forumRepository{db: db}
}

func (r *forumRepository) CreatePost(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO posts (id, course_id, title, content, author_id, author_name, role, created_at, updated_at, is_pinned, score)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, post.ID, post.CourseID, post.Title, post.Content, post.AuthorID,
		post.AuthorName, post.Role, post.CreatedAt, post.UpdatedAt, post.IsPinned, post.Score)
	if err != nil {
		util.Logger.Error("failed to insert post", zap.String("post_id", post.ID), zap.Error(err))
		return err
	}

	for i, url := range post.Images {
		_, err = tx.ExecContext(ctx, "INSERT INTO post_images (post_id, position, image_url) VALUES (?, ?, ?)", post.ID, i, url)
		if err != nil {
			util.Logger.Error("failed to insert post image", zap.String("post_id", post.ID), zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	util.Logger.Info("post created", zap.String("post_id", post.ID), zap.String("course_id", post.CourseID))
	return nil
}

const postColumns = `id, course_id, title, content, author_id, author_name, role, created_at, updated_at, edited_at, is_pinned, score`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var post model.Post
	var editedAt sql.NullTime
	err := row.Scan(&post.ID, &post.CourseID, &post.Title, &post.Content, &post.AuthorID, &post.AuthorName,
		&post.Role, &post.CreatedAt, &post.UpdatedAt, &editedAt, &post.IsPinned, &post.Score)
	if err != nil {
		return nil, err
	}
	if editedAt.Valid {
		t := editedAt.Time
		post.EditedAt = &t
	}
	post.Votes = make(map[string]model.VoteType)
	post.Reactions = make(map[string]string)
	post.Images = []string{}
	return &post, nil
}

func (r *forumRepository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		util.Logger.Error("failed to get post", zap.String("post_id", id), zap.Error(err))
		return nil, err
	}
	if err := r.loadPostDetails(ctx, []*model.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *forumRepository) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE course_id = ?", filter.CourseID).Scan(&total); err != nil {
		util.Logger.Error("failed to count posts", zap.String("course_id", filter.CourseID), zap.Error(err))
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	query := "SELECT " + postColumns + ` FROM posts WHERE course_id = ?
              ORDER BY is_pinned DESC, created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, filter.CourseID, filter.PageSize, offset)
	if err != nil {
		util.Logger.Error("failed to list posts", zap.String("course_id", filter.CourseID), zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]*model.Post, 0, filter.PageSize)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadPostDetails(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// loadPostDetails fills votes, reactions and images for posts with one query
// per table.
func (r *forumRepository) loadPostDetails(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*model.Post, len(posts))
	args := make([]interface{}, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		args = append(args, p.ID)
	}
	in := placeholders(len(posts))

	voteArgs := append([]interface{}{string(model.TargetPost)}, args...)
	rows, err := r.db.QueryContext(ctx,
		"SELECT target_id, user_id, vote FROM forum_votes WHERE target_type = ? AND target_id IN ("+in+")", voteArgs...)
	if err != nil {
		util.Logger.Error("failed to load post votes", zap.Error(err))
		return err
	}
	if err := scanInto(rows, func(s rowScanner) error {
		var postID, userID, vote string
		if err := s.Scan(&postID, &userID, &vote); err != nil {
			return err
		}
		byID[postID].Votes[userID] = model.VoteType(vote)
		return nil
	}); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, "SELECT post_id, user_id, emoji FROM post_reactions WHERE post_id IN ("+in+")", args...)
	if err != nil {
		util.Logger.Error("failed to load post reactions", zap.Error(err))
		return err
	}
	if err := scanInto(rows, func(s rowScanner) error {
		var postID, userID, emoji string
		if err := s.Scan(&postID, &userID, &emoji); err != nil {
			return err
		}
		byID[postID].Reactions[userID] = emoji
		return nil
	}); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx,
		"SELECT post_id, image_url FROM post_images WHERE post_id IN ("+in+") ORDER BY post_id, position", args...)
	if err != nil {
		util.Logger.Error("failed to load post images", zap.Error(err))
		return err
	}
	return scanInto(rows, func(s rowScanner) error {
		var postID, url string
		if err := s.Scan(&postID, &url); err != nil {
			return err
		}
		byID[postID].Images = append(byID[postID].Images, url)
		return nil
	})
}

func (r *forumRepository) UpdatePostContent(ctx context.Context, id, title, content string, editedAt time.Time) error {
	query := "UPDATE posts SET title = ?, content = ?, edited_at = ?, updated_at = ? WHERE id = ?"
	return r.execOne(ctx, "update post", query, title, content, editedAt, editedAt, id)
}

func (r *forumRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.execOne(ctx, "set pinned", "UPDATE posts SET is_pinned = ? WHERE id = ?", pinned, id)
}

// DeletePost removes the post with its votes, reactions and images. Replies
// are left in place, detached from any post.
func (r *forumRepository) DeletePost(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		util.Logger.Error("failed to delete post", zap.String("post_id", id), zap.Error(err))
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return interfaces.ErrNotFound
	}

	cleanup := []string{
		"DELETE FROM post_images WHERE post_id = ?",
		"DELETE FROM post_reactions WHERE post_id = ?",
		"DELETE FROM forum_votes WHERE target_type = 'post' AND target_id = ?",
	}
	for _, stmt := range cleanup {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			util.Logger.Error("failed to clean up post", zap.String("post_id", id), zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	util.Logger.Info("post deleted", zap.String("post_id", id))
	return nil
}

func (r *forumRepository) CreateReply(ctx context.Context, reply *model.Reply) error {
	if err := r.requirePost(ctx, reply.PostID); err != nil {
		return err
	}
	query := `INSERT INTO replies (id, post_id, author_id, author_name, content, created_at, parent_reply_id, score)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, reply.ID, reply.PostID, reply.AuthorID, reply.AuthorName,
		reply.Content, reply.CreatedAt, reply.ParentReplyID, reply.Score)
	if err != nil {
		util.Logger.Error("failed to insert reply", zap.String("post_id", reply.PostID), zap.Error(err))
		return err
	}
	util.Logger.Info("reply created", zap.String("post_id", reply.PostID), zap.String("reply_id", reply.ID))
	return nil
}

const replyColumns = `id, post_id, author_id, author_name, content, created_at, edited_at, parent_reply_id, score`

func scanReply(row rowScanner) (model.Reply, error) {
	var reply model.Reply
	var editedAt sql.NullTime
	var parent sql.NullString
	err := row.Scan(&reply.ID, &reply.PostID, &reply.AuthorID, &reply.AuthorName, &reply.Content,
		&reply.CreatedAt, &editedAt, &parent, &reply.Score)
	if err != nil {
		return reply, err
	}
	if editedAt.Valid {
		t := editedAt.Time
		reply.EditedAt = &t
	}
	if parent.Valid {
		p := parent.String
		reply.ParentReplyID = &p
	}
	reply.Votes = make(map[string]model.VoteType)
	return reply, nil
}

func (r *forumRepository) GetReply(ctx context.Context, postID, replyID string) (*model.Reply, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+replyColumns+" FROM replies WHERE id = ? AND post_id = ?", replyID, postID)
	reply, err := scanReply(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		util.Logger.Error("failed to get reply", zap.String("reply_id", replyID), zap.Error(err))
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id, vote FROM forum_votes WHERE target_type = 'reply' AND target_id = ?", replyID)
	if err != nil {
		return nil, err
	}
	err = scanInto(rows, func(s rowScanner) error {
		var userID, vote string
		if err := s.Scan(&userID, &vote); err != nil {
			return err
		}
		reply.Votes[userID] = model.VoteType(vote)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *forumRepository) ListReplies(ctx context.Context, postID string) ([]model.Reply, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+replyColumns+" FROM replies WHERE post_id = ? ORDER BY created_at ASC, id ASC", postID)
	if err != nil {
		util.Logger.Error("failed to list replies", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}

	replies := make([]model.Reply, 0)
	index := make(map[string]int)
	err = scanInto(rows, func(s rowScanner) error {
		reply, err := scanReply(s)
		if err != nil {
			return err
		}
		index[reply.ID] = len(replies)
		replies = append(replies, reply)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(replies) == 0 {
		return replies, nil
	}

	query := `SELECT v.target_id, v.user_id, v.vote FROM forum_votes v
              JOIN replies r ON r.id = v.target_id
              WHERE v.target_type = 'reply' AND r.post_id = ?`
	rows, err = r.db.QueryContext(ctx, query, postID)
	if err != nil {
		util.Logger.Error("failed to load reply votes", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}
	err = scanInto(rows, func(s rowScanner) error {
		var replyID, userID, vote string
		if err := s.Scan(&replyID, &userID, &vote); err != nil {
			return err
		}
		if i, ok := index[replyID]; ok {
			replies[i].Votes[userID] = model.VoteType(vote)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *forumRepository) UpdateReplyContent(ctx context.Context, postID, replyID, content string, editedAt time.Time) error {
	query := "UPDATE replies SET content = ?, edited_at = ? WHERE id = ? AND post_id = ?"
	return r.execOne(ctx, "update reply", query, content, editedAt, replyID, postID)
}

// DeleteReply removes a single reply. Its children keep their parent id and
// surface as roots in the tree.
func (r *forumRepository) DeleteReply(ctx context.Context, postID, replyID string) error {
	if err := r.execOne(ctx, "delete reply", "DELETE FROM replies WHERE id = ? AND post_id = ?", replyID, postID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM forum_votes WHERE target_type = 'reply' AND target_id = ?", replyID); err != nil {
		util.Logger.Warn("failed to clean up reply votes", zap.String("reply_id", replyID), zap.Error(err))
	}
	return nil
}

// ApplyVote locks the target row, reads the voter's entry and writes the new
// entry and score before committing. Concurrent voters on the same target
// queue on the row lock.
func (r *forumRepository) ApplyVote(ctx context.Context, target model.VoteTarget, voterID string, requested model.VoteType) (*model.VoteResult, error) {
	var lockQuery, updateQuery string
	lockArgs := []interface{}{target.ID()}
	switch target.Kind {
	case model.TargetPost:
		lockQuery = "SELECT score FROM posts WHERE id = ? FOR UPDATE"
		updateQuery = "UPDATE posts SET score = score + ? WHERE id = ?"
	case model.TargetReply:
		lockQuery = "SELECT score FROM replies WHERE id = ? AND post_id = ? FOR UPDATE"
		updateQuery = "UPDATE replies SET score = score + ? WHERE id = ?"
		lockArgs = append(lockArgs, target.PostID)
	default:
		return nil, fmt.Errorf("unknown vote target %q", target.Kind)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var score int
	if err := tx.QueryRowContext(ctx, lockQuery, lockArgs...).Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		util.Logger.Error("failed to lock vote target", zap.String("target_id", target.ID()), zap.Error(err))
		return nil, err
	}

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT vote FROM forum_votes WHERE target_type = ? AND target_id = ? AND user_id = ?",
		string(target.Kind), target.ID(), voterID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	next, delta := forum.Transition(model.VoteType(current), requested)
	if next == model.VoteNone {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM forum_votes WHERE target_type = ? AND target_id = ? AND user_id = ?",
			string(target.Kind), target.ID(), voterID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO forum_votes (target_type, target_id, user_id, vote) VALUES (?, ?, ?, ?)
             ON DUPLICATE KEY UPDATE vote = VALUES(vote)`,
			string(target.Kind), target.ID(), voterID, string(next))
	}
	if err != nil {
		util.Logger.Error("failed to write vote", zap.String("target_id", target.ID()), zap.Error(err))
		return nil, err
	}

	if delta != 0 {
		if _, err := tx.ExecContext(ctx, updateQuery, delta, target.ID()); err != nil {
			util.Logger.Error("failed to update score", zap.String("target_id", target.ID()), zap.Error(err))
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.VoteResult{Vote: next, Delta: delta, Score: score + delta}, nil
}

func (r *forumRepository) ToggleReaction(ctx context.Context, postID, userID, emoji string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM posts WHERE id = ? FOR UPDATE", postID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", interfaces.ErrNotFound
		}
		return "", err
	}

	var current string
	err = tx.QueryRowContext(ctx, "SELECT emoji FROM post_reactions WHERE post_id = ? AND user_id = ?", postID, userID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	next := forum.ToggleReaction(current, emoji)
	if next == "" {
		_, err = tx.ExecContext(ctx, "DELETE FROM post_reactions WHERE post_id = ? AND user_id = ?", postID, userID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_reactions (post_id, user_id, emoji) VALUES (?, ?, ?)
             ON DUPLICATE KEY UPDATE emoji = VALUES(emoji)`, postID, userID, next)
	}
	if err != nil {
		util.Logger.Error("failed to write reaction", zap.String("post_id", postID), zap.Error(err))
		return "", err
	}
	return next, tx.Commit()
}

func (r *forumRepository) requirePost(ctx context.Context, id string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return interfaces.ErrNotFound
	}
	return nil
}

// execOne runs a statement that must match exactly one row. The DSN sets
// clientFoundRows so unchanged rows still count.
func (r *forumRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		util.Logger.Error("failed to "+op, zap.Error(err))
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func scanInto(rows *sql.Rows, fn func(rowScanner) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
