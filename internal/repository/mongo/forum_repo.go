package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"course-forum-backend/internal/forum"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/repository/interfaces"
	"course-forum-backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// maxCASAttempts bounds the compare-and-swap loop for votes and reactions.
const maxCASAttempts = 5

type forumRepository struct {
	posts   *mongo.Collection
	replies *mongo.Collection
}

// NewForumRepository returns a ForumRepository over the posts and replies
// collections. Votes and reactions are embedded maps keyed by user id.
func NewForumRepository(db *mongo.Database) interfaces.ForumRepository {
	return &forumRepository{
		posts:   db.Collection(postsCollection),
		replies: db.Collection(repliesCollection),
	}
}

func (r *forumRepository) CreatePost(ctx context.Context, post *model.Post) error {
	doc := *post
	if doc.Votes == nil {
		doc.Votes = map[string]model.VoteType{}
	}
	if doc.Reactions == nil {
		doc.Reactions = map[string]string{}
	}
	if doc.Images == nil {
		doc.Images = []string{}
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		util.Logger.Error("failed to insert post", zap.String("post_id", post.ID), zap.Error(err))
		return err
	}
	util.Logger.Info("post created", zap.String("post_id", post.ID), zap.String("course_id", post.CourseID))
	return nil
}

func (r *forumRepository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	err := r.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		util.Logger.Error("failed to get post", zap.String("post_id", id), zap.Error(err))
		return nil, err
	}
	return &post, nil
}

func courseFilter(courseID string) bson.M {
	if courseID == "" {
		// Global posts omit the field; null also matches a missing field.
		return bson.M{"course_id": bson.M{"$in": bson.A{"", nil}}}
	}
	return bson.M{"course_id": courseID}
}

func (r *forumRepository) ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, int, error) {
	query := courseFilter(filter.CourseID)
	total, err := r.posts.CountDocuments(ctx, query)
	if err != nil {
		util.Logger.Error("failed to count posts", zap.String("course_id", filter.CourseID), zap.Error(err))
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "is_pinned", Value: -1}, {Key: "created_at", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.PageSize)).
		SetLimit(int64(filter.PageSize))
	cursor, err := r.posts.Find(ctx, query, opts)
	if err != nil {
		util.Logger.Error("failed to list posts", zap.String("course_id", filter.CourseID), zap.Error(err))
		return nil, 0, err
	}

	posts := make([]*model.Post, 0, filter.PageSize)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	return posts, int(total), nil
}

func (r *forumRepository) UpdatePostContent(ctx context.Context, id, title, content string, editedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"title":      title,
		"content":    content,
		"edited_at":  editedAt,
		"updated_at": editedAt,
	}}
	return updateOne(ctx, r.posts, bson.M{"_id": id}, update)
}

func (r *forumRepository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return updateOne(ctx, r.posts, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_pinned": pinned}})
}

// DeletePost deletes the post document only. Its replies stay in the replies
// collection.
func (r *forumRepository) DeletePost(ctx context.Context, id string) error {
	result, err := r.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		util.Logger.Error("failed to delete post", zap.String("post_id", id), zap.Error(err))
		return err
	}
	if result.DeletedCount == 0 {
		return interfaces.ErrNotFound
	}
	util.Logger.Info("post deleted", zap.String("post_id", id))
	return nil
}

func (r *forumRepository) CreateReply(ctx context.Context, reply *model.Reply) error {
	n, err := r.posts.CountDocuments(ctx, bson.M{"_id": reply.PostID})
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrNotFound
	}

	doc := *reply
	if doc.Votes == nil {
		doc.Votes = map[string]model.VoteType{}
	}
	if _, err := r.replies.InsertOne(ctx, doc); err != nil {
		util.Logger.Error("failed to insert reply", zap.String("post_id", reply.PostID), zap.Error(err))
		return err
	}
	util.Logger.Info("reply created", zap.String("post_id", reply.PostID), zap.String("reply_id", reply.ID))
	return nil
}

func (r *forumRepository) GetReply(ctx context.Context, postID, replyID string) (*model.Reply, error) {
	var reply model.Reply
	err := r.replies.FindOne(ctx, bson.M{"_id": replyID, "post_id": postID}).Decode(&reply)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		util.Logger.Error("failed to get reply", zap.String("reply_id", replyID), zap.Error(err))
		return nil, err
	}
	return &reply, nil
}

func (r *forumRepository) ListReplies(ctx context.Context, postID string) ([]model.Reply, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.replies.Find(ctx, bson.M{"post_id": postID}, opts)
	if err != nil {
		util.Logger.Error("failed to list replies", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}
	replies := make([]model.Reply, 0)
	if err := cursor.All(ctx, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *forumRepository) UpdateReplyContent(ctx context.Context, postID, replyID, content string, editedAt time.Time) error {
	update := bson.M{"$set": bson.M{"content": content, "edited_at": editedAt}}
	return updateOne(ctx, r.replies, bson.M{"_id": replyID, "post_id": postID}, update)
}

func (r *forumRepository) DeleteReply(ctx context.Context, postID, replyID string) error {
	result, err := r.replies.DeleteOne(ctx, bson.M{"_id": replyID, "post_id": postID})
	if err != nil {
		util.Logger.Error("failed to delete reply", zap.String("reply_id", replyID), zap.Error(err))
		return err
	}
	if result.DeletedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

type voteState struct {
	Votes map[string]model.VoteType `bson:"votes"`
	Score int                       `bson:"score"`
}

// ApplyVote reads the voter's entry, computes the transition and writes it
// with an update filtered on the entry it read. A concurrent change to that
// entry makes the filter miss and the loop re-reads.
func (r *forumRepository) ApplyVote(ctx context.Context, target model.VoteTarget, voterID string, requested model.VoteType) (*model.VoteResult, error) {
	if err := checkMapKey(voterID); err != nil {
		return nil, err
	}

	var coll *mongo.Collection
	var base bson.M
	switch target.Kind {
	case model.TargetPost:
		coll, base = r.posts, bson.M{"_id": target.PostID}
	case model.TargetReply:
		coll, base = r.replies, bson.M{"_id": target.ReplyID, "post_id": target.PostID}
	default:
		return nil, fmt.Errorf("unknown vote target %q", target.Kind)
	}

	field := "votes." + voterID
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var state voteState
		err := coll.FindOne(ctx, base, options.FindOne().SetProjection(bson.M{field: 1, "score": 1})).Decode(&state)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, interfaces.ErrNotFound
			}
			return nil, err
		}

		current := state.Votes[voterID]
		next, delta := forum.Transition(current, requested)

		filter := casFilter(base, field, string(current))
		update := bson.M{"$inc": bson.M{"score": delta}}
		if next == model.VoteNone {
			update["$unset"] = bson.M{field: ""}
		} else {
			update["$set"] = bson.M{field: next}
		}

		var after voteState
		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.M{"score": 1})
		err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&after)
		if err == nil {
			return &model.VoteResult{Vote: next, Delta: delta, Score: after.Score}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			util.Logger.Error("failed to apply vote", zap.String("target_id", target.ID()), zap.Error(err))
			return nil, err
		}
		util.Logger.Debug("vote lost a race, retrying",
			zap.String("target_id", target.ID()), zap.Int("attempt", attempt))
	}
	return nil, interfaces.ErrConflict
}

type reactionState struct {
	Reactions map[string]string `bson:"reactions"`
}

func (r *forumRepository) ToggleReaction(ctx context.Context, postID, userID, emoji string) (string, error) {
	if err := checkMapKey(userID); err != nil {
		return "", err
	}

	base := bson.M{"_id": postID}
	field := "reactions." + userID
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var state reactionState
		err := r.posts.FindOne(ctx, base, options.FindOne().SetProjection(bson.M{field: 1})).Decode(&state)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return "", interfaces.ErrNotFound
			}
			return "", err
		}

		current := state.Reactions[userID]
		next := forum.ToggleReaction(current, emoji)

		update := bson.M{"$set": bson.M{field: next}}
		if next == "" {
			update = bson.M{"$unset": bson.M{field: ""}}
		}
		result, err := r.posts.UpdateOne(ctx, casFilter(base, field, current), update)
		if err != nil {
			util.Logger.Error("failed to toggle reaction", zap.String("post_id", postID), zap.Error(err))
			return "", err
		}
		if result.MatchedCount == 1 {
			return next, nil
		}
	}
	return "", interfaces.ErrConflict
}

// casFilter extends base with a condition on the map entry at field: it must
// hold current, or be absent when current is empty.
func casFilter(base bson.M, field, current string) bson.M {
	filter := bson.M{}
	for k, v := range base {
		filter[k] = v
	}
	if current == "" {
		filter[field] = bson.M{"$exists": false}
	} else {
		filter[field] = current
	}
	return filter
}

// checkMapKey rejects user ids that cannot be used as a document field name.
func checkMapKey(id string) error {
	if id == "" || strings.ContainsAny(id, ".\x00") || strings.HasPrefix(id, "$") {
		return fmt.Errorf("%w: user id %q", interfaces.ErrInvalidKey, id)
	}
	return nil
}

func updateOne(ctx context.Context, coll *mongo.Collection, filter, update bson.M) error {
	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		util.Logger.Error("update failed", zap.String("collection", coll.Name()), zap.Error(err))
		return err
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
