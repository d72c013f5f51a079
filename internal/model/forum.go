package model

import "time"

// VoteType is a voter's entry in a votes map.
type VoteType string

const (
	VoteNone VoteType = ""
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// Valid reports whether v is a vote a user can request.
func (v VoteType) Valid() bool {
	return v == VoteUp || v == VoteDown
}

type Post struct {
	ID         string              `json:"id" bson:"_id"`
	CourseID   string              `json:"course_id,omitempty" bson:"course_id,omitempty"`
	Title      string              `json:"title" bson:"title"`
	Content    string              `json:"content" bson:"content"`
	AuthorID   string              `json:"author_id" bson:"author_id"`
	AuthorName string              `json:"author_name" bson:"author_name"`
	Role       string              `json:"role" bson:"role"`
	CreatedAt  time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" bson:"updated_at"`
	EditedAt   *time.Time          `json:"edited_at,omitempty" bson:"edited_at,omitempty"`
	IsPinned   bool                `json:"is_pinned" bson:"is_pinned"`
	Reactions  map[string]string   `json:"reactions" bson:"reactions"`
	Votes      map[string]VoteType `json:"votes" bson:"votes"`
	Score      int                 `json:"score" bson:"score"`
	Images     []string            `json:"images" bson:"images"`
}

// Reply is a comment on a post. ParentReplyID nil means top-level.
type Reply struct {
	ID            string              `json:"id" bson:"_id"`
	PostID        string              `json:"post_id" bson:"post_id"`
	AuthorID      string              `json:"author_id" bson:"author_id"`
	AuthorName    string              `json:"author_name" bson:"author_name"`
	Content       string              `json:"content" bson:"content"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	EditedAt      *time.Time          `json:"edited_at,omitempty" bson:"edited_at,omitempty"`
	ParentReplyID *string             `json:"parent_reply_id" bson:"parent_reply_id"`
	Votes         map[string]VoteType `json:"votes" bson:"votes"`
	Score         int                 `json:"score" bson:"score"`
}

// TargetKind distinguishes vote targets.
type TargetKind string

const (
	TargetPost  TargetKind = "post"
	TargetReply TargetKind = "reply"
)

// VoteTarget addresses a post, or a reply under a post.
type VoteTarget struct {
	Kind    TargetKind
	PostID  string
	ReplyID string
}

// ID returns the id of the addressed document.
func (t VoteTarget) ID() string {
	if t.Kind == TargetReply {
		return t.ReplyID
	}
	return t.PostID
}

// VoteResult is the outcome of a vote toggle.
type VoteResult struct {
	Vote  VoteType `json:"vote"`
	Delta int      `json:"delta"`
	Score int      `json:"score"`
}

// PostFilter selects posts for listing. Empty CourseID lists the global forum.
type PostFilter struct {
	CourseID string
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize returns f with Page at least 1 and PageSize within
// [1, MaxPageSize], defaulting to DefaultPageSize.
func (f PostFilter) Normalize() PostFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}
