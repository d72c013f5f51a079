package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(1024) NOT NULL DEFAULT '',
		role VARCHAR(32) NOT NULL DEFAULT 'student',
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		owner_id VARCHAR(64) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		course_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (course_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id CHAR(36) PRIMARY KEY,
		course_id VARCHAR(64) NOT NULL DEFAULT '',
		title VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		author_id VARCHAR(64) NOT NULL,
		author_name VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		edited_at DATETIME(6) NULL,
		is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
		score INT NOT NULL DEFAULT 0,
		INDEX idx_posts_course (course_id, is_pinned, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS post_images (
		post_id CHAR(36) NOT NULL,
		position INT NOT NULL,
		image_url VARCHAR(1024) NOT NULL,
		PRIMARY KEY (post_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS replies (
		id CHAR(36) PRIMARY KEY,
		post_id CHAR(36) NOT NULL,
		author_id VARCHAR(64) NOT NULL,
		author_name VARCHAR(255) NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		edited_at DATETIME(6) NULL,
		parent_reply_id CHAR(36) NULL,
		score INT NOT NULL DEFAULT 0,
		INDEX idx_replies_post (post_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS forum_votes (
		target_type VARCHAR(8) NOT NULL,
		target_id CHAR(36) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		vote VARCHAR(8) NOT NULL,
		PRIMARY KEY (target_type, target_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS post_reactions (
		post_id CHAR(36) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		emoji VARCHAR(16) NOT NULL,
		PRIMARY KEY (post_id, user_id)
	)`,
}

// Migrate creates the forum tables if they do not exist. Replies carry no
// foreign key to their parent so deleting a reply leaves its children.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
