package memory

import (
	"sync"

	"course-forum-backend/internal/model"
)

// DB is an in-process store for local development and tests.
type DB struct {
	mu          sync.RWMutex
	posts       map[string]*model.Post
	replies     map[string]map[string]*model.Reply // postID -> replyID -> reply
	users       map[string]*model.User
	courses     map[string]*model.Course
	enrollments map[string]map[string]bool // courseID -> userID
}

func NewDB() *DB {
	return &DB{
		posts:       make(map[string]*model.Post),
		replies:     make(map[string]map[string]*model.Reply),
		users:       make(map[string]*model.User),
		courses:     make(map[string]*model.Course),
		enrollments: make(map[string]map[string]bool),
	}
}

// SeedUser inserts or replaces a user.
func (db *DB) SeedUser(u model.User) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = &u
}

// SeedCourse inserts or replaces a course and enrolls the given users.
func (db *DB) SeedCourse(c model.Course, enrolled ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.courses[c.ID] = &c
	if db.enrollments[c.ID] == nil {
		db.enrollments[c.ID] = make(map[string]bool)
	}
	for _, userID := range enrolled {
		db.enrollments[c.ID][userID] = true
	}
}
