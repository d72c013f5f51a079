package forum

import (
	"testing"

	"course-forum-backend/internal/model"

	"github.com/stretchr/testify/assert"
)

var (
	student  = &model.Actor{UserID: "s1", Role: model.RoleStudent}
	other    = &model.Actor{UserID: "s2", Role: model.RoleStudent}
	owner    = &model.Actor{UserID: "t1", Role: model.RoleStudent}
	teacher  = &model.Actor{UserID: "t2", Role: model.RoleTeacher}
	admin    = &model.Actor{UserID: "a1", Role: model.RoleAdmin}
	course   = &model.Course{ID: "c1", OwnerID: "t1"}
	scoped   = &model.Post{ID: "p1", CourseID: "c1", AuthorID: "s1"}
	global   = &model.Post{ID: "p2", AuthorID: "s1"}
	replyBy2 = &model.Reply{ID: "r1", PostID: "p1", AuthorID: "s2"}
)

func TestCanModerate(t *testing.T) {
	assert.True(t, CanModerate(teacher, scoped, course))
	assert.True(t, CanModerate(admin, global, nil))
	assert.True(t, CanModerate(owner, scoped, course))
	assert.False(t, CanModerate(owner, global, nil), "course ownership only applies to that course")
	assert.False(t, CanModerate(student, scoped, course))
	assert.False(t, CanModerate(nil, scoped, course))
}

func TestCanAccess(t *testing.T) {
	assert.True(t, CanAccess(student, nil, false))
	assert.False(t, CanAccess(student, course, false))
	assert.True(t, CanAccess(student, course, true))
	assert.True(t, CanAccess(owner, course, false))
	assert.True(t, CanAccess(teacher, course, false))
	assert.False(t, CanAccess(nil, nil, false))
}

func TestReplyPermissions(t *testing.T) {
	// reply author
	assert.True(t, CanEditReply(other, replyBy2, scoped, course))
	assert.True(t, CanDeleteReply(other, replyBy2, scoped, course))

	// post author may delete but not edit someone else's reply
	assert.False(t, CanEditReply(student, replyBy2, scoped, course))
	assert.True(t, CanDeleteReply(student, replyBy2, scoped, course))

	// moderators
	assert.True(t, CanEditReply(owner, replyBy2, scoped, course))
	assert.True(t, CanDeleteReply(admin, replyBy2, scoped, course))

	stranger := &model.Actor{UserID: "x", Role: model.RoleStudent}
	assert.False(t, CanEditReply(stranger, replyBy2, scoped, course))
	assert.False(t, CanDeleteReply(stranger, replyBy2, scoped, course))
}

func TestPostPermissions(t *testing.T) {
	assert.True(t, CanEditPost(student, scoped, course))
	assert.False(t, CanEditPost(other, scoped, course))
	assert.True(t, CanDeletePost(owner, scoped, course))
	assert.False(t, CanPin(student, scoped, course))
	assert.True(t, CanPin(teacher, global, nil))
}
