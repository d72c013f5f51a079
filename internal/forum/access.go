package forum

import "course-forum-backend/internal/model"

// IsStaff reports whether the actor holds a moderating role.
func IsStaff(actor *model.Actor) bool {
	return actor != nil && (actor.Role == model.RoleTeacher || actor.Role == model.RoleAdmin)
}

// CanModerate reports whether actor may moderate post: teachers and admins
// everywhere, and the owner of the post's course. course is nil for posts in
// the global forum.
func CanModerate(actor *model.Actor, post *model.Post, course *model.Course) bool {
	if actor == nil {
		return false
	}
	if IsStaff(actor) {
		return true
	}
	return post != nil && post.CourseID != "" && course != nil &&
		course.ID == post.CourseID && course.OwnerID == actor.UserID
}

// CanAccess reports whether actor may read and reply in a forum scoped to
// course. Global posts (course nil) are open to every authenticated user.
func CanAccess(actor *model.Actor, course *model.Course, enrolled bool) bool {
	if actor == nil {
		return false
	}
	if course == nil {
		return true
	}
	return enrolled || IsStaff(actor) || course.OwnerID == actor.UserID
}

func CanEditPost(actor *model.Actor, post *model.Post, course *model.Course) bool {
	return isAuthor(actor, post.AuthorID) || CanModerate(actor, post, course)
}

func CanDeletePost(actor *model.Actor, post *model.Post, course *model.Course) bool {
	return isAuthor(actor, post.AuthorID) || CanModerate(actor, post, course)
}

func CanPin(actor *model.Actor, post *model.Post, course *model.Course) bool {
	return CanModerate(actor, post, course)
}

func CanEditReply(actor *model.Actor, reply *model.Reply, post *model.Post, course *model.Course) bool {
	return isAuthor(actor, reply.AuthorID) || CanModerate(actor, post, course)
}

// CanDeleteReply also admits the author of the post the reply belongs to.
func CanDeleteReply(actor *model.Actor, reply *model.Reply, post *model.Post, course *model.Course) bool {
	return isAuthor(actor, reply.AuthorID) || isAuthor(actor, post.AuthorID) || CanModerate(actor, post, course)
}

func isAuthor(actor *model.Actor, authorID string) bool {
	return actor != nil && authorID != "" && actor.UserID == authorID
}
