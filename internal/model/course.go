package model

// Course is the subset of a course the forum needs for access checks.
type Course struct {
	ID      string `json:"id" bson:"_id"`
	Title   string `json:"title" bson:"title"`
	OwnerID string `json:"owner_id" bson:"owner_id"`
}

// Enrollment links a user to a course.
type Enrollment struct {
	CourseID string `json:"course_id" bson:"course_id"`
	UserID   string `json:"user_id" bson:"user_id"`
}
