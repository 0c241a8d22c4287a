package attendance

import "time"

// Teacher is a registered teacher as persisted in the teachers collection.
// The password is kept in plaintext; this store offers no real authentication.
type Teacher struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Subject   string `json:"subject"`
	ClassName string `json:"className"`
}

// Profile returns the caller-facing view of t, without the password.
func (t Teacher) Profile() TeacherProfile {
	return TeacherProfile{
		ID:        t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Subject:   t.Subject,
		ClassName: t.ClassName,
	}
}

// TeacherProfile is a teacher record without credentials.
type TeacherProfile struct {
	ID        string `json:"teacher_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	ClassName string `json:"className"`
}

// TeacherIdentity is the result of a successful login.
type TeacherIdentity struct {
	ID   string `json:"teacher_id"`
	Name string `json:"name"`
}

// Student is a registered student. Students belong to no teacher or class.
type Student struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RollNumber   string    `json:"rollNumber"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Session is one attendance-marking event.
type Session struct {
	ID           string    `json:"sessionId"`
	Subject      string    `json:"subject"`
	PresentCount int       `json:"presentCount"`
	Timestamp    time.Time `json:"timestamp"`
}

// LoginSession is the UI convenience state kept for the logged-in teacher.
type LoginSession struct {
	TeacherID      string `json:"teacher_id"`
	TeacherName    string `json:"teacher_name"`
	DefaultSubject string `json:"default_subject,omitempty"`
	DefaultClass   string `json:"default_class,omitempty"`
}
