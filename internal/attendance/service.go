package attendance

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"trueface/internal/apperrors"
	"trueface/internal/kv"
	"trueface/internal/metrics"
)

// DemoIdentity is returned by LoginTeacher for unmatched credentials when
// Options.DemoLoginFallback is set.
var DemoIdentity = TeacherIdentity{ID: "mock-teacher-123", Name: "Demo Teacher"}

// Options tunes a Service. The zero value is usable: no latency, unique
// emails, no demo fallback, mock recognizer, wall clock, UUIDv7 ids.
type Options struct {
	// Latency is the simulated network delay of every operation but MarkAttendance.
	Latency time.Duration
	// MarkLatency is the simulated delay of MarkAttendance.
	MarkLatency time.Duration
	// DemoLoginFallback makes LoginTeacher accept any non-empty credentials that
	// match no teacher and return DemoIdentity. This is a known hole kept for demos.
	DemoLoginFallback bool
	// AllowDuplicateEmails lets several teachers register with one email.
	// Login then resolves to the earliest registration.
	AllowDuplicateEmails bool

	Recognizer Recognizer
	Logger     *zap.Logger
	Clock      func() time.Time
	NewID      IDGenerator
}

// Service is the domain store: the only owner of the teachers, students and
// attendance sessions collections. Every create is a read-modify-write of one
// collection, serialised by mu.
type Service struct {
	repo *Repository
	opts Options
	log  *zap.Logger
	mu   sync.Mutex
}

// Open creates a Service over an opened medium. Close releases the medium.
func Open(store kv.Store, opts Options) *Service {
	if opts.Recognizer == nil {
		opts.Recognizer = NewDefaultMockRecognizer()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	return &Service{repo: NewRepository(store), opts: opts, log: opts.Logger}
}

// Close closes the underlying medium.
func (s *Service) Close() error {
	return s.repo.Close()
}

// RegisterTeacher appends a teacher and returns its profile. Callers must
// check that every field is non-empty; the store does not.
func (s *Service) RegisterTeacher(ctx context.Context, name, email, password, subject, className string) (profile TeacherProfile, err error) {
	defer func() { metrics.Operation("register_teacher", err) }()
	if err := s.wait(ctx, s.opts.Latency); err != nil {
		return TeacherProfile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	teachers, err := s.repo.Teachers(ctx)
	if err != nil {
		return TeacherProfile{}, apperrors.Storage(err)
	}
	if !s.opts.AllowDuplicateEmails {
		for _, t := range teachers {
			if strings.EqualFold(t.Email, email) {
				return TeacherProfile{}, apperrors.ErrEmailTaken
			}
		}
	}

	t := Teacher{
		ID:        s.opts.NewID(TeacherIDPrefix),
		Name:      name,
		Email:     email,
		Password:  password,
		Subject:   subject,
		ClassName: className,
	}
	if err := s.repo.SaveTeachers(ctx, append(teachers, t)); err != nil {
		return TeacherProfile{}, apperrors.Storage(err)
	}
	s.log.Debug("teacher registered", zap.String("teacher_id", t.ID))
	return t.Profile(), nil
}

// LoginTeacher returns the first teacher whose email and password both match
// exactly.
func (s *Service) LoginTeacher(ctx context.Context, email, password string) (id TeacherIdentity, err error) {
	defer func() { metrics.Operation("login_teacher", err) }()
	if err := s.wait(ctx, s.opts.Latency); err != nil {
		return TeacherIdentity{}, err
	}
	if email == "" || password == "" {
		return TeacherIdentity{}, apperrors.ErrInvalidCredentials
	}

	s.mu.Lock()
	teachers, err := s.repo.Teachers(ctx)
	s.mu.Unlock()
	if err != nil {
		return TeacherIdentity{}, apperrors.Storage(err)
	}

	for _, t := range teachers {
		if t.Email == email && t.Password == password {
			return TeacherIdentity{ID: t.ID, Name: t.Name}, nil
		}
	}

	if s.opts.DemoLoginFallback {
		// Any non-empty credentials get in. Demo mode only.
		s.log.Warn("login matched no teacher, returning demo identity", zap.String("email", email))
		return DemoIdentity, nil
	}
	return TeacherIdentity{}, apperrors.ErrInvalidCredentials
}

// RegisterStudent appends a student stamped with the current time. The face
// image goes to the recognizer and is not stored.
//
// Enrollment runs before the record is saved, so a rejected face leaves no
// student behind. If the save then fails, the recognizer keeps an entry for
// the unsaved id; it is never matched against a stored student.
func (s *Service) RegisterStudent(ctx context.Context, name, rollNumber string, faceImage []byte) (st Student, err error) {
	defer func() { metrics.Operation("register_student", err) }()
	if err := s.wait(ctx, s.opts.Latency); err != nil {
		return Student{}, err
	}

	st = Student{
		ID:           s.opts.NewID(StudentIDPrefix),
		Name:         name,
		RollNumber:   rollNumber,
		RegisteredAt: s.opts.Clock(),
	}
	if err := s.opts.Recognizer.Enroll(ctx, st.ID, st.Name, faceImage); err != nil {
		return Student{}, apperrors.Wrap(err, apperrors.ErrRecognizer.Code, apperrors.ErrRecognizer.Status, "face enrollment failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	students, err := s.repo.Students(ctx)
	if err != nil {
		return Student{}, apperrors.Storage(err)
	}
	if err := s.repo.SaveStudents(ctx, append(students, st)); err != nil {
		return Student{}, apperrors.Storage(err)
	}
	s.log.Debug("student registered", zap.String("student_id", st.ID))
	return st, nil
}

// MarkAttendance records a session whose present count comes from the
// recognizer, given the number of students registered when the call began.
// Callers must supply a subject and hold a teacher identity.
func (s *Service) MarkAttendance(ctx context.Context, subject string, classroomImage []byte) (sess Session, err error) {
	defer func() { metrics.Operation("mark_attendance", err) }()
	if err := s.wait(ctx, s.opts.MarkLatency); err != nil {
		return Session{}, err
	}

	// the recognizer may be remote, so it runs outside the lock
	s.mu.Lock()
	students, err := s.repo.Students(ctx)
	s.mu.Unlock()
	if err != nil {
		return Session{}, apperrors.Storage(err)
	}
	present, err := s.opts.Recognizer.CountPresent(ctx, classroomImage, len(students))
	if err != nil {
		return Session{}, apperrors.Wrap(err, apperrors.ErrRecognizer.Code, apperrors.ErrRecognizer.Status, apperrors.ErrRecognizer.Message)
	}
	if present < 0 {
		present = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.repo.Sessions(ctx)
	if err != nil {
		return Session{}, apperrors.Storage(err)
	}
	sess = Session{
		ID:           s.opts.NewID(SessionIDPrefix),
		Subject:      subject,
		PresentCount: present,
		Timestamp:    s.opts.Clock(),
	}
	if err := s.repo.SaveSessions(ctx, append(sessions, sess)); err != nil {
		return Session{}, apperrors.Storage(err)
	}
	metrics.PresentCount(present)
	s.log.Debug("attendance marked", zap.String("session_id", sess.ID), zap.Int("present", present))
	return sess, nil
}

// ListTeachers returns every teacher in registration order.
func (s *Service) ListTeachers(ctx context.Context) ([]Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teachers, err := s.repo.Teachers(ctx)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return teachers, nil
}

// ListStudents returns every student in registration order.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	students, err := s.repo.Students(ctx)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return students, nil
}

// ListAttendanceSessions returns every session in the order it was marked.
func (s *Service) ListAttendanceSessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions, err := s.repo.Sessions(ctx)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return sessions, nil
}

// wait simulates network latency and aborts early on cancellation.
func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
