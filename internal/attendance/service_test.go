package attendance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trueface/internal/apperrors"
	"trueface/internal/kv"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Recognizer == nil {
		opts.Recognizer = NewMockRecognizer(42)
	}
	svc := Open(kv.NewMemory(), opts)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

type failingKV struct {
	kv.Store
	err error
}

func (f failingKV) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingKV) Set(context.Context, string, []byte) error   { return f.err }
func (f failingKV) Delete(context.Context, ...string) error     { return f.err }
func (f failingKV) Close() error                                { return nil }

type stubRecognizer struct {
	enrolled []string
	count    int
	err      error
}

func (r *stubRecognizer) Enroll(_ context.Context, studentID, _ string, _ []byte) error {
	if r.err != nil {
		return r.err
	}
	r.enrolled = append(r.enrolled, studentID)
	return nil
}

func (r *stubRecognizer) CountPresent(context.Context, []byte, int) (int, error) {
	return r.count, r.err
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	profile, err := svc.RegisterTeacher(ctx, "Dr. Carter", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)
	assert.Contains(t, profile.ID, TeacherIDPrefix+"-")
	assert.Equal(t, TeacherProfile{ID: profile.ID, Name: "Dr. Carter", Email: "a@b.com", Subject: "CS101", ClassName: "CS-A"}, profile)

	identity, err := svc.LoginTeacher(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, TeacherIdentity{ID: profile.ID, Name: "Dr. Carter"}, identity)

	teachers, err := svc.ListTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "pw", teachers[0].Password)
}

func TestLoginEmptyCredentials(t *testing.T) {
	svc := newTestService(t, Options{DemoLoginFallback: true})

	for _, tc := range []struct{ email, password string }{{"", ""}, {"a@b.com", ""}, {"", "x"}} {
		_, err := svc.LoginTeacher(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "%q/%q", tc.email, tc.password)
	}
}

func TestLoginUnmatchedCredentials(t *testing.T) {
	ctx := context.Background()

	strict := newTestService(t, Options{})
	_, err := strict.LoginTeacher(ctx, "a@b.com", "x")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	demo := newTestService(t, Options{DemoLoginFallback: true})
	identity, err := demo.LoginTeacher(ctx, "a@b.com", "x")
	require.NoError(t, err)
	assert.Equal(t, DemoIdentity, identity)
}

func TestLoginRequiresExactMatch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})
	_, err := svc.RegisterTeacher(ctx, "Dr. Carter", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)

	_, err = svc.LoginTeacher(ctx, "A@B.com", "pw")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.LoginTeacher(ctx, "a@b.com", "PW")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestDuplicateEmails(t *testing.T) {
	ctx := context.Background()

	strict := newTestService(t, Options{})
	_, err := strict.RegisterTeacher(ctx, "One", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)
	_, err = strict.RegisterTeacher(ctx, "Two", "A@B.com", "pw", "CS102", "CS-B")
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)

	permissive := newTestService(t, Options{AllowDuplicateEmails: true})
	first, err := permissive.RegisterTeacher(ctx, "One", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)
	_, err = permissive.RegisterTeacher(ctx, "Two", "a@b.com", "pw", "CS102", "CS-B")
	require.NoError(t, err)

	identity, err := permissive.LoginTeacher(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, first.ID, identity.ID)
}

func TestRegisterStudentsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, Options{Clock: func() time.Time { return now }})

	const n = 25
	for i := 0; i < n; i++ {
		st, err := svc.RegisterStudent(ctx, fmt.Sprintf("Student %d", i), fmt.Sprintf("R%d", i), []byte{0xff, 0xd8})
		require.NoError(t, err)
		assert.Equal(t, now, st.RegisteredAt)
	}

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, students, n)
	for i, st := range students {
		assert.Equal(t, fmt.Sprintf("R%d", i), st.RollNumber)
	}
}

func TestRegisterStudentEnrollsFace(t *testing.T) {
	rec := &stubRecognizer{}
	svc := newTestService(t, Options{Recognizer: rec})

	st, err := svc.RegisterStudent(context.Background(), "Alice", "R1", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, []string{st.ID}, rec.enrolled)
}

func TestRegisterStudentEnrollFailureAppendsNothing(t *testing.T) {
	rec := &stubRecognizer{err: errors.New("no face detected")}
	svc := newTestService(t, Options{Recognizer: rec})

	_, err := svc.RegisterStudent(context.Background(), "Alice", "R1", nil)
	assert.ErrorIs(t, err, apperrors.ErrRecognizer)

	students, err := svc.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestMarkAttendanceWithoutStudents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	for i := 0; i < 200; i++ {
		sess, err := svc.MarkAttendance(ctx, "CS101", []byte("jpeg"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sess.PresentCount, 20)
		assert.Less(t, sess.PresentCount, 30)
	}
}

func TestMarkAttendanceCountsRegisteredStudents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	for i := 0; i < 7; i++ {
		_, err := svc.RegisterStudent(ctx, "S", fmt.Sprintf("R%d", i), nil)
		require.NoError(t, err)
	}
	sess, err := svc.MarkAttendance(ctx, "Physics", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, sess.PresentCount)
	assert.Equal(t, "Physics", sess.Subject)
}

func TestMarkAttendanceClampsNegativeCount(t *testing.T) {
	svc := newTestService(t, Options{Recognizer: &stubRecognizer{count: -3}})

	sess, err := svc.MarkAttendance(context.Background(), "CS101", nil)
	require.NoError(t, err)
	assert.Zero(t, sess.PresentCount)
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	_, err := svc.RegisterTeacher(ctx, "Dr. Carter", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)
	identity, err := svc.LoginTeacher(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Carter", identity.Name)

	_, err = svc.RegisterStudent(ctx, "Alice", "R1", []byte("alice"))
	require.NoError(t, err)
	_, err = svc.RegisterStudent(ctx, "Bob", "R2", []byte("bob"))
	require.NoError(t, err)

	sess, err := svc.MarkAttendance(ctx, "CS101", []byte("classroom"))
	require.NoError(t, err)
	assert.Equal(t, 2, sess.PresentCount)
	assert.Equal(t, "CS101", sess.Subject)

	sessions, err := svc.ListAttendanceSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Session{sess}, sessions)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	seen := make(map[string]struct{}, 1500)
	for i := 0; i < 500; i++ {
		st, err := svc.RegisterStudent(ctx, "S", "R", nil)
		require.NoError(t, err)
		sess, err := svc.MarkAttendance(ctx, "CS101", nil)
		require.NoError(t, err)
		p, err := svc.RegisterTeacher(ctx, "T", fmt.Sprintf("t%d@b.com", i), "pw", "CS101", "A")
		require.NoError(t, err)
		for _, id := range []string{st.ID, sess.ID, p.ID} {
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %s", id)
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, 1500)
}

func TestReopenKeepsCollections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	medium, err := kv.OpenFile(path)
	require.NoError(t, err)
	svc := Open(medium, Options{Recognizer: NewMockRecognizer(1)})

	_, err = svc.RegisterTeacher(ctx, "Dr. Carter", "a@b.com", "pw", "CS101", "CS-A")
	require.NoError(t, err)
	_, err = svc.RegisterStudent(ctx, "Alice", "R1", nil)
	require.NoError(t, err)
	_, err = svc.RegisterStudent(ctx, "Bob", "R2", nil)
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, "CS101", nil)
	require.NoError(t, err)

	teachers, _ := svc.ListTeachers(ctx)
	students, _ := svc.ListStudents(ctx)
	sessions, _ := svc.ListAttendanceSessions(ctx)
	require.NoError(t, svc.Close())

	medium, err = kv.OpenFile(path)
	require.NoError(t, err)
	reopened := Open(medium, Options{})
	defer reopened.Close()

	gotTeachers, err := reopened.ListTeachers(ctx)
	require.NoError(t, err)
	gotStudents, err := reopened.ListStudents(ctx)
	require.NoError(t, err)
	gotSessions, err := reopened.ListAttendanceSessions(ctx)
	require.NoError(t, err)

	assert.Equal(t, teachers, gotTeachers)
	assert.Equal(t, students, gotStudents)
	assert.Equal(t, sessions, gotSessions)
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("quota exceeded")
	svc := Open(failingKV{err: cause}, Options{})

	_, err := svc.RegisterTeacher(ctx, "T", "a@b.com", "pw", "S", "C")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.ErrorIs(t, err, cause)

	_, err = svc.LoginTeacher(ctx, "a@b.com", "pw")
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	_, err = svc.MarkAttendance(ctx, "CS101", nil)
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	_, err = svc.ListStudents(ctx)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestCorruptCollectionIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	medium := kv.NewMemory()
	require.NoError(t, medium.Set(ctx, StudentsKey, []byte("{oops")))
	svc := Open(medium, Options{})

	_, err := svc.ListStudents(ctx)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestLatencyHonoursCancellation(t *testing.T) {
	svc := newTestService(t, Options{Latency: time.Minute, MarkLatency: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.RegisterTeacher(ctx, "T", "a@b.com", "pw", "S", "C")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	teachers, err := svc.ListTeachers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, teachers)
}

func TestLatencyDelaysOperation(t *testing.T) {
	svc := newTestService(t, Options{MarkLatency: 30 * time.Millisecond})

	start := time.Now()
	_, err := svc.MarkAttendance(context.Background(), "CS101", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConcurrentRegistrationsLoseNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.RegisterStudent(ctx, "S", fmt.Sprintf("R%d", i), nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 50)
}

func TestRegisterStudentSaveFailureAfterEnroll(t *testing.T) {
	rec := &stubRecognizer{}
	svc := Open(failingKV{err: errors.New("disk full")}, Options{Recognizer: rec})

	_, err := svc.RegisterStudent(context.Background(), "Alice", "R1", []byte("jpeg"))
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Len(t, rec.enrolled, 1, "enrollment precedes the save")
}

// blockingRecognizer holds CountPresent until release is closed.
type blockingRecognizer struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRecognizer) Enroll(context.Context, string, string, []byte) error { return nil }

func (r *blockingRecognizer) CountPresent(_ context.Context, _ []byte, enrolled int) (int, error) {
	close(r.started)
	<-r.release
	return enrolled, nil
}

func TestMarkAttendanceDoesNotBlockStoreWhileCounting(t *testing.T) {
	ctx := context.Background()
	rec := &blockingRecognizer{started: make(chan struct{}), release: make(chan struct{})}
	svc := newTestService(t, Options{Recognizer: rec})
	_, err := svc.RegisterStudent(ctx, "Alice", "R1", nil)
	require.NoError(t, err)

	marked := make(chan Session, 1)
	go func() {
		sess, err := svc.MarkAttendance(ctx, "CS101", nil)
		assert.NoError(t, err)
		marked <- sess
	}()
	<-rec.started

	registered := make(chan error, 1)
	go func() {
		_, err := svc.RegisterTeacher(ctx, "T", "a@b.com", "pw", "S", "C")
		registered <- err
	}()
	select {
	case err := <-registered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("store blocked while the recognizer was counting")
	}

	close(rec.release)
	sess := <-marked
	assert.Equal(t, 1, sess.PresentCount)

	sessions, err := svc.ListAttendanceSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Session{sess}, sessions)
}
