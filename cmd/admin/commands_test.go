package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trueface/internal/attendance"
	"trueface/internal/kv"
)

// seeded returns an opener over one shared memory medium.
func seeded(t *testing.T) opener {
	t.Helper()
	store := kv.NewMemory()
	ctx := context.Background()

	svc := attendance.Open(store, attendance.Options{Recognizer: attendance.NewMockRecognizer(1)})
	_, err := svc.RegisterTeacher(ctx, "Dr. Carter", "a@b.com", "secret-pw", "CS101", "CS-A")
	require.NoError(t, err)
	require.NoError(t, svc.SaveSession(ctx, attendance.LoginSession{TeacherID: "mock-teacher-1", TeacherName: "Dr. Carter", DefaultSubject: "CS101"}))
	_, err = svc.RegisterStudent(ctx, "Alice", "R1", []byte("face"))
	require.NoError(t, err)
	_, err = svc.MarkAttendance(ctx, "CS101", []byte("class"))
	require.NoError(t, err)

	return func(context.Context) (*attendance.Service, error) {
		return attendance.Open(store, attendance.Options{}), nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestListCommands(t *testing.T) {
	open := seeded(t)

	out, err := run(t, open, "list", "teachers")
	require.NoError(t, err)
	assert.Contains(t, out, "Dr. Carter")
	assert.Contains(t, out, "CS-A")
	assert.NotContains(t, out, "secret-pw")

	out, err = run(t, open, "list", "students")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")

	out, err = run(t, open, "list", "sessions")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "CS101")
	assert.Regexp(t, `\s1\s`, lines[1])

	_, err = run(t, open, "list", "grades")
	assert.Error(t, err)
}

func TestSessionAndLogoutCommands(t *testing.T) {
	open := seeded(t)

	out, err := run(t, open, "session")
	require.NoError(t, err)
	assert.Contains(t, out, "mock-teacher-1")
	assert.Contains(t, out, "CS101")

	out, err = run(t, open, "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	out, err = run(t, open, "session")
	require.NoError(t, err)
	assert.Equal(t, "no teacher logged in\n", out)

	out, err = run(t, open, "list", "teachers")
	require.NoError(t, err)
	assert.Contains(t, out, "Dr. Carter")
}
