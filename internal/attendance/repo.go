package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"trueface/internal/kv"
)

// Keys of the persisted collections and of the login session.
const (
	TeachersKey = "teachers"
	StudentsKey = "students"
	SessionsKey = "attendance_records"

	TeacherIDKey      = "teacher_id"
	TeacherNameKey    = "teacher_name"
	DefaultSubjectKey = "default_subject"
	DefaultClassKey   = "default_class"
)

// Repository reads and writes whole collections as JSON arrays in a kv medium.
type Repository struct {
	kv kv.Store
}

// NewRepository creates a repository over the given medium.
func NewRepository(store kv.Store) *Repository {
	return &Repository{kv: store}
}

// Teachers loads the teachers collection.
func (r *Repository) Teachers(ctx context.Context) ([]Teacher, error) {
	return load[Teacher](ctx, r.kv, TeachersKey)
}

// SaveTeachers replaces the teachers collection.
func (r *Repository) SaveTeachers(ctx context.Context, teachers []Teacher) error {
	return save(ctx, r.kv, TeachersKey, teachers)
}

// Students loads the students collection.
func (r *Repository) Students(ctx context.Context) ([]Student, error) {
	return load[Student](ctx, r.kv, StudentsKey)
}

// SaveStudents replaces the students collection.
func (r *Repository) SaveStudents(ctx context.Context, students []Student) error {
	return save(ctx, r.kv, StudentsKey, students)
}

// Sessions loads the attendance sessions collection.
func (r *Repository) Sessions(ctx context.Context) ([]Session, error) {
	return load[Session](ctx, r.kv, SessionsKey)
}

// SaveSessions replaces the attendance sessions collection.
func (r *Repository) SaveSessions(ctx context.Context, sessions []Session) error {
	return save(ctx, r.kv, SessionsKey, sessions)
}

// Value reads a plain string key; a missing key yields "".
func (r *Repository) Value(ctx context.Context, key string) (string, error) {
	v, err := r.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(v), nil
}

// SetValue writes a plain string key.
func (r *Repository) SetValue(ctx context.Context, key, value string) error {
	if err := r.kv.Set(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// DeleteValues removes plain keys.
func (r *Repository) DeleteValues(ctx context.Context, keys ...string) error {
	if err := r.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}
	return nil
}

// Close closes the medium.
func (r *Repository) Close() error {
	return r.kv.Close()
}

// load treats a missing key as an empty collection.
func load[T any](ctx context.Context, store kv.Store, key string) ([]T, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func save[T any](ctx context.Context, store kv.Store, key string, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
