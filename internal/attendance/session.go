package attendance

import (
	"context"

	"trueface/internal/apperrors"
)

var sessionKeys = []string{TeacherIDKey, TeacherNameKey, DefaultSubjectKey, DefaultClassKey}

// SaveSession stores the logged-in teacher under the session keys. Empty
// fields leave the previously stored value in place, so a login keeps the
// registration defaults.
func (s *Service) SaveSession(ctx context.Context, ls LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{
		TeacherIDKey:      ls.TeacherID,
		TeacherNameKey:    ls.TeacherName,
		DefaultSubjectKey: ls.DefaultSubject,
		DefaultClassKey:   ls.DefaultClass,
	}
	for _, key := range sessionKeys {
		if values[key] == "" {
			continue
		}
		if err := s.repo.SetValue(ctx, key, values[key]); err != nil {
			return apperrors.Storage(err)
		}
	}
	return nil
}

// CurrentSession returns the stored login session. ok is false when no
// teacher is logged in.
func (s *Service) CurrentSession(ctx context.Context) (ls LoginSession, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := []*string{&ls.TeacherID, &ls.TeacherName, &ls.DefaultSubject, &ls.DefaultClass}
	for i, key := range sessionKeys {
		v, err := s.repo.Value(ctx, key)
		if err != nil {
			return LoginSession{}, false, apperrors.Storage(err)
		}
		*dst[i] = v
	}
	return ls, ls.TeacherID != "", nil
}

// Logout clears the session keys. Domain records are untouched.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.DeleteValues(ctx, sessionKeys...); err != nil {
		return apperrors.Storage(err)
	}
	return nil
}
