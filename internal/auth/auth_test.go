package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("true-face", "secret", time.Hour)

	token, exp, err := iss.Issue("mock-teacher-1", "Dr. Carter")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "mock-teacher-1", claims.TeacherID())
	assert.Equal(t, "Dr. Carter", claims.Name)
	assert.Equal(t, RoleTeacher, claims.Role)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	iss := NewIssuer("true-face", "secret", time.Hour)

	other, _, err := NewIssuer("true-face", "other-secret", time.Hour).Issue("t1", "x")
	require.NoError(t, err)
	_, err = iss.Parse(other)
	assert.Error(t, err)

	wrongIssuer, _, err := NewIssuer("someone-else", "secret", time.Hour).Issue("t1", "x")
	require.NoError(t, err)
	_, err = iss.Parse(wrongIssuer)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("true-face", "secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := iss.Issue("t1", "x")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(token)
	assert.Error(t, err)
}

func TestRequireTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer("true-face", "secret", time.Hour)

	r := gin.New()
	r.GET("/me", RequireTeacher(iss), func(c *gin.Context) {
		claims, ok := FromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, claims.TeacherID())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := iss.Issue("mock-teacher-9", "T")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mock-teacher-9", w.Body.String())
}
