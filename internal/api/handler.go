// Package api exposes the attendance store over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"trueface/internal/apperrors"
	"trueface/internal/attendance"
	"trueface/internal/auth"
	"trueface/internal/logger"
	"trueface/internal/queue"
)

// Handler wires HTTP endpoints to the attendance store.
type Handler struct {
	svc       *attendance.Service
	issuer    *auth.Issuer
	events    queue.Queue
	validate  *validator.Validate
	log       *zap.Logger
	maxUpload int64
}

// NewHandler creates a handler. events may be nil to disable publishing.
func NewHandler(svc *attendance.Service, issuer *auth.Issuer, events queue.Queue, log *zap.Logger, maxUpload int64) *Handler {
	if events == nil {
		events = queue.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New()
	// report form and json names instead of struct field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return &Handler{svc: svc, issuer: issuer, events: events, validate: v, log: log, maxUpload: maxUpload}
}

type registerTeacherRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	ClassName string `json:"className" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerStudentRequest struct {
	Name       string `form:"name" validate:"required"`
	RollNumber string `form:"roll_number" validate:"required"`
}

type markAttendanceRequest struct {
	Subject string `form:"subject" validate:"required"`
}

// teacherView is a teacher as listed by the viewer, without the password.
type teacherView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	ClassName string `json:"className"`
}

// RegisterTeacher handles POST /teacher/register.
func (h *Handler) RegisterTeacher(c *gin.Context) {
	var req registerTeacherRequest
	if err := h.bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	profile, err := h.svc.RegisterTeacher(ctx, req.Name, req.Email, req.Password, req.Subject, req.ClassName)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.SaveSession(ctx, attendance.LoginSession{
		TeacherID:      profile.ID,
		TeacherName:    profile.Name,
		DefaultSubject: profile.Subject,
		DefaultClass:   profile.ClassName,
	}); err != nil {
		// the teacher is stored; a missing session only means logging in again
		h.log.Warn("save session after registration failed",
			zap.String("teacher_id", profile.ID),
			zap.String("request_id", logger.RequestID(c)),
			zap.Error(err),
		)
	}
	h.publish(ctx, queue.TeacherRegistered, profile)

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Teacher registered successfully",
		"teacher_id": profile.ID,
		"name":       profile.Name,
		"email":      profile.Email,
		"subject":    profile.Subject,
		"className":  profile.ClassName,
	})
}

// Login handles POST /teacher/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	// empty credentials are the store's INVALID_CREDENTIALS case, not a validation error
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, validationError(err))
		return
	}
	ctx := c.Request.Context()

	id, err := h.svc.LoginTeacher(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	token, exp, err := h.issuer.Issue(id.ID, id.Name)
	if err != nil {
		h.fail(c, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "token issue failed"))
		return
	}
	if err := h.svc.SaveSession(ctx, attendance.LoginSession{TeacherID: id.ID, TeacherName: id.Name}); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teacher_id":   id.ID,
		"name":         id.Name,
		"access_token": token,
		"expires_at":   exp.Unix(),
	})
}

// RegisterStudent handles POST /students/register.
func (h *Handler) RegisterStudent(c *gin.Context) {
	var req registerStudentRequest
	if err := h.bindForm(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	image, err := h.readImage(c, "face_image")
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	st, err := h.svc.RegisterStudent(ctx, req.Name, req.RollNumber, image)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publish(ctx, queue.StudentRegistered, st)

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Student registered successfully",
		"student_id": st.ID,
	})
}

// MarkAttendance handles POST /attendance/mark. Requires RequireTeacher.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if err := h.bindForm(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	image, err := h.readImage(c, "classroom_image")
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	sess, err := h.svc.MarkAttendance(ctx, req.Subject, image)
	if err != nil {
		h.fail(c, err)
		return
	}
	claims, _ := auth.FromContext(c)
	h.publish(ctx, queue.AttendanceMarked, gin.H{
		"sessionId":    sess.ID,
		"subject":      sess.Subject,
		"presentCount": sess.PresentCount,
		"timestamp":    sess.Timestamp,
		"teacherId":    claims.TeacherID(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"session_id":    sess.ID,
		"subject":       sess.Subject,
		"present_count": sess.PresentCount,
		"timestamp":     sess.Timestamp,
	})
}

// ListTeachers handles GET /teachers.
func (h *Handler) ListTeachers(c *gin.Context) {
	teachers, err := h.svc.ListTeachers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]teacherView, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, teacherView{ID: t.ID, Name: t.Name, Email: t.Email, Subject: t.Subject, ClassName: t.ClassName})
	}
	c.JSON(http.StatusOK, gin.H{"teachers": out})
}

// ListStudents handles GET /students.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.svc.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if students == nil {
		students = []attendance.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// ListAttendance handles GET /attendance.
func (h *Handler) ListAttendance(c *gin.Context) {
	sessions, err := h.svc.ListAttendanceSessions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"attendance_records": sessions})
}

// Session handles GET /session.
func (h *Handler) Session(c *gin.Context) {
	ls, ok, err := h.svc.CurrentSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, apperrors.Clone(apperrors.ErrUnauthorized, "no teacher logged in"))
		return
	}
	c.JSON(http.StatusOK, ls)
}

// Logout handles POST /logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return validationError(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *Handler) bindForm(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil {
		return validationError(err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// readImage reads a required multipart image. Its content is never inspected.
func (h *Handler) readImage(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, field+" is required")
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return nil, apperrors.Clone(apperrors.ErrValidation, fmt.Sprintf("%s exceeds %d bytes", field, h.maxUpload))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "unreadable "+field)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "unreadable "+field)
	}
	if len(data) == 0 {
		return nil, apperrors.Clone(apperrors.ErrValidation, field+" is empty")
	}
	return data, nil
}

// publish emits a domain event. Failures are logged and never fail the request.
func (h *Handler) publish(ctx context.Context, eventType string, payload any) {
	msg, err := queue.NewMessage(eventType, payload)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		err = h.events.Publish(ctx, msg)
	}
	if err != nil {
		h.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
