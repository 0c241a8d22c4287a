// Package worker consumes domain events published by the API.
package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"trueface/internal/metrics"
	"trueface/internal/queue"
)

// Run consumes q until ctx is done, logging and counting every event. It
// returns the number of events handled.
func Run(ctx context.Context, q queue.Queue, log *zap.Logger) (int, error) {
	messages, err := q.Consume(ctx)
	if err != nil {
		return 0, err
	}
	handled := 0
	for msg := range messages {
		Handle(log, msg)
		handled++
	}
	return handled, nil
}

// Handle logs one event with its decoded body fields.
func Handle(log *zap.Logger, msg queue.Message) {
	metrics.EventConsumed(msg.Type)

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		log.Warn("undecodable event body", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	switch msg.Type {
	case queue.TeacherRegistered:
		log.Info("teacher registered", zap.Any("teacher_id", body["teacher_id"]), zap.Any("email", body["email"]))
	case queue.StudentRegistered:
		log.Info("student registered", zap.Any("student_id", body["id"]), zap.Any("roll_number", body["rollNumber"]))
	case queue.AttendanceMarked:
		log.Info("attendance marked",
			zap.Any("session_id", body["sessionId"]),
			zap.Any("subject", body["subject"]),
			zap.Any("present_count", body["presentCount"]),
			zap.Any("teacher_id", body["teacherId"]),
		)
	default:
		log.Warn("unknown event type", zap.String("type", msg.Type))
	}
}
