package service

import (
	"context"
	"fmt"

	"elearning-chatbot-be/internal/constant"
	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/events"
	pktNats "elearning-chatbot-be/pkg/nats"
)

// EventSubscriber is satisfied by nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

// CourseSyncService keeps the courses collection in step with the catalogue
// by consuming course.updated events.
type CourseSyncService struct {
	subscriber EventSubscriber
	knowledge  IKnowledgeService
	logger     logger.ILogger
}

func NewCourseSyncService(subscriber EventSubscriber, knowledge IKnowledgeService, log logger.ILogger) *CourseSyncService {
	return &CourseSyncService{subscriber: subscriber, knowledge: knowledge, logger: log}
}

func (s *CourseSyncService) Start(ctx context.Context) error {
	return s.subscriber.Subscribe(ctx, constant.EventCourseUpdated, constant.ConsumerCourseSync, s.HandleCourseUpdated)
}

// HandleCourseUpdated upserts the course carried by the event. Events missing
// an id or title are logged and acknowledged.
func (s *CourseSyncService) HandleCourseUpdated(ctx context.Context, event events.BaseEvent) error {
	request := &dto.SyncCourseRequest{
		Id:          event.String("id"),
		Title:       event.String("title"),
		Description: event.String("description"),
		Level:       event.String("level"),
		Instructor:  event.String("instructor"),
		Tags:        stringList(event.Data["tags"]),
	}
	if request.Id == "" {
		request.Id = event.String("course_id")
	}

	if _, err := s.knowledge.SyncCourse(ctx, request); err != nil {
		if apperr.KindOf(err) == apperr.KindInvalid {
			s.logger.Warn("COURSE_SYNC", "Ignoring malformed course event", map[string]interface{}{
				"course_id": request.Id,
				"error":     err,
			})
			return nil
		}
		return fmt.Errorf("sync course %s: %w", request.Id, err)
	}
	s.logger.Info("COURSE_SYNC", "Course synced", map[string]interface{}{"course_id": request.Id})
	return nil
}

func stringList(v interface{}) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
