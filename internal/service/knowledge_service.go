package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"elearning-chatbot-be/internal/constant"
	"elearning-chatbot-be/internal/dto"
	"elearning-chatbot-be/internal/pkg/apperr"
	"elearning-chatbot-be/internal/pkg/logger"
	"elearning-chatbot-be/pkg/rag/retriever"
	"elearning-chatbot-be/pkg/utils"
	"elearning-chatbot-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	knowledgeChunkSize    = 1500
	knowledgeChunkOverlap = 200
)

type IKnowledgeService interface {
	AddKnowledge(ctx context.Context, request *dto.AddKnowledgeRequest) (*dto.KnowledgeWriteResponse, error)
	AddFAQ(ctx context.Context, request *dto.AddFAQRequest) (*dto.KnowledgeWriteResponse, error)
	SyncCourse(ctx context.Context, request *dto.SyncCourseRequest) (*dto.KnowledgeWriteResponse, error)
	// Enqueue hands a write to the ingestion consumer instead of embedding inline.
	Enqueue(ctx context.Context, msg dto.KnowledgeUpsertMessage) error
	// Upsert embeds and stores one item; used by the ingestion consumer.
	Upsert(ctx context.Context, msg dto.KnowledgeUpsertMessage) error
	Stats(ctx context.Context) (*dto.KnowledgeStatsResponse, error)
}

type knowledgeService struct {
	ingestor      *vectorstore.Ingestor
	publisher     message.Publisher
	backend       string
	embeddingName string
	logger        logger.ILogger
}

// NewKnowledgeService writes through ingestor. publisher may be nil, in which
// case asynchronous writes are rejected.
func NewKnowledgeService(ingestor *vectorstore.Ingestor, publisher message.Publisher, backend, embeddingName string, log logger.ILogger) IKnowledgeService {
	return &knowledgeService{
		ingestor:      ingestor,
		publisher:     publisher,
		backend:       backend,
		embeddingName: embeddingName,
		logger:        log,
	}
}

func (ks *knowledgeService) AddKnowledge(ctx context.Context, request *dto.AddKnowledgeRequest) (*dto.KnowledgeWriteResponse, error) {
	content := strings.TrimSpace(request.Content)
	if content == "" {
		return nil, apperr.Invalid("content is required")
	}
	id := request.Id
	if id == "" {
		id = "kb_" + uuid.NewString()
	}

	metadata := map[string]string{}
	for k, v := range request.Metadata {
		metadata[k] = v
	}
	metadata["source"] = firstNonEmpty(request.Source, metadata["source"], retriever.DefaultSource)
	metadata["type"] = firstNonEmpty(request.Type, metadata["type"], retriever.DefaultType)

	msg := dto.KnowledgeUpsertMessage{
		Collection: constant.CollectionKnowledge,
		Id:         id,
		Content:    content,
		Metadata:   metadata,
	}
	if request.Async {
		if err := ks.Enqueue(ctx, msg); err != nil {
			return nil, err
		}
	} else if err := ks.Upsert(ctx, msg); err != nil {
		return nil, err
	}

	return &dto.KnowledgeWriteResponse{Collection: constant.CollectionKnowledge, Id: id, Queued: request.Async}, nil
}

// AddFAQ stores the pair as "Q: ...\nA: ..." in the faq collection. Without an
// id a fresh faq_<uuid> is used, so an auto id never overwrites another FAQ.
func (ks *knowledgeService) AddFAQ(ctx context.Context, request *dto.AddFAQRequest) (*dto.KnowledgeWriteResponse, error) {
	question := strings.TrimSpace(request.Question)
	answer := strings.TrimSpace(request.Answer)
	if question == "" || answer == "" {
		return nil, apperr.Invalid("question and answer are required")
	}

	id := request.Id
	if id == "" {
		id = "faq_" + uuid.NewString()
	}

	metadata := map[string]string{
		"source":   "FAQ",
		"type":     "faq",
		"question": question,
	}
	if request.Category != "" {
		metadata["category"] = request.Category
	}

	msg := dto.KnowledgeUpsertMessage{
		Collection: constant.CollectionFAQ,
		Id:         id,
		Content:    fmt.Sprintf("Q: %s\nA: %s", question, answer),
		Metadata:   metadata,
	}
	if err := ks.Upsert(ctx, msg); err != nil {
		return nil, err
	}
	return &dto.KnowledgeWriteResponse{Collection: constant.CollectionFAQ, Id: id}, nil
}

func (ks *knowledgeService) SyncCourse(ctx context.Context, request *dto.SyncCourseRequest) (*dto.KnowledgeWriteResponse, error) {
	if strings.TrimSpace(request.Id) == "" || strings.TrimSpace(request.Title) == "" {
		return nil, apperr.Invalid("course id and title are required")
	}

	var sb strings.Builder
	sb.WriteString(request.Title)
	if request.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(request.Description)
	}
	if request.Level != "" {
		fmt.Fprintf(&sb, "\nLevel: %s", request.Level)
	}
	if request.Instructor != "" {
		fmt.Fprintf(&sb, "\nInstructor: %s", request.Instructor)
	}
	if len(request.Tags) > 0 {
		fmt.Fprintf(&sb, "\nTags: %s", strings.Join(request.Tags, ", "))
	}

	metadata := map[string]string{
		"source": request.Title,
		"type":   "course",
		"title":  request.Title,
	}
	if request.Level != "" {
		metadata["level"] = request.Level
	}
	if request.Instructor != "" {
		metadata["instructor"] = request.Instructor
	}

	msg := dto.KnowledgeUpsertMessage{
		Collection: constant.CollectionCourses,
		Id:         request.Id,
		Content:    sb.String(),
		Metadata:   metadata,
	}
	if err := ks.Upsert(ctx, msg); err != nil {
		return nil, err
	}
	return &dto.KnowledgeWriteResponse{Collection: constant.CollectionCourses, Id: request.Id}, nil
}

func (ks *knowledgeService) Enqueue(ctx context.Context, msg dto.KnowledgeUpsertMessage) error {
	if ks.publisher == nil {
		return apperr.Invalid("asynchronous ingestion is disabled")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return apperr.Internal(err)
	}
	wm := message.NewMessage(watermill.NewUUID(), payload)
	wm.SetContext(ctx)
	if err := ks.publisher.Publish(constant.TopicKnowledgeUpsert, wm); err != nil {
		return apperr.Unavailable(fmt.Errorf("enqueue %s/%s: %w", msg.Collection, msg.Id, err))
	}
	return nil
}

// Upsert writes general knowledge as a chunked document that replaces any
// earlier version of the same id. FAQ and course entries are single items.
func (ks *knowledgeService) Upsert(ctx context.Context, msg dto.KnowledgeUpsertMessage) error {
	var err error
	if msg.Collection == constant.CollectionKnowledge {
		var chunks []string
		for _, chunk := range utils.SplitText(msg.Content, knowledgeChunkSize, knowledgeChunkOverlap) {
			if chunk = strings.TrimSpace(chunk); chunk != "" {
				chunks = append(chunks, chunk)
			}
		}
		err = ks.ingestor.UpsertDocument(ctx, msg.Collection, msg.Id, chunks, msg.Metadata)
	} else {
		err = ks.ingestor.Upsert(ctx, msg.Collection, msg.Id, msg.Content, msg.Metadata)
	}
	if err != nil {
		ks.logger.Error("KNOWLEDGE", "Failed to upsert knowledge item", map[string]interface{}{
			"collection": msg.Collection,
			"id":         msg.Id,
			"error":      err,
		})
		if apperr.KindOf(err) == apperr.KindInternal {
			return apperr.Unavailable(err)
		}
		return err
	}
	ks.logger.Debug("KNOWLEDGE", "Upserted knowledge item", map[string]interface{}{
		"collection": msg.Collection,
		"id":         msg.Id,
	})
	return nil
}

func (ks *knowledgeService) Stats(ctx context.Context) (*dto.KnowledgeStatsResponse, error) {
	stats, err := ks.ingestor.Store().Collections(ctx)
	if err != nil {
		return nil, apperr.Unavailable(err)
	}
	res := &dto.KnowledgeStatsResponse{
		Backend:           ks.backend,
		EmbeddingProvider: ks.embeddingName,
		Collections:       make([]dto.CollectionStatsResponse, 0, len(stats)),
	}
	for _, s := range stats {
		res.Collections = append(res.Collections, dto.CollectionStatsResponse{Name: s.Name, Count: s.Count, Dimension: s.Dimension})
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
