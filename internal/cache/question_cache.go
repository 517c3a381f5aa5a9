package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QuestionLister is the question bank behind the cache.
type QuestionLister interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// QuestionCache is a Redis read-through cache of exam question sets.
// Redis failures are logged and the bank is queried directly, so the cache
// never turns into a point of failure for scoring.
type QuestionCache struct {
	rdb    *redis.Client
	source QuestionLister
	ttl    time.Duration
	log    zerolog.Logger
}

// NewQuestionCache creates a new QuestionCache.
func NewQuestionCache(rdb *redis.Client, source QuestionLister, ttl time.Duration, log zerolog.Logger) *QuestionCache {
	return &QuestionCache{
		rdb:    rdb,
		source: source,
		ttl:    ttl,
		log:    log.With().Str("component", "question_cache").Logger(),
	}
}

// ListForExam returns the exam's ordered question set, answer keys included.
func (c *QuestionCache) ListForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	key := config.CacheKey.ExamQuestionsKey(exam.ID.String())

	var questions []model.Question
	if c.get(ctx, key, &questions) {
		return questions, nil
	}

	questions, err := c.source.ListByIDs(ctx, exam.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	c.set(ctx, key, questions)
	return questions, nil
}

// Invalidate drops the cached question set of an exam.
func (c *QuestionCache) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamQuestionsKey(examID.String())).Err()
}

func (c *QuestionCache) get(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to database")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, ignoring")
		return false
	}
	return true
}

func (c *QuestionCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to marshal cache entry")
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
