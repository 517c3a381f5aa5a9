package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionsKey returns the cache key for an exam's full question set (with answer key).
func (r *CacheKeyStruct) ExamQuestionsKey(examID string) string {
	return fmt.Sprintf("exam:%s:questions", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// GlobalMonitorChannel returns the Redis PubSub channel every proctor listens on.
func (r *CacheKeyStruct) GlobalMonitorChannel() string {
	return "proctor:global"
}

var CacheKey = NewCacheKeyStruct()
