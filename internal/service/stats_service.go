package service

import (
	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/realtime"
)

// StatsService reports runtime figures for administrators.
type StatsService struct {
	analytics *errors.ErrorAnalytics
	hub       *realtime.Hub
}

func NewStatsService(analytics *errors.ErrorAnalytics, hub *realtime.Hub) *StatsService {
	return &StatsService{
		analytics: analytics,
		hub:       hub,
	}
}

func (s *StatsService) GetSystemStats() map[string]interface{} {
	stats := make(map[string]interface{})

	if s.hub != nil {
		topics, subscriptions := s.hub.Stats()
		stats["live_topics"] = topics
		stats["live_subscriptions"] = subscriptions
	}
	if s.analytics != nil {
		stats["errors"] = s.analytics.GetStats()
	}
	return stats
}

// GetErrorStats returns the error counters collected by the error monitor.
func (s *StatsService) GetErrorStats() map[string]interface{} {
	if s.analytics == nil {
		return map[string]interface{}{}
	}
	return s.analytics.GetStats()
}
