package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readmarkapp/readmark-server/internal/domain"
	"github.com/readmarkapp/readmark-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startReadingSession",
		Method:      http.MethodPost,
		Path:        "/api/reading/sessions/start",
		Summary:     "Start a reading session",
		Description: "Opens a new reading session, closing out any session the user still has running",
		Tags:        []string{"Reading"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStartSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "heartbeatReadingSession",
		Method:      http.MethodPost,
		Path:        "/api/reading/sessions/{id}/heartbeat",
		Summary:     "Report session progress",
		Description: "Updates an active session's position and streams the elapsed time into today's totals",
		Tags:        []string{"Reading"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleHeartbeat)

	huma.Register(s.api, huma.Operation{
		OperationID: "endReadingSession",
		Method:      http.MethodPost,
		Path:        "/api/reading/sessions/{id}/end",
		Summary:     "End a reading session",
		Description: "Finalizes the session's duration and runs the streak and milestone checks",
		Tags:        []string{"Reading"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleEndSession)
}

// === DTOs ===

// StartSessionInput contains the request for opening a session.
type StartSessionInput struct {
	Authorization string `header:"Authorization"`
	Body          service.StartSessionRequest
}

// StartSessionResponse identifies the newly opened session.
type StartSessionResponse struct {
	SessionID string    `json:"sessionId" doc:"Session ID for heartbeat/end calls"`
	StartTime time.Time `json:"startTime" doc:"Server-side session start time"`
}

// StartSessionOutput wraps the start response for Huma.
type StartSessionOutput struct {
	Body StartSessionResponse
}

// HeartbeatInput contains a mid-session progress report.
type HeartbeatInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Session ID"`
	Body          service.HeartbeatRequest
}

// HeartbeatResponse reports the session's running totals.
type HeartbeatResponse struct {
	SessionID         string `json:"sessionId"`
	DurationSeconds   int64  `json:"durationSeconds" doc:"Elapsed seconds since session start"`
	TotalBookDuration int64  `json:"totalBookDuration" doc:"User's all-time seconds in this book"`
}

// HeartbeatOutput wraps the heartbeat response for Huma.
type HeartbeatOutput struct {
	Body HeartbeatResponse
}

// EndSessionInput contains the final progress report for a session.
type EndSessionInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Session ID"`
	Body          service.EndSessionRequest
}

// MilestoneResponse is one achieved milestone.
type MilestoneResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type" doc:"Milestone category"`
	Value      int64     `json:"value" doc:"Threshold crossed"`
	Title      string    `json:"title"`
	BookID     string    `json:"bookId,omitempty"`
	AchievedAt time.Time `json:"achievedAt"`
}

// EndSessionResponse reports the session's final totals and anything it
// unlocked.
type EndSessionResponse struct {
	SessionID          string              `json:"sessionId"`
	DurationSeconds    int64               `json:"durationSeconds" doc:"Final session duration"`
	TotalBookDuration  int64               `json:"totalBookDuration" doc:"User's all-time seconds in this book"`
	TodayDuration      int64               `json:"todayDuration" doc:"User's total seconds today"`
	MilestonesAchieved []MilestoneResponse `json:"milestonesAchieved"`
}

// EndSessionOutput wraps the end response for Huma.
type EndSessionOutput struct {
	Body EndSessionResponse
}

// === Handlers ===

func (s *Server) handleStartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Start(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}

	return &StartSessionOutput{
		Body: StartSessionResponse{
			SessionID: sess.ID,
			StartTime: sess.StartTime,
		},
	}, nil
}

func (s *Server) handleHeartbeat(ctx context.Context, input *HeartbeatInput) (*HeartbeatOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.sessions.Heartbeat(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &HeartbeatOutput{
		Body: HeartbeatResponse{
			SessionID:         result.SessionID,
			DurationSeconds:   result.DurationSeconds,
			TotalBookDuration: result.TotalBookDuration,
		},
	}, nil
}

func (s *Server) handleEndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	result, err := s.sessions.End(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}

	return &EndSessionOutput{
		Body: EndSessionResponse{
			SessionID:          result.SessionID,
			DurationSeconds:    result.DurationSeconds,
			TotalBookDuration:  result.TotalBookDuration,
			TodayDuration:      result.TodayDuration,
			MilestonesAchieved: toMilestoneResponses(result.MilestonesAchieved),
		},
	}, nil
}

// toMilestoneResponses converts domain milestones to the response shape.
// Always returns a non-nil slice so the JSON field is [] rather than null.
func toMilestoneResponses(milestones []*domain.Milestone) []MilestoneResponse {
	out := make([]MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, MilestoneResponse{
			ID:         m.ID,
			Type:       string(m.Type),
			Value:      m.Value,
			Title:      m.Title,
			BookID:     m.BookID,
			AchievedAt: m.AchievedAt,
		})
	}
	return out
}
