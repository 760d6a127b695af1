package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readmarkapp/readmark-server/internal/service"
)

func (s *Server) registerLeaderboardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getLeaderboard",
		Method:      http.MethodGet,
		Path:        "/api/social/leaderboard",
		Summary:     "Get weekly leaderboard",
		Description: "Returns the weekly reading leaderboard for the requested scope and week",
		Tags:        []string{"Social"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLeaderboard)
}

// === DTOs ===

// GetLeaderboardInput contains parameters for getting the leaderboard.
type GetLeaderboardInput struct {
	Authorization string `header:"Authorization"`
	Type          string `query:"type" enum:"all,friends" default:"all" doc:"Ranking scope"`
	Week          string `query:"week" doc:"Week start date (a Monday, YYYY-MM-DD); defaults to the current week"`
}

// LeaderboardEntryResponse represents a single leaderboard entry.
type LeaderboardEntryResponse struct {
	Rank            int    `json:"rank" doc:"Position in leaderboard"`
	UserID          string `json:"userId"`
	DurationSeconds int64  `json:"durationSeconds" doc:"Total reading time that week"`
	RankChange      int    `json:"rankChange" doc:"Previous week's rank minus this week's; positive means moved up"`
	ReadingDays     int    `json:"readingDays"`
	BooksRead       int    `json:"booksRead"`
	LikesReceived   int    `json:"likesReceived"`
	IsCurrentUser   bool   `json:"isCurrentUser"`
}

// LeaderboardResponse contains the full leaderboard data.
type LeaderboardResponse struct {
	WeekStart         string                     `json:"weekStart"`
	WeekEnd           string                     `json:"weekEnd"`
	Settled           bool                       `json:"settled" doc:"False while the week is still being computed live"`
	UserRank          int                        `json:"userRank" doc:"Caller's rank, 0 when unranked"`
	TotalParticipants int                        `json:"totalParticipants"`
	Entries           []LeaderboardEntryResponse `json:"entries"`
}

// LeaderboardOutput wraps the leaderboard response for Huma.
type LeaderboardOutput struct {
	Body LeaderboardResponse
}

// === Handlers ===

func (s *Server) handleGetLeaderboard(ctx context.Context, input *GetLeaderboardInput) (*LeaderboardOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	view, err := s.leaderboard.Leaderboard(ctx, userID, input.Week, service.LeaderboardScope(input.Type))
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntryResponse, 0, len(view.Entries))
	for _, e := range view.Entries {
		entries = append(entries, LeaderboardEntryResponse{
			Rank:            e.Rank,
			UserID:          e.UserID,
			DurationSeconds: e.TotalDurationSeconds,
			RankChange:      e.RankChange,
			ReadingDays:     e.ReadingDays,
			BooksRead:       e.BooksRead,
			LikesReceived:   e.LikesReceived,
			IsCurrentUser:   e.UserID == userID,
		})
	}

	return &LeaderboardOutput{
		Body: LeaderboardResponse{
			WeekStart:         view.WeekStart,
			WeekEnd:           view.WeekEnd,
			Settled:           view.Settled,
			UserRank:          view.UserRank,
			TotalParticipants: view.TotalParticipants,
			Entries:           entries,
		},
	}, nil
}
