package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/readmarkapp/readmark-server/internal/domain"
	domainerrors "github.com/readmarkapp/readmark-server/internal/errors"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getReadingStats",
		Method:      http.MethodGet,
		Path:        "/api/user/reading-stats",
		Summary:     "Get reading statistics",
		Description: "Returns the user's aggregated reading stats for the requested dimension",
		Tags:        []string{"Stats"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetReadingStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMilestones",
		Method:      http.MethodGet,
		Path:        "/api/user/milestones",
		Summary:     "Get achieved milestones",
		Description: "Returns the user's achieved milestones, most recent first",
		Tags:        []string{"Stats"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMilestones)
}

// === DTOs ===

// ReadingStatsInput contains parameters for the stats query.
type ReadingStatsInput struct {
	Authorization string `header:"Authorization"`
	Dimension     string `query:"dimension" enum:"week,month,year,total,calendar" default:"week" doc:"Aggregation window"`
	Date          string `query:"date" doc:"Anchor date (YYYY-MM-DD), defaults to today"`
}

// StreakResponse carries the user's streak state.
type StreakResponse struct {
	CurrentStreakDays int    `json:"currentStreakDays"`
	MaxStreakDays     int    `json:"maxStreakDays"`
	TotalReadingDays  int    `json:"totalReadingDays"`
	LastReadingDate   string `json:"lastReadingDate,omitempty"`
}

// CalendarDayResponse is one day bucket in a calendar month.
type CalendarDayResponse struct {
	Date            string `json:"date"`
	DurationSeconds int64  `json:"durationSeconds"`
	BooksRead       int    `json:"booksRead"`
	PagesRead       int    `json:"pagesRead"`
}

// CalendarResponse is the month grid plus the milestones achieved in it.
type CalendarResponse struct {
	Days       []CalendarDayResponse `json:"days"`
	Milestones []MilestoneResponse   `json:"milestones"`
}

// ReadingStatsResponse is the dimension-specific aggregate payload.
type ReadingStatsResponse struct {
	Dimension string `json:"dimension"`
	StartDate string `json:"startDate,omitempty" doc:"Empty for the total dimension"`
	EndDate   string `json:"endDate,omitempty"`

	TotalDurationSeconds int64 `json:"totalDurationSeconds"`
	ReadingDays          int   `json:"readingDays"`
	BooksRead            int   `json:"booksRead"`
	BooksFinished        int   `json:"booksFinished"`
	PagesRead            int   `json:"pagesRead"`
	NotesCreated         int   `json:"notesCreated"`
	HighlightsCreated    int   `json:"highlightsCreated"`

	CategoryDurations map[string]int64 `json:"categoryDurations,omitempty"`

	ChangePercent *float64 `json:"changePercent,omitempty" doc:"Duration change vs. the prior equivalent range"`

	Streak   *StreakResponse   `json:"streak,omitempty" doc:"Present for the total dimension"`
	Calendar *CalendarResponse `json:"calendar,omitempty" doc:"Present for the calendar dimension"`
}

// ReadingStatsOutput wraps the stats response for Huma.
type ReadingStatsOutput struct {
	Body ReadingStatsResponse
}

// MilestonesInput contains parameters for the milestone list.
type MilestonesInput struct {
	Authorization string `header:"Authorization"`
	Limit         int    `query:"limit" doc:"Max entries (default 50, max 200)"`
	Year          int    `query:"year" doc:"Restrict to one calendar year"`
}

// MilestonesResponse contains the user's achieved milestones.
type MilestonesResponse struct {
	Milestones []MilestoneResponse `json:"milestones"`
}

// MilestonesOutput wraps the milestone list for Huma.
type MilestonesOutput struct {
	Body MilestonesResponse
}

// === Handlers ===

func (s *Server) handleGetReadingStats(ctx context.Context, input *ReadingStatsInput) (*ReadingStatsOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	var ref time.Time
	if input.Date != "" {
		ref, err = time.Parse(domain.DateLayout, input.Date)
		if err != nil {
			return nil, domainerrors.Validationf("invalid date %q, expected YYYY-MM-DD", input.Date)
		}
	}

	summary, err := s.stats.GetStats(ctx, userID, domain.StatsDimension(input.Dimension), ref)
	if err != nil {
		return nil, err
	}

	resp := ReadingStatsResponse{
		Dimension:            string(summary.Dimension),
		StartDate:            summary.StartDate,
		EndDate:              summary.EndDate,
		TotalDurationSeconds: summary.DurationSeconds,
		ReadingDays:          summary.ReadingDays,
		BooksRead:            summary.BooksRead,
		BooksFinished:        summary.BooksFinished,
		PagesRead:            summary.PagesRead,
		NotesCreated:         summary.NotesCreated,
		HighlightsCreated:    summary.HighlightsCreated,
		CategoryDurations:    summary.CategoryDurations,
		ChangePercent:        summary.ChangePercent,
	}

	if summary.Profile != nil {
		resp.Streak = &StreakResponse{
			CurrentStreakDays: summary.Profile.CurrentStreakDays,
			MaxStreakDays:     summary.Profile.MaxStreakDays,
			TotalReadingDays:  summary.Profile.TotalReadingDays,
			LastReadingDate:   summary.Profile.LastReadingDate,
		}
	}

	if summary.Calendar != nil {
		days := make([]CalendarDayResponse, 0, len(summary.Calendar.Days))
		for _, d := range summary.Calendar.Days {
			days = append(days, CalendarDayResponse{
				Date:            d.Date,
				DurationSeconds: d.TotalDurationSeconds,
				BooksRead:       d.BooksRead,
				PagesRead:       d.PagesRead,
			})
		}
		resp.Calendar = &CalendarResponse{
			Days:       days,
			Milestones: toMilestoneResponses(summary.Calendar.Milestones),
		}
	}

	return &ReadingStatsOutput{Body: resp}, nil
}

func (s *Server) handleGetMilestones(ctx context.Context, input *MilestonesInput) (*MilestonesOutput, error) {
	userID, err := s.authenticateRequest(input.Authorization)
	if err != nil {
		return nil, err
	}

	var milestones []*domain.Milestone
	if input.Year > 0 {
		milestones, err = s.milestones.ListYear(ctx, userID, input.Year, input.Limit)
	} else {
		milestones, err = s.milestones.List(ctx, userID, input.Limit)
	}
	if err != nil {
		return nil, err
	}

	return &MilestonesOutput{
		Body: MilestonesResponse{
			Milestones: toMilestoneResponses(milestones),
		},
	}, nil
}
