package career

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"traintty/internal/api"
	"traintty/internal/model"
)

func TestStepperWalk(t *testing.T) {
	s := NewStepper()
	if s.Total() != 10 {
		t.Fatalf("Total = %d, want 10", s.Total())
	}

	// Cannot advance without rating.
	if _, err := s.Next(); err == nil {
		t.Error("Next must refuse an unrated question")
	}

	for i := 0; i < s.Total(); i++ {
		if s.Step() != i {
			t.Fatalf("step = %d, want %d", s.Step(), i)
		}
		if err := s.Rate(3); err != nil {
			t.Fatalf("Rate: %v", err)
		}
		done, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if wantDone := i == s.Total()-1; done != wantDone {
			t.Errorf("after question %d done = %v, want %v", i+1, done, wantDone)
		}
	}

	if !s.Complete() {
		t.Error("all questions rated, Complete() = false")
	}
	answers := s.Answers()
	if len(answers) != 10 {
		t.Fatalf("got %d answers", len(answers))
	}
	if answers[0].QuestionID != 1 || answers[9].QuestionID != 10 {
		t.Errorf("answers out of order: %+v", answers)
	}
}

func TestStepperPrevAndRerate(t *testing.T) {
	s := NewStepper()
	s.Rate(5)
	s.Next()
	s.Prev()
	if s.Step() != 0 {
		t.Fatalf("step = %d after Prev", s.Step())
	}
	if !s.Rated() {
		t.Error("rating must survive going back")
	}
	s.Rate(1)
	if s.Answers()[0].Rating != 1 {
		t.Errorf("re-rating not recorded: %+v", s.Answers()[0])
	}
	s.Prev() // at the first question already
	if s.Step() != 0 {
		t.Errorf("Prev at start moved to %d", s.Step())
	}
}

func TestRateValidatesRange(t *testing.T) {
	s := NewStepper()
	for _, r := range []int{0, 6, -1} {
		if err := s.Rate(r); err == nil {
			t.Errorf("Rate(%d) must fail", r)
		}
	}
}

func TestMatchRequiresCompleteAssessment(t *testing.T) {
	s := NewStepper()
	s.Rate(3)
	if _, err := Match(context.Background(), api.New("http://unused", nil), s, "u1"); err == nil {
		t.Error("Match must refuse an incomplete assessment")
	}
}

func TestMatchAndFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/career/match" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			UserID  string               `json:"user_id"`
			Answers []model.CareerAnswer `json:"answers"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Answers) != 10 || req.Answers[0].Rating != 4 {
			t.Errorf("answers = %+v", req.Answers)
		}
		json.NewEncoder(w).Encode(map[string]any{"career_matches": []map[string]any{
			{"career": "Data Analyst", "description": "Find insights in data", "match_score": 0.87},
			{"career": "Backend Engineer", "match_score": 0.74},
		}})
	}))
	defer srv.Close()

	s := NewStepper()
	for range Questions {
		s.Rate(4)
		s.Next()
	}

	matches, err := Match(context.Background(), api.New(srv.URL, nil), s, "u1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 2 || matches[0].Career != "Data Analyst" {
		t.Fatalf("matches = %+v", matches)
	}

	out := FormatMatches(matches)
	if !strings.Contains(out, "Data Analyst") || !strings.Contains(out, "87% match") {
		t.Errorf("formatted output:\n%s", out)
	}
}

func TestRoadmapFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"target_role": "Data Analyst",
			"steps": []map[string]any{
				{"title": "Learn SQL", "duration": "4 weeks", "skills": []string{"SQL", "modeling"}},
				{"title": "Build a portfolio", "description": "Two end-to-end projects"},
			},
		})
	}))
	defer srv.Close()

	r, err := Roadmap(context.Background(), api.New(srv.URL, nil), "Data Analyst", "u1")
	if err != nil {
		t.Fatalf("Roadmap: %v", err)
	}
	out := FormatRoadmap(r)
	for _, want := range []string{"Roadmap: Data Analyst", "1. Learn SQL (4 weeks)", "SQL, modeling", "2. Build a portfolio"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
