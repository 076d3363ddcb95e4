// Package career runs the career discovery assessment: a fixed set of
// Likert-scale questions, answer collection, backend matching, and roadmap
// generation.
package career

import (
	"context"
	"fmt"
	"strings"

	"traintty/internal/api"
	"traintty/internal/model"
)

// Question is one assessment statement rated on a 1-5 Likert scale.
type Question struct {
	ID   int
	Text string
}

// Questions is the assessment in presentation order.
var Questions = []Question{
	{1, "I enjoy working with technology and solving technical problems"},
	{2, "I prefer working independently rather than in large teams"},
	{3, "I like analyzing data to find patterns and insights"},
	{4, "I enjoy creating visual designs and user interfaces"},
	{5, "I'm comfortable presenting ideas to groups of people"},
	{6, "I prefer structured, predictable work environments"},
	{7, "I enjoy mentoring and helping others learn"},
	{8, "I like working on long-term strategic projects"},
	{9, "I'm energized by fast-paced, changing environments"},
	{10, "I prefer hands-on, practical work over theoretical concepts"},
}

// LikertLabels maps rating values 1-5 to their labels.
var LikertLabels = []string{
	"Strongly Disagree",
	"Disagree",
	"Neutral",
	"Agree",
	"Strongly Agree",
}

// defaultInterests seeds roadmap generation when no profile exists yet.
var defaultInterests = []string{"technology", "problem-solving"}

// Stepper walks through the questions one at a time and collects ratings.
type Stepper struct {
	step    int
	ratings map[int]int
}

func NewStepper() *Stepper {
	return &Stepper{ratings: make(map[int]int)}
}

// Current returns the question at the cursor.
func (s *Stepper) Current() Question {
	return Questions[s.step]
}

// Step returns the zero-based cursor position.
func (s *Stepper) Step() int { return s.step }

// Total returns the number of questions.
func (s *Stepper) Total() int { return len(Questions) }

// Rate records a rating (1-5) for the current question.
func (s *Stepper) Rate(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be 1-5, got %d", rating)
	}
	s.ratings[s.Current().ID] = rating
	return nil
}

// Rated reports whether the current question has a rating.
func (s *Stepper) Rated() bool {
	_, ok := s.ratings[s.Current().ID]
	return ok
}

// Next advances the cursor. It refuses to move past an unrated question and
// reports whether the assessment is complete.
func (s *Stepper) Next() (done bool, err error) {
	if !s.Rated() {
		return false, fmt.Errorf("answer the current question first")
	}
	if s.step == len(Questions)-1 {
		return true, nil
	}
	s.step++
	return false, nil
}

// Prev moves the cursor back, stopping at the first question.
func (s *Stepper) Prev() {
	if s.step > 0 {
		s.step--
	}
}

// Answers returns the collected ratings in question order.
func (s *Stepper) Answers() []model.CareerAnswer {
	out := make([]model.CareerAnswer, 0, len(s.ratings))
	for _, q := range Questions {
		if r, ok := s.ratings[q.ID]; ok {
			out = append(out, model.CareerAnswer{QuestionID: q.ID, Rating: r})
		}
	}
	return out
}

// Complete reports whether every question has a rating.
func (s *Stepper) Complete() bool {
	return len(s.ratings) == len(Questions)
}

// Match submits the completed assessment and returns ranked careers.
func Match(ctx context.Context, client *api.Client, s *Stepper, userID string) ([]model.CareerMatch, error) {
	if !s.Complete() {
		return nil, fmt.Errorf("assessment incomplete: %d of %d questions answered", len(s.ratings), len(Questions))
	}
	return client.MatchCareer(ctx, s.Answers(), userID)
}

// Roadmap generates a learning roadmap toward the chosen role.
func Roadmap(ctx context.Context, client *api.Client, targetRole, userID string) (*model.Roadmap, error) {
	return client.UnifiedRoadmap(ctx, targetRole, defaultInterests, userID)
}

// FormatMatches renders matches as a markdown list.
func FormatMatches(matches []model.CareerMatch) string {
	if len(matches) == 0 {
		return "No career matches came back. Try adjusting your answers."
	}
	var sb strings.Builder
	sb.WriteString("## Your Career Matches\n\n")
	for i, m := range matches {
		fmt.Fprintf(&sb, "%d. **%s** (%d%% match)\n", i+1, m.Career, int(m.MatchScore*100+0.5))
		if m.Description != "" {
			sb.WriteString("   " + m.Description + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatRoadmap renders a roadmap as a markdown timeline.
func FormatRoadmap(r *model.Roadmap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Roadmap: %s\n\n", r.TargetRole)
	for i, step := range r.Steps {
		fmt.Fprintf(&sb, "### %d. %s", i+1, step.Title)
		if step.Duration != "" {
			fmt.Fprintf(&sb, " (%s)", step.Duration)
		}
		sb.WriteString("\n")
		if step.Description != "" {
			sb.WriteString(step.Description + "\n")
		}
		if len(step.Skills) > 0 {
			sb.WriteString("Skills: " + strings.Join(step.Skills, ", ") + "\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
