package tui

import (
	"traintty/internal/classify"
	"traintty/internal/model"
)

// QuizPlayer steps through a quiz one question at a time. Each question is
// either unanswered or answered exactly once; the quiz as a whole is in
// progress until the last question is advanced past, then completed until
// restarted.
type QuizPlayer struct {
	items     []model.QuizItem
	current   int
	selected  []int // option index per question, -1 while unanswered
	completed bool
}

func NewQuizPlayer(items []model.QuizItem) *QuizPlayer {
	p := &QuizPlayer{items: items}
	p.Restart()
	return p
}

// Current returns the question under the cursor and its zero-based index.
func (p *QuizPlayer) Current() (model.QuizItem, int) {
	return p.items[p.current], p.current
}

// Total returns the number of questions.
func (p *QuizPlayer) Total() int { return len(p.items) }

// Answered reports whether the current question has been answered.
func (p *QuizPlayer) Answered() bool {
	return p.selected[p.current] >= 0
}

// Selected returns the chosen option index for the current question, or -1.
func (p *QuizPlayer) Selected() int {
	return p.selected[p.current]
}

// Select records the answer for the current question and reports whether it
// was correct. Repeat selections on an answered question are ignored.
func (p *QuizPlayer) Select(optionIndex int) (correct, ok bool) {
	if p.completed || p.Answered() {
		return false, false
	}
	q := p.items[p.current]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return false, false
	}
	p.selected[p.current] = optionIndex
	return classify.EqualAnswer(q.Options[optionIndex], q.Answer), true
}

// CurrentCorrect reports whether the recorded answer for the current
// question was correct.
func (p *QuizPlayer) CurrentCorrect() bool {
	sel := p.selected[p.current]
	if sel < 0 {
		return false
	}
	q := p.items[p.current]
	return classify.EqualAnswer(q.Options[sel], q.Answer)
}

// Next moves to the next question once the current one is answered. Past the
// last question the quiz completes.
func (p *QuizPlayer) Next() {
	if p.completed || !p.Answered() {
		return
	}
	if p.current == len(p.items)-1 {
		p.completed = true
		return
	}
	p.current++
}

// Completed reports whether the quiz has finished.
func (p *QuizPlayer) Completed() bool { return p.completed }

// Score returns answered-correctly count, total, and the percentage.
func (p *QuizPlayer) Score() (correct, total, percent int) {
	total = len(p.items)
	for i, sel := range p.selected {
		if sel < 0 {
			continue
		}
		if classify.EqualAnswer(p.items[i].Options[sel], p.items[i].Answer) {
			correct++
		}
	}
	if total > 0 {
		percent = correct * 100 / total
	}
	return correct, total, percent
}

// Restart clears all answers and returns to the first question.
func (p *QuizPlayer) Restart() {
	p.current = 0
	p.completed = false
	p.selected = make([]int, len(p.items))
	for i := range p.selected {
		p.selected[i] = -1
	}
}
