package tui

import "traintty/internal/model"

// FlashcardPlayer cycles through cards showing front or back. There is no
// terminal state; navigation wraps around and always lands on the front.
type FlashcardPlayer struct {
	cards []model.Flashcard
	index int
	back  bool
}

func NewFlashcardPlayer(cards []model.Flashcard) *FlashcardPlayer {
	return &FlashcardPlayer{cards: cards}
}

// Current returns the card under the cursor and which face is showing.
func (p *FlashcardPlayer) Current() (card model.Flashcard, showingBack bool) {
	return p.cards[p.index], p.back
}

// Index returns the zero-based cursor position.
func (p *FlashcardPlayer) Index() int { return p.index }

// Total returns the number of cards.
func (p *FlashcardPlayer) Total() int { return len(p.cards) }

// Flip toggles between front and back of the current card.
func (p *FlashcardPlayer) Flip() {
	p.back = !p.back
}

// Next moves to the following card, wrapping to the first after the last,
// and resets to the front face.
func (p *FlashcardPlayer) Next() {
	p.index = (p.index + 1) % len(p.cards)
	p.back = false
}

// Prev moves to the preceding card, wrapping to the last before the first,
// and resets to the front face.
func (p *FlashcardPlayer) Prev() {
	p.index = (p.index - 1 + len(p.cards)) % len(p.cards)
	p.back = false
}
