package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"traintty/internal/model"
)

func threeCards() []model.Flashcard {
	return []model.Flashcard{
		{Front: "CPU", Back: "central processing unit"},
		{Front: "RAM", Back: "random access memory"},
		{Front: "GPU", Back: "graphics processing unit"},
	}
}

func TestFlashcardFlip(t *testing.T) {
	p := NewFlashcardPlayer(threeCards())

	card, back := p.Current()
	assert.Equal(t, "CPU", card.Front)
	assert.False(t, back, "cards start on the front")

	p.Flip()
	_, back = p.Current()
	assert.True(t, back)

	p.Flip()
	_, back = p.Current()
	assert.False(t, back)
}

func TestFlashcardNextWrapsAndResets(t *testing.T) {
	p := NewFlashcardPlayer(threeCards())
	p.Flip()

	p.Next()
	card, back := p.Current()
	assert.Equal(t, "RAM", card.Front)
	assert.False(t, back, "moving resets to the front face")

	p.Next()
	p.Next() // wraps past the last card
	assert.Equal(t, 0, p.Index())
}

func TestFlashcardPrevWraps(t *testing.T) {
	p := NewFlashcardPlayer(threeCards())
	p.Prev()
	assert.Equal(t, 2, p.Index(), "Prev from the first card wraps to the last")

	p.Flip()
	p.Prev()
	_, back := p.Current()
	assert.False(t, back)
	assert.Equal(t, 1, p.Index())
}
