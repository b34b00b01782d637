package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopWords(t *testing.T) {
	text := "Pelicans eat fish. Pelicans scoop fish! A pelican's pouch holds fish."

	words := topWords(text, 2)

	assert.Equal(t, []wordCount{{"fish", 3}, {"pelicans", 2}}, words)
}

func TestTopWords_SkipsShortWords(t *testing.T) {
	assert.Empty(t, topWords("a an to of it", 5))
}
