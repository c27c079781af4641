package companion

import (
	"context"
	"regexp"
	"strings"

	"github.com/sweety-ai/sweety-chat/internal/model"
)

const (
	// DefaultReply answers when there is no user turn to react to.
	DefaultReply = "Thinking about you 😘"
	catchAllReply = "Haha tell me more 😄"
)

type keywordRule struct {
	words   []string // whole-word matches
	phrases []string // substring matches
	reply   string
}

var wordSplitRx = regexp.MustCompile(`[^\p{L}\p{N}']+`)

// Keyword is a deterministic Collaborator that picks a canned reply from the
// last user turn. The first matching rule wins.
type Keyword struct {
	rules []keywordRule
}

// NewKeyword returns the stock rule set.
func NewKeyword() *Keyword {
	return &Keyword{rules: []keywordRule{
		{words: []string{"age", "kiss", "relationship", "marry"}, reply: "shhhhhhh good people don't talk like that 😏"},
		{phrases: []string{"your name", "who are you", "what's your name", "ur name", "real name", "actual name"}, reply: "I'm Sweety 😊 Real name is hidden in my title, can you guess? 😉"},
		{words: []string{"dob"}, phrases: []string{"date of birth", "birthday"}, reply: "11 Dec? You got it! 🎉"},
		{words: []string{"love"}, reply: "Love you too ❤️"},
		{words: []string{"sad"}, reply: "Don't be sad jaan 😢"},
		{words: []string{"hello", "hi", "hey"}, reply: "Heyyy 😄 What's up?"},
		{words: []string{"bebo", "kareena"}, reply: "Bebo forever 😍"},
		{words: []string{"food", "kabab"}, reply: "Kabab sounds good 😋"},
		{words: []string{"memory"}, phrases: []string{"chaand raat"}, reply: "Chaand raat ❤️ Best memory!"},
	}}
}

// Respond never fails.
func (k *Keyword) Respond(_ context.Context, turns []model.Turn) (string, error) {
	text, ok := lastUserTurn(turns)
	if !ok {
		return DefaultReply, nil
	}
	return k.match(text), nil
}

func (k *Keyword) match(text string) string {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range wordSplitRx.Split(lower, -1) {
		if w != "" {
			words[w] = struct{}{}
		}
	}

	for _, r := range k.rules {
		for _, w := range r.words {
			if _, ok := words[w]; ok {
				return r.reply
			}
		}
		for _, p := range r.phrases {
			if strings.Contains(lower, p) {
				return r.reply
			}
		}
	}
	return catchAllReply
}
