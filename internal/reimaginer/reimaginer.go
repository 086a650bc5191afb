// Package reimaginer suggests recipes for leftover ingredients.
//
// Suggestions come from a fixed recipe book. Recipes whose ingredients are
// mentioned in the message sort first; nothing is generated.
package reimaginer

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"
)

// Greeting opens every conversation.
const Greeting = "Hi! I'm your Leftover Reimaginer! Tell me what ingredients you have, " +
	"and I'll suggest creative recipes to transform them into delicious meals. What's in your pantry today?"

const replyText = "Great! I found some delicious recipes using your ingredients. Here are my suggestions:"

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is empty")

// Difficulty grades a recipe.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Recipe is one suggestion.
type Recipe struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PrepTime     string     `json:"prepTime"`
	Servings     int        `json:"servings"`
	Difficulty   Difficulty `json:"difficulty"`
	Ingredients  []string   `json:"ingredients"`
	Instructions []string   `json:"instructions"`
}

// Role is who sent a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one chat turn.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Content   string    `json:"content"`
	Recipes   []Recipe  `json:"recipes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Book is the canned recipe set.
var Book = []Recipe{
	{
		ID:          "1",
		Name:        "Mediterranean Rice Bowl",
		PrepTime:    "15 mins",
		Servings:    2,
		Difficulty:  Easy,
		Ingredients: []string{"leftover rice", "tomatoes", "olive oil", "feta cheese", "herbs"},
		Instructions: []string{
			"Heat leftover rice in a pan with olive oil",
			"Add diced tomatoes and cook for 3-4 minutes",
			"Season with herbs and serve with crumbled feta",
		},
	},
	{
		ID:          "2",
		Name:        "Veggie Fried Rice",
		PrepTime:    "20 mins",
		Servings:    3,
		Difficulty:  Medium,
		Ingredients: []string{"leftover rice", "mixed vegetables", "soy sauce", "eggs", "garlic"},
		Instructions: []string{
			"Scramble eggs in a large pan and set aside",
			"Stir-fry vegetables with garlic",
			"Add rice and soy sauce, then fold in scrambled eggs",
		},
	},
}

// Reimaginer answers chat messages from a recipe book.
type Reimaginer struct {
	book []Recipe
	now  func() time.Time
}

// New returns a Reimaginer over book; a nil book means Book.
func New(book []Recipe) *Reimaginer {
	if book == nil {
		book = Book
	}
	return &Reimaginer{book: book, now: time.Now}
}

// Reply answers message with every recipe in the book, best match first.
// The user's message is echoed back as the first element.
func (r *Reimaginer) Reply(message string) ([]Message, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	now := r.now()
	return []Message{
		{ID: xid.New().String(), Role: RoleUser, Content: message, Timestamp: now},
		{ID: xid.New().String(), Role: RoleBot, Content: replyText, Recipes: r.Suggest(message), Timestamp: now},
	}, nil
}

// Suggest orders the book by how many of each recipe's ingredient words
// appear in text. Ties keep book order.
func (r *Reimaginer) Suggest(text string) []Recipe {
	words := tokens(text)
	out := make([]Recipe, len(r.book))
	copy(out, r.book)
	score := make(map[string]int, len(out))
	for _, rec := range out {
		score[rec.ID] = overlap(rec, words)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return score[out[i].ID] > score[out[j].ID]
	})
	return out
}

func overlap(rec Recipe, words map[string]bool) int {
	n := 0
	for _, ing := range rec.Ingredients {
		for w := range tokens(ing) {
			if words[w] && w != "leftover" {
				n++
				break
			}
		}
	}
	return n
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		out[strings.TrimSuffix(f, "s")] = true
	}
	return out
}
