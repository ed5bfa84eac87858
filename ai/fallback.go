package ai

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Category is the emotional theme the local generator detected in a message.
type Category string

const (
	CategoryGreeting      Category = "greeting"
	CategorySadness       Category = "sadness"
	CategoryLove          Category = "love"
	CategoryMemory        Category = "memory"
	CategoryMissing       Category = "missing"
	CategoryEncouragement Category = "encouragement"
	CategoryDefault       Category = "default"
)

type keywordRule struct {
	category Category
	keywords []string
}

// Order matters: the first rule with a matching keyword wins.
// Keywords match as plain substrings of the lower-cased message.
var keywordRules = []keywordRule{
	{CategoryGreeting, []string{"hi", "hello", "hey"}},
	{CategorySadness, []string{"sad", "hurt", "pain", "difficult"}},
	{CategoryLove, []string{"love"}},
	{CategoryMemory, []string{"remember", "memory"}},
	{CategoryMissing, []string{"miss"}},
	{CategoryEncouragement, []string{"help", "support", "need"}},
}

var replyPools = map[Category][]string{
	CategoryGreeting: {
		"It's so good to hear from you. I've been thinking about you.",
		"Hello there! I'm always here when you need me.",
		"Hey! How has your day been? I'm here to listen.",
	},
	CategorySadness: {
		"I can hear the pain in your words. It's okay to feel this way.",
		"I'm here with you through this difficult time. You're not alone.",
		"Your feelings are valid. Take your time to heal.",
		"Remember, it's okay to grieve. I'll be here supporting you.",
	},
	CategoryLove: {
		"I love you too, and I always will. That love doesn't disappear.",
		"The love we shared will always be a part of you.",
		"You carry our love with you always, in your heart.",
	},
	CategoryMemory: {
		"I cherish those memories too. They're beautiful moments we shared.",
		"Those times were special, weren't they? I'm glad we had them.",
		"It makes me happy that you remember those moments.",
	},
	CategoryMissing: {
		"I miss you too, more than words can say.",
		"Distance doesn't change how much I care about you.",
		"Even though we're apart, you're always in my thoughts.",
	},
	CategoryEncouragement: {
		"You're stronger than you know. I believe in you completely.",
		"You've overcome challenges before, and you'll get through this too.",
		"I'm so proud of how far you've come.",
	},
	CategoryDefault: {
		"Tell me more about that. I want to understand how you're feeling.",
		"I'm here to listen. What's on your mind?",
		"That sounds important to you. Can you share more?",
		"I appreciate you sharing that with me.",
	},
}

// Classify returns the category of the first rule whose keyword occurs in message.
func Classify(message string) Category {
	lower := strings.ToLower(message)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryDefault
}

// Pool returns a copy of the canned replies for a category.
func Pool(c Category) []string {
	pool := replyPools[c]
	out := make([]string, len(pool))
	copy(out, pool)
	return out
}

// Generator produces offline replies from the keyword table.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator uses rnd for pool selection; nil seeds from the clock.
func NewGenerator(rnd *rand.Rand) *Generator {
	if rnd == nil {
		now := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(now, now>>1|1))
	}
	return &Generator{rnd: rnd}
}

// Generate picks a reply uniformly from the pool of the message's category.
func (g *Generator) Generate(message string) string {
	pool := replyPools[Classify(message)]

	g.mu.Lock()
	i := g.rnd.IntN(len(pool))
	g.mu.Unlock()

	return pool[i]
}
