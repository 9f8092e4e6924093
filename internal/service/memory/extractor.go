package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/retry"
	"github.com/sandevgo/tuskmem/pkg/tokens"
)

const (
	defaultHistoryLimit = 200
	defaultWindowTokens = 3000
	extractionSystem    = "You are a knowledge extraction system. Output only valid JSON."
)

// DefaultMemoryTypes are used when a job carries no type restriction.
var DefaultMemoryTypes = []string{"preference", "user_fact", "project", "instruction"}

var _ core.ExtractionTrigger = (*Extractor)(nil)

// Extractor turns a finished conversation into stored memories. Facts are
// keyed by a hash of their normalised text so re-running over the same
// history rewrites instead of duplicating.
type Extractor struct {
	messages     core.MessagesRepository
	store        core.MemoryStore
	generator    core.ReplyGenerator
	retrier      *retry.Retrier
	now          func() time.Time
	HistoryLimit int
	WindowTokens int
}

func NewExtractor(messages core.MessagesRepository, store core.MemoryStore, generator core.ReplyGenerator, retrier *retry.Retrier) *Extractor {
	if retrier == nil {
		retrier = retry.NewDefaultRetrier()
	}
	return &Extractor{
		messages:     messages,
		store:        store,
		generator:    generator,
		retrier:      retrier,
		now:          time.Now,
		HistoryLimit: defaultHistoryLimit,
		WindowTokens: defaultWindowTokens,
	}
}

func (e *Extractor) Extract(ctx context.Context, conversationID string, params core.ExtractionParams) error {
	logger := log.FromCtx(ctx).With().
		Str("conversation", conversationID).
		Str("user", params.UserID).
		Logger()

	if params.UserID == "" {
		return fmt.Errorf("extraction for %s: user id is required", conversationID)
	}

	history, err := e.messages.GetMessages(ctx, conversationID, e.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	transcript := dialogue(history)
	if len(transcript) == 0 {
		logger.Debug().Msg("nothing to extract")
		return nil
	}

	types := params.MemoryTypes
	if len(types) == 0 {
		types = DefaultMemoryTypes
	}
	namespace := core.UserNamespace(params.UserID)
	if params.Target != "" {
		namespace = append(namespace, params.Target)
	}

	windows := tokens.Window(transcript, e.WindowTokens, formatLine)
	saved := 0
	for _, window := range windows {
		facts, err := e.extractFacts(ctx, window, types)
		if err != nil {
			return err
		}
		for _, f := range facts {
			if err := e.store.Put(ctx, core.MemoryItem{
				Namespace: namespace,
				Key:       FactKey(f.Fact),
				Content:   strings.TrimSpace(f.Fact),
				Kind:      f.Category,
				CreatedAt: e.now().UTC(),
			}); err != nil {
				return fmt.Errorf("store memory: %w", err)
			}
			saved++
		}
	}

	logger.Info().Int("windows", len(windows)).Int("memories", saved).Msg("memory extraction finished")
	return nil
}

func (e *Extractor) extractFacts(ctx context.Context, window []core.Message, types []string) ([]extractedFact, error) {
	prompt := buildExtractionPrompt(formatConversation(window), types)

	var reply core.Message
	err := e.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		reply, err = e.generator.Generate(ctx, extractionSystem, []core.Message{core.NewUserMessage(prompt)}, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	facts, err := parseExtractionResponse(reply.Content)
	if err != nil {
		return nil, err
	}
	return filterFacts(facts, types), nil
}

type extractedFact struct {
	Fact     string `json:"fact"`
	Category string `json:"category"`
}

// FactKey derives the storage key of a fact from its normalised text.
func FactKey(fact string) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(fact)), " ")
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])
}

// dialogue keeps what the user and assistant said to each other.
func dialogue(history []core.Message) []core.Message {
	out := make([]core.Message, 0, len(history))
	for _, m := range history {
		switch m.Kind {
		case core.KindUser, core.KindText, core.KindToolCalls:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, m)
			}
		}
	}
	return out
}

func formatLine(m core.Message) string {
	return strings.ToUpper(m.Role()) + ": " + m.Content
}

func formatConversation(msgs []core.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(formatLine(m))
		b.WriteByte('\n')
	}
	return b.String()
}

func buildExtractionPrompt(conversation string, types []string) string {
	return fmt.Sprintf(
		`Extract distinct, permanent facts from the conversation. Output format: JSON list of objects {fact, category}. Categories: [%s]. Rules: 1. Ignore greetings and small talk. 2. Facts must be self-contained (replace "he" with "User"). 3. Output [] when nothing is worth remembering. Conversation: %s`,
		strings.Join(types, ", "),
		conversation,
	)
}

func parseExtractionResponse(content string) ([]extractedFact, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var facts []extractedFact
	if err := json.Unmarshal([]byte(jsonStr), &facts); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}
	return facts, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}

func filterFacts(facts []extractedFact, types []string) []extractedFact {
	out := facts[:0]
	seen := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		if strings.TrimSpace(f.Fact) == "" || !slices.Contains(types, f.Category) {
			continue
		}
		key := FactKey(f.Fact)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
