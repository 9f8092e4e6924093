package installer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ChoiceStep picks one of a fixed set of values.
type ChoiceStep struct {
	title   string
	envKey  string
	choices []string
	values  []string
	cursor  int
}

func NewChoiceStep(title, envKey string, choices, values []string) *ChoiceStep {
	return &ChoiceStep{title: title, envKey: envKey, choices: choices, values: values}
}

func NewProviderStep() Step {
	return NewChoiceStep("Select your AI Provider:", "LLM_PROVIDER",
		[]string{"OpenRouter", "Anthropic", "OpenAI", "Ollama", "Custom (OpenAI compatible)"},
		[]string{"openrouter", "anthropic", "openai", "ollama", "custom"})
}

func NewChannelStep() Step {
	return NewChoiceStep("Select your Chat Channel:", "ENABLE_TELEGRAM",
		[]string{"Terminal only", "Telegram"},
		[]string{"false", "true"})
}

func (s *ChoiceStep) Init() tea.Cmd {
	return nil
}

func (s *ChoiceStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			state.EnvVars[s.envKey] = s.values[s.cursor]
			return nil, nil
		}
	}
	return s, nil
}

func (s *ChoiceStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.title + "\n\n")
	for i, choice := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render("❯ "+choice) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+choice) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}

// InputStep collects one free-form value. Steps whose skip func reports
// true complete without showing anything.
type InputStep struct {
	input    textinput.Model
	title    string
	envKey   string
	fallback string
	skip     func(*InstallState) bool
}

type inputOption func(*InputStep)

func secret() inputOption {
	return func(s *InputStep) {
		s.input.EchoMode = textinput.EchoPassword
		s.input.EchoCharacter = '•'
	}
}

func withDefault(v string) inputOption {
	return func(s *InputStep) {
		s.fallback = v
		s.input.Placeholder = v
	}
}

func skipUnless(pred func(*InstallState) bool) inputOption {
	return func(s *InputStep) {
		s.skip = func(st *InstallState) bool { return !pred(st) }
	}
}

func NewInputStep(title, envKey, placeholder string, opts ...inputOption) *InputStep {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 255
	ti.Width = 40
	ti.Placeholder = placeholder

	s := &InputStep{input: ti, title: title, envKey: envKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InputStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *InputStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.skip != nil && s.skip(state) {
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		v := strings.TrimSpace(s.input.Value())
		if v == "" {
			v = s.fallback
		}
		state.EnvVars[s.envKey] = v
		return nil, nil
	}
	return s, cmd
}

func (s *InputStep) View(state *InstallState) string {
	return fmt.Sprintf("%s\n\n%s\n\n(press enter to confirm)\n", s.title, s.input.View())
}

func providerIs(names ...string) func(*InstallState) bool {
	return func(st *InstallState) bool {
		for _, n := range names {
			if st.EnvVars["LLM_PROVIDER"] == n {
				return true
			}
		}
		return false
	}
}

func telegramEnabled(st *InstallState) bool {
	return st.EnvVars["ENABLE_TELEGRAM"] == "true"
}

func getSteps() []Step {
	return []Step{
		NewProviderStep(),
		NewInputStep("Enter your OpenRouter API Key:", "OPENROUTER_API_KEY", "sk-or-v1-...", secret(), skipUnless(providerIs("openrouter"))),
		NewInputStep("Enter your Anthropic API Key:", "ANTHROPIC_API_KEY", "sk-ant-...", secret(), skipUnless(providerIs("anthropic"))),
		NewInputStep("Enter your OpenAI API Key:", "OPENAI_API_KEY", "sk-...", secret(), skipUnless(providerIs("openai"))),
		NewInputStep("Enter the Ollama URL:", "OLLAMA_BASE_URL", "", withDefault("http://localhost:11434"), skipUnless(providerIs("ollama"))),
		NewInputStep("Enter the base URL of your OpenAI compatible server:", "CUSTOM_OPENAI_BASE_URL", "http://localhost:8080", skipUnless(providerIs("custom"))),
		NewInputStep("Enter the API key (optional):", "CUSTOM_OPENAI_API_KEY", "", secret(), skipUnless(providerIs("custom"))),
		NewInputStep("Enter the model name:", "LLM_MODEL", "", withDefault("google/gemma-3-27b-it:free")),
		NewInputStep("Who are you? (memory user id)", "TUSK_USER_ID", "", withDefault("owner")),
		NewInputStep("Wait this long after a reply before extracting memories:", "TUSK_MEMORY_DELAY", "", withDefault("30s")),
		NewChannelStep(),
		NewInputStep("Enter your Telegram Bot Token:", "TELEGRAM_TOKEN", "123456789:ABCDEF...", secret(), skipUnless(telegramEnabled)),
		NewInputStep("Enter your Telegram User ID (Owner):", "TELEGRAM_OWNER_ID", "123456789", skipUnless(telegramEnabled)),
	}
}
