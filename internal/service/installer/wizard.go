package installer

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
)

// Step is a single screen of the setup wizard. Returning a nil Step from
// Update moves the wizard on.
type Step interface {
	Init() tea.Cmd
	Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd)
	View(state *InstallState) string
}

type model struct {
	steps       []Step
	currentStep int
	state       *InstallState
	quitting    bool
	width       int
	height      int
}

func newModel(steps []Step) model {
	return model{
		steps: steps,
		state: NewInstallState(),
	}
}

func (m model) Init() tea.Cmd {
	if len(m.steps) > 0 {
		return m.steps[0].Init()
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.currentStep >= len(m.steps) {
		return m, tea.Quit
	}

	next, cmd := m.steps[m.currentStep].Update(msg, m.state, m.width, m.height)
	if next != nil {
		m.steps[m.currentStep] = next
		return m, cmd
	}

	return m.advance()
}

// advance moves past finished steps, letting skipped ones complete without
// waiting for a key press.
func (m model) advance() (tea.Model, tea.Cmd) {
	for {
		m.currentStep++
		if m.currentStep >= len(m.steps) {
			return m, tea.Quit
		}
		if next, _ := m.steps[m.currentStep].Update(nil, m.state, m.width, m.height); next != nil {
			return m, m.steps[m.currentStep].Init()
		}
	}
}

func (m model) View() string {
	if m.quitting {
		return "Setup cancelled.\n"
	}
	if m.currentStep >= len(m.steps) {
		return "Configuration complete!\n"
	}
	return titleStyle.Render("Setting up TuskMem 🦣") + "\n\n" + m.steps[m.currentStep].View(m.state)
}

// RunWizard runs the interactive setup and returns the collected settings.
func RunWizard() (*InstallState, error) {
	p := tea.NewProgram(newModel(getSteps()), tea.WithAltScreen())
	m, err := p.Run()
	if err != nil {
		return nil, err
	}

	final := m.(model)
	if final.quitting {
		return nil, fmt.Errorf("setup interrupted")
	}
	return final.state, nil
}
