package stresstui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/macropower/stsync/pkg/stress"
)

// RunModel shows a spinner for every running scenario and a progress bar
// over all scenarios of the run.
type RunModel struct {
	err       error
	caser     cases.Caser
	running   []string
	completed []string
	failed    []string
	spinner   spinner.Model
	progress  progress.Model
	total     int
	ops       int64
	width     int
	height    int
	mu        sync.RWMutex
	done      bool
}

func NewRunModel() *RunModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	s := spinner.New()
	s.Style = defaultStyles.spinner

	return &RunModel{
		caser:     cases.Title(language.English),
		running:   []string{},
		completed: []string{},
		failed:    []string{},
		spinner:   s,
		progress:  p,
	}
}

func (m *RunModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.progress.SetPercent(0))
}

// displayName turns a scenario name like "acquire_all" into "Acquire All".
func (m *RunModel) displayName(scenario string) string {
	return m.caser.String(strings.ReplaceAll(scenario, "_", " "))
}

//nolint:ireturn // Third-party.
func (m *RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		if keyExits(msg) {
			return m, tea.Quit
		}

	case TeaMsgWriteLog:
		return m, writeLog(msg, m.width)

	case stress.EventSetScenarioTotal:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.total = int(msg)

	case stress.EventRunningScenario:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.running = append(m.running, string(msg))

	case stress.EventScenarioDone:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.running = slices.DeleteFunc(m.running, func(s string) bool {
			return s == msg.Scenario
		})
		m.completed = append(m.completed, msg.Scenario)
		m.ops += msg.Ops

		line := fmt.Sprintf("%s %s %s", defaultStyles.check, m.displayName(msg.Scenario),
			defaultStyles.detail.Render(fmt.Sprintf("%d ops in %s", msg.Ops, msg.Elapsed.Round(time.Millisecond))))
		if msg.Err != nil {
			m.failed = append(m.failed, msg.Scenario)
			line = fmt.Sprintf("%s %s", defaultStyles.cross, m.displayName(msg.Scenario))
		}

		var percent float64
		if m.total > 0 {
			percent = float64(len(m.completed)) / float64(m.total)
		}

		return m, tea.Batch(
			m.progress.SetPercent(percent),
			tea.Println(line),
		)

	case stress.EventDone:
		m.mu.Lock()
		defer m.mu.Unlock()

		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.done = true
		}

		return m, teaQuit()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case progress.FrameMsg:
		newModel, cmd := m.progress.Update(msg)
		if newModel, ok := newModel.(progress.Model); ok {
			m.progress = newModel
		}

		return m, cmd

	case error:
		m.mu.Lock()
		defer m.mu.Unlock()

		m.err = msg

		return m, teaQuit()
	}

	return m, nil
}

func (m *RunModel) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return getErrorMessage(m.err, m.width, m.total)
	}

	if m.done {
		return defaultStyles.done.Render(
			fmt.Sprintf("Done! Ran %d scenarios, %d operations.\n", len(m.completed), m.ops),
		)
	}

	w := lipgloss.Width(strconv.Itoa(m.total))
	count := fmt.Sprintf(" %*d/%*d", w, len(m.completed), w, m.total)

	progRendered := defaultStyles.progress.Render(m.progress.View() + count)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(progRendered)))
	progOut := progRendered + gap + "\n"

	spinners := make([]string, 0, len(m.running))
	for _, scenario := range m.running {
		spin := m.spinner.View() + " "
		cellsAvail := max(0, m.width-lipgloss.Width(spin))

		name := defaultStyles.itemName.Render(m.displayName(scenario))
		info := lipgloss.NewStyle().MaxWidth(cellsAvail).Render("Running " + name)

		gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(spin+info)))
		spinners = append(spinners, spin+info+gap)
	}

	return strings.Join(spinners, "\n") + "\n" + progOut
}
