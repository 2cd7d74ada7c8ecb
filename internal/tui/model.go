package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"saferag/internal/domain"
	"saferag/internal/service"
)

// AskPort is the TUI-facing subset of the answering pipeline.
type AskPort interface {
	Ask(ctx context.Context, query string) (*service.Answer, error)
	Feedback(ctx context.Context, queryID string, fb domain.Feedback) error
}

type answerMsg struct {
	ans *service.Answer
	err error
}

type feedbackMsg struct {
	fb  domain.Feedback
	err error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	port     AskPort
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	summary  string
	status   string
	cursor   int
	ready    bool
	pending  bool
}

// New creates a new TUI model instance. summary is shown under the header.
func New(port AskPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{port: port, input: ti, viewport: vp, summary: summary, status: "Ready. ctrl+p / ctrl+n rate the last answer."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) askCmd(query string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.port.Ask(context.Background(), query)
		return answerMsg{ans: ans, err: err}
	}
}

func (m Model) feedbackCmd(id string, fb domain.Feedback) tea.Cmd {
	return func() tea.Msg {
		return feedbackMsg{fb: fb, err: m.port.Feedback(context.Background(), id, fb)}
	}
}

// Update handles key, window and async result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			m.answer = msg.ans
			m.cursor = 0
			m.status = fmt.Sprintf("Answered %q (%s)", msg.ans.Query, msg.ans.Outcome)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case feedbackMsg:
		if msg.err != nil {
			m.status = "Feedback failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Feedback %q saved.", msg.fb)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.askCmd(q)
		case "ctrl+p", "ctrl+n":
			if m.answer == nil || m.answer.ID == "" {
				m.status = "Nothing to rate yet."
				return m, nil
			}
			fb := domain.FeedbackUp
			if msg.String() == "ctrl+n" {
				fb = domain.FeedbackDown
			}
			return m, m.feedbackCmd(m.answer.ID, fb)
		case "down":
			if m.answer != nil && len(m.answer.Results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Results)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.answer.Results)) % len(m.answer.Results)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("SafeRAG")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	if m.answer.Verdict.IsUnsafe {
		b.WriteString(warningStyle.Render("Safety notice"))
		b.WriteString("\n")
		for _, r := range m.answer.Verdict.Reasons {
			b.WriteString("  - " + r + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(m.answer.Text)
	if len(m.answer.Results) == 0 {
		return b.String()
	}
	r := m.answer.Results[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  [%s]  score=%.3f\n\n", m.cursor+1, len(m.answer.Results), r.Source, r.Score)
	b.WriteString(renderSource(r.Text, m.answer.Query, m.answer.Text))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	wordRe         = regexp.MustCompile(`\p{L}{3,}`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// renderSource shows a retrieved chunk with the sentence that most likely
// backs the answer highlighted.
func renderSource(text, query, answer string) string {
	sentences, best := supportingSentence(text, query, answer)
	if best < 0 {
		return text
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

// supportingSentence splits a chunk into sentences and picks the one sharing
// the most words with the question and the answer. Question words count
// double. best is -1 when the chunk is blank or nothing overlaps.
func supportingSentence(text, query, answer string) (sentences []string, best int) {
	if strings.TrimSpace(text) == "" {
		return nil, -1
	}
	for _, s := range sentenceRe.FindAllString(text, -1) {
		sentences = append(sentences, strings.TrimSpace(s))
	}
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}

	weights := map[string]int{}
	for w := range words(answer) {
		weights[w] = 1
	}
	for w := range words(query) {
		weights[w] = 2
	}

	best, top := -1, 0
	for i, sent := range sentences {
		score := 0
		for w := range words(sent) {
			score += weights[w]
		}
		if score > top {
			best, top = i, score
		}
	}
	return sentences, best
}

// words returns the distinct lower-cased words of s, ignoring ones shorter
// than three letters.
func words(s string) map[string]struct{} {
	found := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(found))
	for _, w := range found {
		set[w] = struct{}{}
	}
	return set
}
