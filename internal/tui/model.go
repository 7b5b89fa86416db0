package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"pdfqa/internal/answerer"
	"pdfqa/internal/summarizer"
)

// Asker is the TUI-facing subset of a service session.
type Asker interface {
	Ask(ctx context.Context, question string) (answerer.Result, error)
}

type pane int

const (
	paneAnswer pane = iota
	paneSources
)

// answerMsg carries the outcome of one question back into Update.
type answerMsg struct {
	question string
	result   answerer.Result
	err      error
	took     time.Duration
}

// Model is the Bubble Tea model for the question-answering screen.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	asker    Asker
	logger   *zap.Logger
	timeout  time.Duration
	file     string
	summary  string
	input    textinput.Model
	viewport viewport.Model
	result   answerer.Result
	question string
	status   string
	pane     pane
	cursor   int
	busy     bool
	ready    bool
}

// New creates a model for the document at path. Questions run under ctx and
// are cancelled when the user quits; timeout bounds each question, zero means
// no limit.
func New(ctx context.Context, asker Asker, path, summary string, timeout time.Duration, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		cancel:   cancel,
		asker:    asker,
		logger:   logger,
		timeout:  timeout,
		file:     filepath.Base(path),
		summary:  summary,
		input:    ti,
		viewport: vp,
		status:   "Loaded. Ask anything about the document.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Error("question failed", zap.String("question", msg.question), zap.Error(msg.err))
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.result = msg.result
		m.question = msg.question
		m.cursor = 0
		m.pane = paneAnswer
		m.status = fmt.Sprintf("Answered in %s with %d sources. Tab shows sources.", msg.took.Round(time.Millisecond), len(msg.result.Sources))
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.cancel()
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Thinking about %q...", q)
			m.input.SetValue("")
			return m, m.ask(q)
		case "tab":
			if len(m.result.Sources) > 0 {
				if m.pane == paneAnswer {
					m.pane = paneSources
				} else {
					m.pane = paneAnswer
				}
				m.refresh()
			}
			return m, nil
		case "down":
			if n := len(m.result.Sources); n > 0 {
				m.pane = paneSources
				m.cursor = (m.cursor + 1) % n
				m.refresh()
				return m, nil
			}
		case "up":
			if n := len(m.result.Sources); n > 0 {
				m.pane = paneSources
				m.cursor = (m.cursor - 1 + n) % n
				m.refresh()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	parent, asker, timeout := m.ctx, m.asker, m.timeout
	return func() tea.Msg {
		ctx := parent
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		res, err := asker.Ask(ctx, question)
		return answerMsg{question: question, result: res, err: err, took: time.Since(start)}
	}
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("pdfqa: " + m.file)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	body := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

func (m Model) render() string {
	if m.question == "" {
		return "No answer yet."
	}
	if m.pane == paneSources && len(m.result.Sources) > 0 {
		s := m.result.Sources[m.cursor]
		title := fmt.Sprintf("Source %d/%d  chunk #%d  distance=%.3f", m.cursor+1, len(m.result.Sources), s.Index, s.Distance)
		return title + "\n\n" + highlightBestSentence(s.Text, m.question)
	}
	title := lipgloss.NewStyle().Italic(true).Render("Q: " + m.question)
	return title + "\n\n" + m.result.Answer
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, question string) string {
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	best := bestSentence(sentences, question)
	if best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}

// bestSentence returns the position of the sentence sharing the most
// distinct tokens with question, or -1 when nothing overlaps.
func bestSentence(sentences []string, question string) int {
	qTokens := toTokenSet(question)
	best, bestScore := -1, 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func toTokenSet(s string) map[string]struct{} {
	tokens := summarizer.Tokens(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range summarizer.Tokens(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
