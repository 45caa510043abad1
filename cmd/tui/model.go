// Package tui is a terminal client for the board.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Laisky/sparkboard/internal/board"
)

// ViewState represents the current view state of the TUI
type ViewState int

const (
	// ViewFeed lists the posts, newest first
	ViewFeed ViewState = iota
	// ViewCompose is the new post form
	ViewCompose
	// ViewSummary shows the AI synopsis of recent posts
	ViewSummary
	// ViewRunning is shown while a submission is in flight
	ViewRunning
	// ViewResult shows the outcome of a submission
	ViewResult
)

const (
	inputNickname = iota
	inputContent
	inputImage
)

// Board is what the TUI needs from the board services.
type Board interface {
	ReadAll(ctx context.Context) ([]board.Post, error)
	Submit(ctx context.Context, req board.SubmitRequest) (*board.Post, error)
	ValidateImage(mediaType string, size int64) error
	Summarize(ctx context.Context) string
}

// PostItem is one post in the feed list
type PostItem struct {
	post board.Post
}

// Title returns the author line (implements list.Item)
func (p PostItem) Title() string {
	return fmt.Sprintf("%s · %s", p.post.Nickname, p.post.CreatedTime().Local().Format(time.DateTime))
}

// Description returns the first line of the content (implements list.Item)
func (p PostItem) Description() string {
	desc, _, _ := strings.Cut(p.post.Content, "\n")
	if p.post.ImageURL != "" {
		desc = "🖼  " + desc
	}
	return desc
}

// FilterValue returns the filter value (implements list.Item)
func (p PostItem) FilterValue() string { return p.post.Nickname + " " + p.post.Content }

// CommandResult represents the result of a submission
type CommandResult struct {
	Success bool
	Message string
	Details string
}

// PostsMsg replaces the feed, sent on load and on every store change.
type PostsMsg struct {
	Posts []board.Post
	Err   error
}

type submitDoneMsg struct {
	post *board.Post
	err  error
}

type summaryMsg string

// Model is the main TUI model following the Bubble Tea architecture
type Model struct {
	board Board
	ctx   context.Context

	state ViewState

	feed list.Model

	inputs     []textinput.Model
	focusIndex int
	// imageErr is the validation feedback for the selected image path
	imageErr string

	spinner spinner.Model
	result  *CommandResult
	summary string
	loading bool
	err     error

	width  int
	height int

	quitting bool
}

// keyMap defines the key bindings for the TUI
type keyMap struct {
	Compose key.Binding
	Summary key.Binding
	Refresh key.Binding
	Enter   key.Binding
	Back    key.Binding
	Tab     key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Compose: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new post"),
	),
	Summary: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "summary"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next field"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewModel creates the TUI bound to b
func NewModel(ctx context.Context, b Board) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(primaryColor).
		BorderForeground(primaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(secondaryColor)

	feed := list.New(nil, delegate, 0, 0)
	feed.Title = "Sparkboard"
	feed.SetShowStatusBar(true)
	feed.SetFilteringEnabled(false)
	feed.Styles.Title = headerStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		board:   b,
		ctx:     ctx,
		state:   ViewFeed,
		feed:    feed,
		spinner: sp,
	}
}

// createComposeInputs creates the input fields of a new post
func createComposeInputs() []textinput.Model {
	inputs := make([]textinput.Model, 3)

	inputs[inputNickname] = textinput.New()
	inputs[inputNickname].Placeholder = board.DefaultNickname
	inputs[inputNickname].Focus()
	inputs[inputNickname].CharLimit = board.MaxNicknameLength
	inputs[inputNickname].Width = 30
	inputs[inputNickname].Prompt = "👤 "
	inputs[inputNickname].PromptStyle = inputLabelStyle

	inputs[inputContent] = textinput.New()
	inputs[inputContent].Placeholder = "what's on your mind?"
	inputs[inputContent].CharLimit = board.MaxContentLength
	inputs[inputContent].Width = 60
	inputs[inputContent].Prompt = "✏️ "
	inputs[inputContent].PromptStyle = inputLabelStyle

	inputs[inputImage] = textinput.New()
	inputs[inputImage].Placeholder = "/path/to/image.png (optional)"
	inputs[inputImage].CharLimit = 256
	inputs[inputImage].Width = 50
	inputs[inputImage].Prompt = "🖼 "
	inputs[inputImage].PromptStyle = inputLabelStyle

	return inputs
}

// Init loads the feed
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadPosts(),
	)
}

func (m Model) loadPosts() tea.Cmd {
	return func() tea.Msg {
		posts, err := m.board.ReadAll(m.ctx)
		return PostsMsg{Posts: posts, Err: err}
	}
}

func (m Model) loadSummary() tea.Cmd {
	return func() tea.Msg {
		return summaryMsg(m.board.Summarize(m.ctx))
	}
}

func (m Model) submit(req board.SubmitRequest) tea.Cmd {
	return func() tea.Msg {
		post, err := m.board.Submit(m.ctx, req)
		return submitDoneMsg{post: post, err: err}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.feed.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case ViewFeed:
			return m.handleFeed(msg)
		case ViewCompose:
			return m.handleCompose(msg)
		case ViewSummary, ViewResult:
			return m.handleBackView(msg)
		case ViewRunning:
			// Don't handle input while running
			return m, nil
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case PostsMsg:
		m.err = msg.Err
		if msg.Err == nil {
			items := make([]list.Item, 0, len(msg.Posts))
			for _, p := range msg.Posts {
				items = append(items, PostItem{post: p})
			}
			cmds = append(cmds, m.feed.SetItems(items))
		}
		return m, tea.Batch(cmds...)

	case summaryMsg:
		m.loading = false
		m.summary = string(msg)
		return m, nil

	case submitDoneMsg:
		m.state = ViewResult
		m.result = describeSubmit(msg)
		return m, nil
	}

	if m.state == ViewFeed {
		m.feed, cmd = m.feed.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleFeed handles key events in the feed
func (m Model) handleFeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Compose):
		m.state = ViewCompose
		m.inputs = createComposeInputs()
		m.focusIndex = inputNickname
		m.imageErr = ""
		return m, textinput.Blink

	case key.Matches(msg, keys.Summary):
		m.state = ViewSummary
		m.summary = ""
		m.loading = true
		return m, m.loadSummary()

	case key.Matches(msg, keys.Refresh):
		return m, m.loadPosts()
	}

	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

// handleCompose handles key events in the new post form
func (m Model) handleCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.state = ViewFeed
		return m, nil

	case key.Matches(msg, keys.Tab):
		if m.focusIndex == inputImage {
			m.imageErr = m.checkImage()
		}
		m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
		for i := range m.inputs {
			if i == m.focusIndex {
				m.inputs[i].Focus()
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, nil

	case key.Matches(msg, keys.Enter):
		req := board.SubmitRequest{
			Nickname: m.inputs[inputNickname].Value(),
			Content:  m.inputs[inputContent].Value(),
		}
		if path := strings.TrimSpace(m.inputs[inputImage].Value()); path != "" {
			img, err := board.OpenImageFile(path)
			if err != nil {
				m.imageErr = "cannot open image: " + err.Error()
				return m, nil
			}
			req.Image = img
		}

		m.state = ViewRunning
		return m, tea.Batch(m.spinner.Tick, m.submit(req))
	}

	// Update the focused input
	if m.focusIndex < len(m.inputs) {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}

	return m, nil
}

// checkImage validates the selected image path and returns the feedback to show.
func (m Model) checkImage() string {
	path := strings.TrimSpace(m.inputs[inputImage].Value())
	if path == "" {
		return ""
	}

	img, err := board.OpenImageFile(path)
	if err != nil {
		return "cannot open image: " + err.Error()
	}
	if err := m.board.ValidateImage(img.MediaType, img.Size); err != nil {
		if serr, ok := board.AsSubmissionError(err); ok {
			return "image " + serr.Message
		}
		return err.Error()
	}

	return ""
}

// handleBackView handles key events in the summary and result views
func (m Model) handleBackView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Enter):
		m.state = ViewFeed
		m.result = nil
		return m, nil

	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// describeSubmit turns a submission outcome into a result screen
func describeSubmit(msg submitDoneMsg) *CommandResult {
	if msg.err == nil {
		return &CommandResult{
			Success: true,
			Message: "Posted!",
			Details: fmt.Sprintf("%s: %s", msg.post.Nickname, msg.post.Content),
		}
	}

	serr, ok := board.AsSubmissionError(msg.err)
	if !ok {
		return &CommandResult{Message: "Submission failed", Details: msg.err.Error()}
	}

	switch serr.Kind {
	case board.KindRateLimit:
		return &CommandResult{
			Message: "Slow down",
			Details: fmt.Sprintf("You can post again in %d seconds.", serr.RemainingSeconds),
		}
	case board.KindModeration:
		return &CommandResult{Message: "Rejected by moderation", Details: serr.Message}
	case board.KindValidation:
		return &CommandResult{Message: "Invalid post", Details: serr.Message}
	default:
		return &CommandResult{Message: "Could not save the post", Details: serr.Message}
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return subtitleStyle.Render("Goodbye! 👋\n")
	}

	switch m.state {
	case ViewFeed:
		return m.renderFeed()
	case ViewCompose:
		return m.renderCompose()
	case ViewSummary:
		return m.renderSummary()
	case ViewRunning:
		return m.renderRunning()
	case ViewResult:
		return m.renderResult()
	default:
		return "Unknown state"
	}
}

// renderFeed renders the post list
func (m Model) renderFeed() string {
	parts := []string{m.feed.View()}
	if m.err != nil {
		parts = append(parts, errorStyle.Render("❌ "+m.err.Error()))
	}
	if len(m.feed.Items()) == 0 && m.err == nil {
		parts = append(parts, subtitleStyle.Render(board.SummaryNoPosts))
	}
	parts = append(parts, helpStyle.Render("↑/↓ scroll • n new post • s summary • r refresh • q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderCompose renders the new post form
func (m Model) renderCompose() string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("✏️ New Post") + "\n\n")

	labels := []string{"Nickname:", "Message:", "Image:"}
	for i, input := range m.inputs {
		sb.WriteString(inputLabelStyle.Render(labels[i]) + "\n")
		sb.WriteString(input.View() + "\n")
		if i == inputImage && m.imageErr != "" {
			sb.WriteString(errorStyle.Render(m.imageErr) + "\n")
		}
		sb.WriteString("\n")
	}

	n := len([]rune(m.inputs[inputContent].Value()))
	counter := fmt.Sprintf("%d/%d", n, board.MaxContentLength)
	sb.WriteString(counterStyle(n, board.MaxContentLength).Render(counter) + "\n")
	sb.WriteString(helpStyle.Render("tab: next field • enter: post • esc: back"))

	return boxStyle.Render(sb.String())
}

// renderSummary renders the AI synopsis
func (m Model) renderSummary() string {
	body := m.summary
	if m.loading {
		body = m.spinner.View() + " Summarizing recent posts..."
	}

	return boxStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("✨ What people are saying"),
			body,
			helpStyle.Render("enter/esc: back • q: quit"),
		),
	)
}

// renderRunning renders the running state view
func (m Model) renderRunning() string {
	return boxStyle.Render(
		lipgloss.JoinVertical(lipgloss.Center,
			m.spinner.View()+" Posting...",
			subtitleStyle.Render("Checking and saving your message"),
		),
	)
}

// renderResult renders the result view
func (m Model) renderResult() string {
	if m.result == nil {
		return "No result"
	}

	var statusStyle lipgloss.Style
	var statusIcon string
	if m.result.Success {
		statusStyle = successStyle
		statusIcon = "✅"
	} else {
		statusStyle = errorStyle
		statusIcon = "❌"
	}

	title := statusStyle.Render(statusIcon + " " + m.result.Message)
	details := subtitleStyle.Render(m.result.Details)
	help := helpStyle.Render("enter/esc: back to feed • q: quit")

	return boxStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			details,
			"",
			help,
		),
	)
}
