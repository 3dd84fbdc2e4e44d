// Package ask provides the question view: input, cited answer and the
// passages it was drawn from.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/lectern/internal/adapters/driving/repl"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/lectern/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lectern/internal/core/domain"
	"github.com/custodia-labs/lectern/internal/core/ports/driving"
)

// ErrNoQueryService indicates that no query service was provided.
var ErrNoQueryService = errors.New("query service is required")

// View is the question view.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	list      *list.PassageList
	statusbar *status.Bar

	queryService    driving.QueryService
	responseService driving.ResponseService
	ctx             context.Context

	result      *domain.QueryResult
	response    *domain.AIResponse
	sourcesOnly bool

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a question, false = reading the answer
}

// NewView creates a new question view. responseService may be nil, in
// which case only passages are shown.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	queryService driving.QueryService,
	responseService driving.ResponseService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:          s,
		keymap:          km,
		input:           input.NewQuestionInput(s),
		list:            list.NewPassageList(s),
		statusbar:       status.NewBar(s, km),
		queryService:    queryService,
		responseService: responseService,
		ctx:             context.Background(),
		width:           80,
		height:          24,
		focusInput:      true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the question view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		return v, v.handleSearchCompleted(msg)

	case messages.AnswerCompleted:
		v.handleAnswerCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.submit(v.input.Value())
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch msg.String() {
	case "up", "k":
		v.list.MoveUp()
	case "down", "j":
		v.list.MoveDown()
	case "n":
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	}
	return v, nil
}

// submit parses the line with the session grammar, so book: and author:
// prefixes and the sources command work here too.
func (v *View) submit(line string) tea.Cmd {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	command, err := repl.Parse(line)
	if err != nil {
		v.setError(err)
		return nil
	}

	var query string
	var filters repl.Filters
	v.sourcesOnly = false
	switch c := command.(type) {
	case repl.Ask:
		query, filters = c.Query, c.Filters
	case repl.Stream:
		query, filters = c.Query, c.Filters
	case repl.Sources:
		query, filters = c.Query, c.Filters
		v.sourcesOnly = true
	case repl.Stats, repl.Books:
		return changeView(messages.ViewLibrary)
	case repl.Help:
		return changeView(messages.ViewHelp)
	case repl.Quit:
		return tea.Quit
	default:
		return nil
	}

	v.err = nil
	v.result = nil
	v.response = nil
	v.list.SetResults(nil)
	v.focusInput = false
	v.input.Blur()
	v.statusbar.SetMessage("")
	v.statusbar.SetState(status.StateSearching)
	return v.performQuery(query, filters.Options())
}

func changeView(view messages.ViewType) tea.Cmd {
	return func() tea.Msg {
		return messages.ViewChanged{View: view}
	}
}

func (v *View) performQuery(query string, opts domain.QueryOptions) tea.Cmd {
	return func() tea.Msg {
		if v.queryService == nil {
			return messages.ErrorOccurred{Err: ErrNoQueryService}
		}
		result, err := v.queryService.ProcessQuery(v.ctx, query, opts)
		return messages.SearchCompleted{Result: result, Err: err}
	}
}

func (v *View) performAnswer(result *domain.QueryResult) tea.Cmd {
	return func() tea.Msg {
		resp, err := v.responseService.Generate(v.ctx, result)
		return messages.AnswerCompleted{Response: resp, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) tea.Cmd {
	if msg.Err != nil {
		v.setError(msg.Err)
		return nil
	}

	v.err = nil
	v.result = msg.Result
	v.list.SetResults(msg.Result.Results)
	v.statusbar.SetResultCount(len(msg.Result.Results))

	if !msg.Result.HasResults() || v.sourcesOnly {
		v.statusbar.SetState(status.StateResults)
		return nil
	}
	if v.responseService == nil {
		v.statusbar.SetState(status.StateResults)
		v.statusbar.SetMessage("Answers disabled: no language model configured")
		return nil
	}
	v.statusbar.SetState(status.StateAnswering)
	return v.performAnswer(msg.Result)
}

func (v *View) handleAnswerCompleted(msg messages.AnswerCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	v.err = nil
	v.response = msg.Response
	v.statusbar.SetState(status.StateResults)
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the question view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections, v.styles.Title.Render("Lectern"), "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.result != nil {
		sections = append(sections, v.renderFilters()...)
		if !v.result.HasResults() {
			sections = append(sections, v.styles.Muted.Render("No relevant passages found in the library."), "")
		}
	}

	if v.response != nil {
		sections = append(sections, v.renderAnswer(), "")
	}

	if v.result.HasResults() {
		sections = append(sections, v.list.View())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderFilters() []string {
	var notes []string
	if f := v.result.Filters; f.Unmatched {
		if f.Book != "" {
			notes = append(notes, v.styles.Warning.Render(fmt.Sprintf("No book matches %q.", f.Book)))
		}
		if f.Author != "" {
			notes = append(notes, v.styles.Warning.Render(fmt.Sprintf("No author matches %q.", f.Author)))
		}
	}
	if v.result.Context.Truncated {
		notes = append(notes, v.styles.Muted.Render(
			fmt.Sprintf("Only the first %d sources fit the context budget.", len(v.result.Context.ChunkIDs))))
	}
	if len(notes) > 0 {
		notes = append(notes, "")
	}
	return notes
}

func (v *View) renderAnswer() string {
	width := v.width - 4
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	b.WriteString(v.response.Answer)
	if v.response.Truncated {
		b.WriteString("\n\n" + domain.TruncationNotice)
	}
	answer := v.styles.Answer.Width(width).Render(b.String())

	if len(v.response.Citations) == 0 {
		return answer
	}
	lines := make([]string, 0, len(v.response.Citations)+2)
	lines = append(lines, answer, "", v.styles.Subtitle.Render("Citations"))
	for i, c := range v.response.Citations {
		lines = append(lines, v.styles.Citation.Render(fmt.Sprintf("  %d. %s", i+1, c)))
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height/2)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the text in the input.
func (v *View) Question() string {
	return v.input.Value()
}

// SetQuestion sets the text in the input.
func (v *View) SetQuestion(question string) {
	v.input.SetValue(question)
}

// Result returns the last retrieval result.
func (v *View) Result() *domain.QueryResult {
	return v.result
}

// Response returns the last generated answer.
func (v *View) Response() *domain.AIResponse {
	return v.response
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset returns the view to an empty question.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.result = nil
	v.response = nil
	v.err = nil
	v.statusbar.Clear()
}
