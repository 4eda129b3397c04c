package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/authchat/internal/controller"
	"github.com/ashureev/authchat/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	userPrompt      = lipgloss.NewStyle().Bold(true).Render("You:")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("Assistant:")
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	helpStyle       = lipgloss.NewStyle().Faint(true)
)

// chatView is the controller surface the terminal chat drives.
type chatView interface {
	State() controller.ChatState
	Submit(ctx context.Context, input string) error
	Clear()
	SignOut(ctx context.Context, fx controller.Effects)
}

type (
	stateMsg    controller.ChatState
	navigateMsg struct{ route domain.Route }
)

// submitDone carries the outcome of one Submit along with its input.
type submitDone struct {
	text string
	err  error
}

// routeRecorder keeps the first navigation of a sign-out.
type routeRecorder struct{ route domain.Route }

func (r *routeRecorder) Navigate(route domain.Route) {
	if r.route == "" {
		r.route = route
	}
}

func (r *routeRecorder) Notify(domain.Notice) {}

// chatModel renders a chat controller. Controller calls run inside
// commands: the controller publishes state through Program.Send, which
// must not be called from Update.
type chatModel struct {
	ctx   context.Context
	chat  chatView
	input textinput.Model
	spin  spinner.Model
	state controller.ChatState
	width int

	// pending is set from Enter until Submit returns; the loading flag in
	// state arrives asynchronously.
	pending   bool
	signedOut bool
}

func newChatModel(ctx context.Context, chat chatView) chatModel {
	in := textinput.New()
	in.Placeholder = "Type a message"
	in.Prompt = "> "
	in.CharLimit = 0
	in.Width = 60
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return chatModel{ctx: ctx, chat: chat, input: in, spin: s, state: chat.State()}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		return m, nil

	case stateMsg:
		m.state = controller.ChatState(msg)
		return m, nil

	case submitDone:
		m.pending = false
		if errors.Is(msg.err, controller.ErrBusy) && m.input.Value() == "" {
			m.input.SetValue(msg.text)
			m.input.CursorEnd()
		}
		return m, nil

	case navigateMsg:
		if msg.route == domain.RouteSignIn {
			m.signedOut = true
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit

		case "enter":
			text := m.input.Value()
			if strings.TrimSpace(text) == "" || m.pending || m.state.Loading {
				return m, nil
			}
			m.pending = true
			m.input.Reset()
			return m, m.submit(text)

		case "ctrl+l":
			chat := m.chat
			return m, func() tea.Msg {
				chat.Clear()
				return nil
			}

		case "ctrl+o":
			ctx, chat := m.ctx, m.chat
			return m, func() tea.Msg {
				rec := &routeRecorder{}
				chat.SignOut(ctx, rec)
				return navigateMsg{route: rec.route}
			}
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m chatModel) submit(text string) tea.Cmd {
	ctx, chat := m.ctx, m.chat
	return func() tea.Msg {
		return submitDone{text: text, err: chat.Submit(ctx, text)}
	}
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("authchat") + "\n\n")

	for _, msg := range m.state.Messages {
		prompt := userPrompt
		if msg.Sender == domain.SenderAssistant {
			prompt = assistantPrompt
		}
		b.WriteString(prompt + " " + msg.Text + "\n\n")
	}
	if m.state.Loading {
		b.WriteString(assistantPrompt + " " + m.spin.View() + "Thinking\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Enter send · Ctrl+L clear · Ctrl+O sign out · Esc quit"))
	return b.String()
}

// runChat shows the chat view until the user quits or signs out. Leaving
// the view cancels any in-flight request.
func (a *app) runChat(ctx context.Context) error {
	viewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chat := controller.NewChat(a.chat, a.jar, a.logger)
	p := tea.NewProgram(newChatModel(viewCtx, chat), tea.WithContext(ctx))
	unsubscribe := chat.Subscribe(func(s controller.ChatState) {
		p.Send(stateMsg(s))
	})

	final, err := p.Run()
	unsubscribe()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run chat view: %w", err)
	}

	if m, ok := final.(chatModel); ok && m.signedOut {
		a.finishSignOut(ctx, chat)
	}
	return nil
}
