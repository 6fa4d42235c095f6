package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Mode selects the live view variant.
type Mode int

const (
	ModeShare Mode = iota
	ModeListen
)

// LiveCallbacks connect the live view to the running session. Pollers are
// called on every tick; action callbacks run on the UI goroutine and must
// not block.
type LiveCallbacks struct {
	State   func() string
	Level   func() float64
	Latency func() time.Duration
	Muted   func() bool
	Quality func() string

	ToggleMute    func()
	SetQuality    func(string)
	RetryPlayback func() error
	Quit          func()
}

// LiveUI runs the inline session view until the user quits or Stop is
// called.
type LiveUI struct {
	program *tea.Program
	model   *liveModel
	wg      sync.WaitGroup
}

type tickMsg time.Time

type liveModel struct {
	mode     Mode
	room     string
	cb       LiveCallbacks
	spinner  spinner.Model
	start    time.Time
	notice   string
	quitting bool
}

// NewLiveUI creates the live view for a session in the given room.
func NewLiveUI(mode Mode, room string, cb LiveCallbacks) *LiveUI {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &LiveUI{
		model: &liveModel{
			mode:    mode,
			room:    room,
			cb:      cb,
			spinner: s,
			start:   time.Now(),
		},
	}
}

// Start runs the UI in a goroutine. Inline mode keeps earlier terminal
// output visible.
func (ui *LiveUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		ui.program = tea.NewProgram(ui.model)
		if _, err := ui.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Stop quits the UI and waits for it to unwind.
func (ui *LiveUI) Stop() {
	if ui.program != nil {
		ui.program.Quit()
	}
	ui.wg.Wait()
}

func (m *liveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.cb.Quit != nil {
				m.cb.Quit()
			}
			return m, tea.Quit

		case "m":
			if m.cb.ToggleMute != nil {
				m.cb.ToggleMute()
			}

		case "1", "2", "3":
			if m.cb.SetQuality != nil {
				presets := map[string]string{"1": "low", "2": "medium", "3": "high"}
				m.cb.SetQuality(presets[msg.String()])
			}

		case "p":
			if m.mode == ModeListen && m.cb.RetryPlayback != nil {
				if err := m.cb.RetryPlayback(); err != nil {
					m.notice = WarningStyle.Render("playback still blocked, press p to retry")
				} else {
					m.notice = ""
				}
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		if !m.quitting {
			return m, tick()
		}
	}

	return m, nil
}

func (m *liveModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	icon, title := IconShare, "Sharing Audio"
	if m.mode == ModeListen {
		icon, title = IconListen, "Listening"
	}
	b.WriteString(fmt.Sprintf("\n%s %s  %s\n\n", icon, TitleStyle.Render(title), MutedStyle.Render("room "+m.room)))

	state := ""
	if m.cb.State != nil {
		state = m.cb.State()
	}
	b.WriteString(fmt.Sprintf("%s %s  %s\n", m.spinner.View(), state, MutedStyle.Render(time.Since(m.start).Round(time.Second).String())))

	if m.cb.Quality != nil {
		line := fmt.Sprintf("quality: %s", m.cb.Quality())
		if m.cb.Latency != nil {
			if l := m.cb.Latency(); l > 0 {
				line += fmt.Sprintf("   latency: %s", l.Round(time.Millisecond))
			}
		}
		b.WriteString(MutedStyle.Render(line) + "\n")
	}

	if m.cb.Muted != nil && m.cb.Muted() {
		b.WriteString(fmt.Sprintf("%s %s\n", IconMuted, WarningStyle.Render("muted")))
	} else if m.mode == ModeListen && m.cb.Level != nil {
		b.WriteString(fmt.Sprintf("%s %s\n", IconVolume, meter(m.cb.Level(), 30)))
	}

	if m.notice != "" {
		b.WriteString(m.notice + "\n")
	}

	keys := "m mute  1/2/3 quality  q quit"
	if m.mode == ModeListen {
		keys = "m mute  1/2/3 quality  p play  q quit"
	}
	b.WriteString("\n" + MutedStyle.Render(keys) + "\n")

	return b.String()
}

// meter renders a level bar, green through amber as the level rises.
func meter(level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level * float64(width))

	var b strings.Builder
	for i := 0; i < width; i++ {
		if i >= filled {
			b.WriteString(MutedStyle.Render("░"))
			continue
		}
		if float64(i) > float64(width)*0.7 {
			b.WriteString(WarningStyle.Render("█"))
		} else {
			b.WriteString(SuccessStyle.Render("█"))
		}
	}
	return b.String()
}
