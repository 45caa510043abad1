package cmd

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Laisky/sparkboard/cmd/tui"
	"github.com/Laisky/sparkboard/internal/board"
)

var tuiCMD = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI",
	Long: `Launch an interactive Terminal User Interface (TUI) for the board.

The TUI shows the posts live, lets you publish a message with an
optional image, and shows the AI summary of recent posts.

Keyboard shortcuts:
  ↑/↓ or j/k  Scroll posts
  n           New post
  s           Summary
  Tab         Next input field
  Enter       Post / Confirm
  Esc         Go back
  q           Quit`,
	Args:    gcmd.NoExtraArgs,
	PreRunE: preRunInitialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func init() {
	rootCMD.AddCommand(tuiCMD)
}

// tuiBoard adapts the board services to tui.Board.
type tuiBoard struct {
	*board.Store
	*board.Pipeline
	summary *board.SummaryService
}

func (b tuiBoard) Summarize(ctx context.Context) string {
	return b.summary.Summarize(ctx)
}

// runTUI starts the interactive Terminal User Interface and returns any start/run error.
func runTUI(ctx context.Context) error {
	app, err := newBoardApp(ctx)
	if err != nil {
		return errors.Wrap(err, "new board")
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(ctx, tuiBoard{
		Store:    app.store,
		Pipeline: app.pipeline,
		summary:  app.summary,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	// live feed, including posts made by other processes through the relay
	unsubscribe := app.store.Subscribe(func(posts []board.Post) {
		p.Send(tui.PostsMsg{Posts: posts})
	})
	defer unsubscribe()
	go func() {
		_ = app.store.Run(ctx)
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return errors.WithStack(err)
}
