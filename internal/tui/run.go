package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the review screen until the user quits or ctx is canceled.
func Run(ctx context.Context, reviewer Reviewer, userID string) error {
	if reviewer == nil {
		return fmt.Errorf("reviewer is required")
	}

	p := tea.NewProgram(NewModel(ctx, reviewer, userID),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("review screen failed: %w", err)
	}
	return nil
}
