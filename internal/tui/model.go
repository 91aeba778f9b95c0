// Package tui implements the interactive review screen.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	actionFlip   = "flip"
	actionAccept = "accept"

	operationTimeout = 30 * time.Second
)

// Reviewer is the subset of the review service the screen drives.
type Reviewer interface {
	Candidates(ctx context.Context, userID string) ([]model.Transaction, error)
	FlipType(ctx context.Context, userID, txnID string) (*model.Transaction, error)
	AcceptFlag(ctx context.Context, userID, txnID string) (*model.Transaction, error)
}

// Model holds the review screen state.
type Model struct {
	ctx          context.Context
	reviewer     Reviewer
	lastError    error
	theme        Theme
	userID       string
	status       string
	keys         KeyMap
	transactions []model.Transaction
	help         help.Model
	table        table.Model
	width        int
	height       int
	loaded       bool
	quitting     bool
}

// NewModel creates the review screen for one user.
func NewModel(ctx context.Context, reviewer Reviewer, userID string) Model {
	theme := DefaultTheme

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(15),
		table.WithWidth(80),
	)
	styles := table.DefaultStyles()
	styles.Header = theme.Header
	styles.Selected = theme.Selected
	t.SetStyles(styles)

	return Model{
		ctx:      ctx,
		reviewer: reviewer,
		userID:   userID,
		theme:    theme,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		table:    t,
	}
}

// Init loads the review candidates.
func (m Model) Init() tea.Cmd {
	return m.loadCandidates()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetWidth(msg.Width)
		// Title, status line and help take five rows.
		m.table.SetHeight(max(3, msg.Height-5))
		return m, nil

	case candidatesLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.transactions = msg.transactions
		m.table.SetRows(rows(m.transactions))
		m.status = fmt.Sprintf("%d transactions to review", len(m.transactions))
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.replace(*msg.transaction)
		m.status = describeAction(msg.action, *msg.transaction)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.status = "Refreshing..."
			return m, m.loadCandidates()
		case key.Matches(msg, m.keys.Flip):
			if txn, ok := m.selected(); ok {
				return m, m.runAction(actionFlip, txn.ID)
			}
			return m, nil
		case key.Matches(msg, m.keys.Accept):
			txn, ok := m.selected()
			if !ok {
				return m, nil
			}
			if !txn.NeedsReview {
				m.status = "Transaction is not flagged"
				return m, nil
			}
			return m, m.runAction(actionAccept, txn.ID)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Transactions returns the candidates as currently shown.
func (m Model) Transactions() []model.Transaction {
	return m.transactions
}

func (m Model) selected() (model.Transaction, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.transactions) {
		return model.Transaction{}, false
	}
	return m.transactions[i], true
}

// replace swaps in the updated transaction, keeping its row position.
func (m *Model) replace(txn model.Transaction) {
	for i := range m.transactions {
		if m.transactions[i].ID == txn.ID {
			m.transactions[i] = txn
			break
		}
	}
	m.table.SetRows(rows(m.transactions))
}

func (m Model) loadCandidates() tea.Cmd {
	reviewer, ctx, userID := m.reviewer, m.ctx, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, operationTimeout)
		defer cancel()

		txns, err := reviewer.Candidates(ctx, userID)
		return candidatesLoadedMsg{transactions: txns, err: err}
	}
}

func (m Model) runAction(action, txnID string) tea.Cmd {
	reviewer, ctx, userID := m.reviewer, m.ctx, m.userID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, operationTimeout)
		defer cancel()

		var (
			txn *model.Transaction
			err error
		)
		switch action {
		case actionFlip:
			txn, err = reviewer.FlipType(ctx, userID, txnID)
		case actionAccept:
			txn, err = reviewer.AcceptFlag(ctx, userID, txnID)
		}
		if err != nil {
			return actionDoneMsg{action: action, err: fmt.Errorf("%s failed: %w", action, err)}
		}
		return actionDoneMsg{action: action, transaction: txn}
	}
}

func describeAction(action string, txn model.Transaction) string {
	switch action {
	case actionFlip:
		return fmt.Sprintf("%s is now %s; category cleared", txn.Description, txn.Type)
	case actionAccept:
		return fmt.Sprintf("Accepted flag on %s", txn.Description)
	default:
		return ""
	}
}
