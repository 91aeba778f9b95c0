package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReviewer struct {
	err       error
	txns      map[string]*model.Transaction
	order     []string
	flipped   []string
	accepted  []string
	loadCalls int
}

func newFakeReviewer(txns ...model.Transaction) *fakeReviewer {
	f := &fakeReviewer{txns: make(map[string]*model.Transaction)}
	for i := range txns {
		txn := txns[i]
		f.txns[txn.ID] = &txn
		f.order = append(f.order, txn.ID)
	}
	return f
}

func (f *fakeReviewer) Candidates(context.Context, string) ([]model.Transaction, error) {
	f.loadCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Transaction, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.txns[id])
	}
	return out, nil
}

func (f *fakeReviewer) FlipType(_ context.Context, _, id string) (*model.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.flipped = append(f.flipped, id)
	txn := f.txns[id]
	txn.Type = txn.Type.Opposite()
	txn.CategoryID = nil
	copied := *txn
	return &copied, nil
}

func (f *fakeReviewer) AcceptFlag(_ context.Context, _, id string) (*model.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.accepted = append(f.accepted, id)
	txn := f.txns[id]
	txn.NeedsReview = false
	copied := *txn
	return &copied, nil
}

func sampleTransactions() []model.Transaction {
	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	return []model.Transaction{
		{ID: "t-venmo", Date: day, Description: "VENMO CASHOUT", Amount: decimal.RequireFromString("60"), Type: model.TypeExpense},
		{ID: "t-dup", Date: day, Description: "AWS", Amount: decimal.RequireFromString("120"), Type: model.TypeExpense,
			NeedsReview: true, ReviewNote: "Possible duplicate of t-aws"},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send delivers msg and feeds any resulting command output back into the model.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	m = updated.(Model)
	if cmd != nil {
		if next := cmd(); next != nil {
			if _, isQuit := next.(tea.QuitMsg); !isQuit {
				updated, _ = m.Update(next)
				m = updated.(Model)
			}
		}
	}
	return m
}

func loadedModel(t *testing.T, reviewer *fakeReviewer) Model {
	t.Helper()
	m := NewModel(context.Background(), reviewer, "user-test")
	assert.Contains(t, m.View(), "Loading")

	updated, _ := m.Update(m.Init()())
	return updated.(Model)
}

func TestModel_Load(t *testing.T) {
	reviewer := newFakeReviewer(sampleTransactions()...)
	m := loadedModel(t, reviewer)

	require.Len(t, m.Transactions(), 2)
	view := m.View()
	assert.Contains(t, view, "VENMO CASHOUT")
	assert.Contains(t, view, "$60.00")
	assert.Contains(t, view, "2 transactions to review")
}

func TestModel_Empty(t *testing.T) {
	m := loadedModel(t, newFakeReviewer())
	assert.Contains(t, m.View(), "Nothing to review.")
}

func TestModel_FlipType(t *testing.T) {
	reviewer := newFakeReviewer(sampleTransactions()...)
	m := loadedModel(t, reviewer)

	m = send(t, m, runes("t"))

	assert.Equal(t, []string{"t-venmo"}, reviewer.flipped)
	assert.Equal(t, model.TypeIncome, m.Transactions()[0].Type)
	assert.Contains(t, m.View(), "VENMO CASHOUT is now income")
}

func TestModel_AcceptFlag(t *testing.T) {
	reviewer := newFakeReviewer(sampleTransactions()...)
	m := loadedModel(t, reviewer)

	m = send(t, m, runes("a"))
	assert.Empty(t, reviewer.accepted)
	assert.Contains(t, m.View(), "not flagged")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Contains(t, m.View(), "Possible duplicate of t-aws")

	m = send(t, m, runes("a"))
	assert.Equal(t, []string{"t-dup"}, reviewer.accepted)
	assert.False(t, m.Transactions()[1].NeedsReview)
}

func TestModel_Errors(t *testing.T) {
	reviewer := newFakeReviewer(sampleTransactions()...)
	m := loadedModel(t, reviewer)

	reviewer.err = errors.New("database is locked")
	m = send(t, m, runes("t"))
	assert.Contains(t, m.View(), "Error: flip failed: database is locked")
	assert.Equal(t, model.TypeExpense, m.Transactions()[0].Type)

	reviewer.err = nil
	m = send(t, m, runes("r"))
	assert.Equal(t, 2, reviewer.loadCalls)
	assert.NotContains(t, m.View(), "Error:")
}

func TestModel_Quit(t *testing.T) {
	m := loadedModel(t, newFakeReviewer(sampleTransactions()...))

	updated, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, updated.(Model).View())
}

func TestModel_Resize(t *testing.T) {
	m := loadedModel(t, newFakeReviewer(sampleTransactions()...))

	m = send(t, m, tea.WindowSizeMsg{Width: 140, Height: 30})
	cols := columns(140)
	total := 0
	for _, c := range cols {
		total += c.Width
	}
	assert.Equal(t, 140-12, total)
	assert.Contains(t, m.View(), "AWS")
}

func TestRun_RequiresReviewer(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, "user-test"))
}
