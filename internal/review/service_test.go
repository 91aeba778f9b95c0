package review

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func TestCandidates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(
		testutil.Txn("p-1", "30.00", "VENMO *J SMITH", day),
		testutil.Txn("p-2", "-1200.00", "ONLINE TRANSFER FROM SAVINGS", day.AddDate(0, 0, 1)),
		testutil.Txn("p-3", "55.00", "CHASE CARD PAYMENT", day.AddDate(0, 0, 2)),
		testutil.Txn("p-4", "12.00", "GITHUB", day.AddDate(0, 0, 3)),
		testutil.Txn("p-5", "9.99", "NOTION LABS", day.AddDate(0, 0, 4)),
	)
	require.NoError(t, db.Storage.FlagDuplicate(context.Background(), db.UserID, txns[3].ID, "Possible duplicate"))

	svc := NewService(db.Storage, nil, nil)
	assert.Equal(t, DefaultPatterns, svc.Patterns())

	got, err := svc.Candidates(context.Background(), db.UserID)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, txn := range got {
		ids[i] = txn.ID
	}
	assert.Equal(t, []string{txns[3].ID, txns[2].ID, txns[1].ID, txns[0].ID}, ids)

	custom := NewService(db.Storage, []string{"notion"}, nil)
	got, err = custom.Candidates(context.Background(), db.UserID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, txns[4].ID, got[0].ID)
	assert.Equal(t, txns[3].ID, got[1].ID)
}

func TestFlipType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(testutil.Txn("p-1", "250.00", "VENMO CASHOUT", day))
	supplies := db.MustCategory("Supplies")
	require.NoError(t, db.Storage.ApplyCategorization(context.Background(), db.UserID, txns[0].ID,
		service.CategoryUpdate{CategoryID: &supplies.ID, Type: model.TypeExpense, IsDeductible: true, Confidence: 0.6}))

	svc := NewService(db.Storage, nil, nil)
	flipped, err := svc.FlipType(context.Background(), db.UserID, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TypeIncome, flipped.Type)
	assert.Nil(t, flipped.CategoryID)
	assert.False(t, flipped.IsDeductible)

	stored := db.MustGet(txns[0].ID)
	assert.Equal(t, model.TypeIncome, stored.Type)
	assert.Nil(t, stored.CategoryID)
	assert.True(t, stored.Amount.Equal(txns[0].Amount))

	flipped, err = svc.FlipType(context.Background(), db.UserID, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TypeExpense, flipped.Type)

	logs, err := db.Storage.ListAuditLogs(context.Background(), db.UserID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionTransactionTyped, logs[0].Action)
	assert.Equal(t, txns[0].ID, logs[0].EntityID)

	_, err = svc.FlipType(context.Background(), db.UserID, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.FlipType(context.Background(), "someone-else", txns[0].ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAcceptFlag(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(testutil.Txn("p-1", "49.99", "ADOBE", day))
	require.NoError(t, db.Storage.FlagDuplicate(context.Background(), db.UserID, txns[0].ID, "Possible duplicate of abc"))

	svc := NewService(db.Storage, nil, nil)
	txn, err := svc.AcceptFlag(context.Background(), db.UserID, txns[0].ID)
	require.NoError(t, err)
	assert.False(t, txn.NeedsReview)
	assert.Equal(t, "Possible duplicate of abc", txn.ReviewNote)

	got, err := svc.Candidates(context.Background(), db.UserID)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.AcceptFlag(context.Background(), db.UserID, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAcceptFlag_PatternOnlyRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(testutil.Txn("p-1", "60.00", "VENMO CASHOUT", day))
	svc := NewService(db.Storage, nil, nil)

	_, err := svc.AcceptFlag(context.Background(), db.UserID, txns[0].ID)
	require.ErrorIs(t, err, common.ErrNotFlagged)

	logs, err := db.Storage.ListAuditLogs(context.Background(), db.UserID, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)

	got, err := svc.Candidates(context.Background(), db.UserID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, txns[0].ID, got[0].ID)
}
