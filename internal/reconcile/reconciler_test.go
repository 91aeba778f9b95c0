package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/llm"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func replyWith(raw string) *llm.MockClient {
	return &llm.MockClient{CompleteFn: func(_ context.Context, _, _ string) (string, error) {
		return raw, nil
	}}
}

// seed inserts four transactions in the window (t1..t4, oldest first) and one outside it.
func seed(t *testing.T) (*testutil.TestDB, []model.Transaction) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	txns := db.MustInsert(
		testutil.Txn("p-old", "99.00", "ADOBE", now.AddDate(0, 0, -120)),
		testutil.Txn("p-1", "49.99", "ADOBE CREATIVE CLOUD", now.AddDate(0, 0, -10)),
		testutil.Txn("p-2", "49.99", "ADOBE *CREATIVE CLD", now.AddDate(0, 0, -9)),
		testutil.Txn("p-3", "500.00", "ONLINE TRANSFER TO SAVINGS", now.AddDate(0, 0, -5)),
		testutil.Txn("p-4", "-500.00", "ONLINE TRANSFER FROM CHECKING", now.AddDate(0, 0, -5)),
	)
	return db, txns
}

func TestReconcile_AppliesHighConfidenceGroups(t *testing.T) {
	db, txns := seed(t)
	client := replyWith("```json\n" + `{
		"duplicates":[{"transaction_ids":["t2","t1"],"confidence":"high","reason":"same amount one day apart"}],
		"transfers":[{"transaction_ids":["t3","t4"],"confidence":"HIGH","reason":"matching amounts"}]
	}` + "\n```")

	report, err := New(db.Storage, client, 0, nil).Reconcile(context.Background(), db.UserID, now)
	require.NoError(t, err)
	assert.Equal(t, Report{Candidates: 4, DuplicatesFlagged: 1, TransfersFlagged: 2}, report)

	kept := db.MustGet(txns[1].ID)
	assert.False(t, kept.NeedsReview, "earliest transaction in a duplicate group is kept")

	dup := db.MustGet(txns[2].ID)
	assert.True(t, dup.NeedsReview)
	assert.Contains(t, dup.ReviewNote, txns[1].ID)
	assert.Contains(t, dup.ReviewNote, "same amount one day apart")

	assert.True(t, db.MustGet(txns[3].ID).IsInternalTransfer)
	assert.True(t, db.MustGet(txns[4].ID).IsInternalTransfer)
	assert.False(t, db.MustGet(txns[0].ID).IsInternalTransfer)

	require.Len(t, client.Prompts, 1)
	assert.NotContains(t, client.Prompts[0], `"description": "ADOBE"`, "transactions outside the window are not sent")
	assert.Contains(t, client.Prompts[0], `"id": "t4"`)
	assert.NotContains(t, client.Prompts[0], `"id": "t5"`)

	logs, err := db.Storage.ListAuditLogs(context.Background(), db.UserID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionReconciled, logs[0].Action)
}

func TestReconcile_SkipsGroups(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{
			name:  "medium confidence",
			reply: `{"duplicates":[{"transaction_ids":["t1","t2"],"confidence":"medium","reason":"maybe"}]}`,
		},
		{
			name:  "low confidence transfer",
			reply: `{"transfers":[{"transaction_ids":["t3","t4"],"confidence":"low"}]}`,
		},
		{
			name:  "unknown ids leave one member",
			reply: `{"duplicates":[{"transaction_ids":["t1","t99","abc"],"confidence":"high"}]}`,
		},
		{
			name:  "repeated id",
			reply: `{"transfers":[{"transaction_ids":["t3","t3"],"confidence":"high"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, txns := seed(t)

			report, err := New(db.Storage, replyWith(tt.reply), 0, nil).Reconcile(context.Background(), db.UserID, now)
			require.NoError(t, err)
			assert.Equal(t, Report{Candidates: 4, GroupsSkipped: 1}, report)

			for _, txn := range txns {
				got := db.MustGet(txn.ID)
				assert.False(t, got.NeedsReview)
				assert.False(t, got.IsInternalTransfer)
			}

			logs, err := db.Storage.ListAuditLogs(context.Background(), db.UserID, 10)
			require.NoError(t, err)
			assert.Empty(t, logs)
		})
	}
}

func TestReconcile_IgnoresUnknownIDsInValidGroup(t *testing.T) {
	db, txns := seed(t)
	client := replyWith(`{"duplicates":[{"transaction_ids":["t1","t42","t2"],"confidence":"high","reason":"dup"}]}`)

	report, err := New(db.Storage, client, 0, nil).Reconcile(context.Background(), db.UserID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DuplicatesFlagged)
	assert.True(t, db.MustGet(txns[2].ID).NeedsReview)
}

func TestReconcile_ModelFailures(t *testing.T) {
	tests := []struct {
		client *llm.MockClient
		name   string
	}{
		{
			name: "model error",
			client: &llm.MockClient{CompleteFn: func(_ context.Context, _, _ string) (string, error) {
				return "", errors.New("timeout")
			}},
		},
		{
			name:   "unparsable reply",
			client: replyWith("No duplicates found."),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := seed(t)
			_, err := New(db.Storage, tt.client, 0, nil).Reconcile(context.Background(), db.UserID, now)
			require.ErrorIs(t, err, common.ErrReconciliationFailed)
		})
	}
}

func TestReconcile_TooFewTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	db.MustInsert(testutil.Txn("p-1", "10.00", "COFFEE", now.AddDate(0, 0, -1)))
	client := &llm.MockClient{}

	report, err := New(db.Storage, client, 30, nil).Reconcile(context.Background(), db.UserID, now)
	require.NoError(t, err)
	assert.Equal(t, Report{Candidates: 1}, report)
	assert.Zero(t, client.Calls())
}

func TestReconcile_WindowIncludesWholeFirstDay(t *testing.T) {
	midnight := func(daysAgo int) time.Time {
		y, m, d := now.AddDate(0, 0, -daysAgo).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	db := testutil.SetupTestDB(t)
	db.MustInsert(
		testutil.Txn("p-outside", "12.00", "OUTSIDE WINDOW", midnight(91)),
		testutil.Txn("p-edge", "12.00", "FIRST DAY", midnight(90)),
		testutil.Txn("p-today", "12.00", "TODAY", midnight(0)),
	)
	client := replyWith(`{"duplicates":[],"transfers":[]}`)

	report, err := New(db.Storage, client, 90, nil).Reconcile(context.Background(), db.UserID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)

	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "FIRST DAY")
	assert.NotContains(t, client.Prompts[0], "OUTSIDE WINDOW")
}
