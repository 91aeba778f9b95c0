package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserCmd(t *testing.T, user string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("user", "", "")
	require.NoError(t, cmd.Flags().Set("user", user))
	cmd.SetContext(context.Background())
	return cmd
}

func TestResolveUser(t *testing.T) {
	db := testutil.SetupTestDB(t)

	userID, err := resolveUser(newUserCmd(t, ""), db.Storage)
	require.NoError(t, err)
	assert.Equal(t, db.UserID, userID)

	userID, err = resolveUser(newUserCmd(t, db.UserID), db.Storage)
	require.NoError(t, err)
	assert.Equal(t, db.UserID, userID)

	_, err = resolveUser(newUserCmd(t, "ghost"), db.Storage)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, db.Storage.CreateProfile(context.Background(), &model.Profile{Email: "second@example.com"}))
	_, err = resolveUser(newUserCmd(t, ""), db.Storage)
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "--user")
}

func TestExportRange(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		to        string
		year      int
		wantStart time.Time
		wantErr   bool
	}{
		{name: "tax year", year: 2024, wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "explicit range", year: 2024, from: "2025-01-01", to: "2025-03-31", wantStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "half range", year: 2024, from: "2025-01-01", wantErr: true},
		{name: "bad date", year: 2024, from: "01/01/2025", to: "2025-03-31", wantErr: true},
		{name: "reversed", year: 2024, from: "2025-03-31", to: "2025-01-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exportCmd()
			require.NoError(t, cmd.Flags().Set("year", "2024"))
			if tt.from != "" {
				require.NoError(t, cmd.Flags().Set("from", tt.from))
			}
			if tt.to != "" {
				require.NoError(t, cmd.Flags().Set("to", tt.to))
			}

			dr, err := exportRange(cmd)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, dr.Start)
			assert.True(t, dr.End.After(dr.Start))
		})
	}

	cmd := exportCmd()
	require.NoError(t, cmd.Flags().Set("from", "2025-01-01"))
	require.NoError(t, cmd.Flags().Set("to", "2025-01-31"))
	dr, err := exportRange(cmd)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), dr.End)
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"jan.qfx", "feb.qfx", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	files, err := expandFiles([]string{filepath.Join(dir, "*.qfx")})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = expandFiles([]string{filepath.Join(dir, "notes.txt"), filepath.Join(dir, "missing.qfx")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "notes.txt")}, files)

	_, err = expandFiles([]string{filepath.Join(dir, "*.ofx")})
	require.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	want := []string{"serve", "sync", "categorize", "reconcile", "review", "import-ofx",
		"categories", "accounts", "profiles", "export", "retention", "vault", "migrate", "version"}

	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
