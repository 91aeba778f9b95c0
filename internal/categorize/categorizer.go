// Package categorize assigns categories to transactions with a language model.
package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/llm"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/service"
)

// DefaultBatchSize is the number of transactions sent in one prompt.
const DefaultBatchSize = 50

const systemPrompt = "You are a bookkeeping assistant for a small business. " +
	"You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, " +
	"markdown formatting, or commentary before or after the JSON."

// Summary reports what a categorization run did.
type Summary struct {
	Requested     int `json:"requested"`
	Applied       int `json:"applied"`
	TypeCorrected int `json:"type_corrected"`
	Skipped       int `json:"skipped"`
	FailedBatches int `json:"failed_batches"`
}

// Categorizer sends batches of transactions to a language model and writes the
// returned category, type and deductibility back to storage.
type Categorizer struct {
	storage   service.Storage
	client    llm.Client
	logger    *slog.Logger
	batchSize int
}

// New creates a Categorizer. A non-positive batchSize falls back to DefaultBatchSize.
func New(storage service.Storage, client llm.Client, batchSize int, logger *slog.Logger) *Categorizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{
		storage:   storage,
		client:    client,
		batchSize: batchSize,
		logger:    common.ComponentLogger(logger, "categorize"),
	}
}

// CategorizeUncategorized categorizes every transaction of the user that has no category.
func (c *Categorizer) CategorizeUncategorized(ctx context.Context, userID string) (Summary, error) {
	txns, err := c.storage.ListTransactions(ctx, service.TransactionFilter{UserID: userID, Uncategorized: true})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load uncategorized transactions: %w", err)
	}
	return c.Categorize(ctx, userID, txns)
}

// CategorizeIDs categorizes the listed transactions of the user.
func (c *Categorizer) CategorizeIDs(ctx context.Context, userID string, ids []string) (Summary, error) {
	txns, err := c.storage.ListTransactions(ctx, service.TransactionFilter{UserID: userID, IDs: ids})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	return c.Categorize(ctx, userID, txns)
}

// Categorize processes txns in batches. A batch whose model call fails or whose
// reply cannot be parsed is abandoned as a whole and not retried; the returned
// error joins every abandoned batch's error.
func (c *Categorizer) Categorize(ctx context.Context, userID string, txns []model.Transaction) (Summary, error) {
	summary := Summary{Requested: len(txns)}
	if len(txns) == 0 {
		return summary, nil
	}

	categories, err := c.storage.GetCategories(ctx, userID)
	if err != nil {
		return summary, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		return summary, common.ErrNoCategories
	}

	byName := make(map[string]model.Category, len(categories))
	for _, cat := range categories {
		byName[strings.ToLower(cat.Name)] = cat
	}

	start := time.Now()
	var batchErrs []error
	for offset := 0; offset < len(txns); offset += c.batchSize {
		end := min(offset+c.batchSize, len(txns))
		batch := txns[offset:end]

		if err := c.categorizeBatch(ctx, userID, batch, categories, byName, &summary); err != nil {
			summary.FailedBatches++
			summary.Skipped += len(batch)
			c.logger.Error("Abandoning categorization batch",
				"user_id", userID,
				"offset", offset,
				"size", len(batch),
				"error", err)
			batchErrs = append(batchErrs, fmt.Errorf("batch at offset %d: %w", offset, err))
		}
	}

	c.logger.Info("Categorization complete",
		"user_id", userID,
		"requested", summary.Requested,
		"applied", summary.Applied,
		"skipped", summary.Skipped,
		"failed_batches", summary.FailedBatches,
		"duration", time.Since(start))

	if summary.Applied > 0 {
		c.recordAudit(ctx, userID, summary)
	}

	if len(batchErrs) > 0 {
		return summary, fmt.Errorf("%w: %w", common.ErrClassificationFailed, errors.Join(batchErrs...))
	}
	return summary, nil
}

// result is one entry of the model's reply.
type result struct {
	Category     string  `json:"category"`
	Type         string  `json:"type"`
	Index        int     `json:"index"`
	Confidence   float64 `json:"confidence"`
	IsDeductible bool    `json:"is_deductible"`
}

type reply struct {
	Results []result `json:"results"`
}

func (c *Categorizer) categorizeBatch(ctx context.Context, userID string, batch []model.Transaction,
	categories []model.Category, byName map[string]model.Category, summary *Summary) error {
	prompt, err := buildPrompt(batch, categories)
	if err != nil {
		return err
	}

	raw, err := c.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("model call failed: %w", err)
	}

	var parsed reply
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return err
	}

	handled := make(map[int]bool, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(batch) || handled[r.Index] {
			c.logger.Warn("Ignoring result with invalid index", "index", r.Index)
			continue
		}
		handled[r.Index] = true
		txn := batch[r.Index]

		update, corrected, ok := c.resolve(txn, r, byName)
		if !ok {
			summary.Skipped++
			continue
		}

		if err := c.storage.ApplyCategorization(ctx, userID, txn.ID, update); err != nil {
			c.logger.Warn("Failed to apply categorization",
				"transaction_id", txn.ID,
				"error", err)
			summary.Skipped++
			continue
		}
		summary.Applied++
		if corrected {
			summary.TypeCorrected++
		}
	}

	summary.Skipped += len(batch) - len(handled)
	return nil
}

// resolve turns a model result into a storage update. The category is only
// assigned when its type matches the resulting transaction type.
func (c *Categorizer) resolve(txn model.Transaction, r result, byName map[string]model.Category) (service.CategoryUpdate, bool, bool) {
	cat, found := byName[strings.ToLower(strings.TrimSpace(r.Category))]
	if !found {
		c.logger.Warn("Model returned unknown category",
			"transaction_id", txn.ID,
			"category", r.Category)
		return service.CategoryUpdate{}, false, false
	}

	newType := txn.Type
	if parsed, err := model.ParseTransactionType(r.Type); err == nil {
		newType = parsed
	}

	update := service.CategoryUpdate{
		Type:       newType,
		Confidence: clampConfidence(r.Confidence),
	}
	if cat.Matches(newType) {
		update.CategoryID = &cat.ID
		update.IsDeductible = r.IsDeductible && newType == model.TypeExpense
	} else {
		c.logger.Warn("Category type does not match transaction type, leaving uncategorized",
			"transaction_id", txn.ID,
			"category", cat.Name,
			"category_type", cat.Type,
			"transaction_type", newType)
	}

	return update, newType != txn.Type, true
}

func clampConfidence(v float64) float64 {
	return max(0, min(1, v))
}

// promptTransaction is the shape each transaction takes inside the prompt.
type promptTransaction struct {
	Date             string `json:"date"`
	Description      string `json:"description"`
	Vendor           string `json:"vendor,omitempty"`
	Amount           string `json:"amount"`
	Type             string `json:"type"`
	ProviderCategory string `json:"provider_category,omitempty"`
	Index            int    `json:"index"`
}

func buildPrompt(batch []model.Transaction, categories []model.Category) (string, error) {
	var categoryList strings.Builder
	for _, cat := range categories {
		deductible := ""
		if cat.IsDeductible {
			deductible = ", deductible"
		}
		fmt.Fprintf(&categoryList, "- %s (%s%s)\n", cat.Name, cat.Type, deductible)
	}

	items := make([]promptTransaction, len(batch))
	for i, txn := range batch {
		items[i] = promptTransaction{
			Index:            i,
			Date:             txn.Date.Format(time.DateOnly),
			Description:      txn.Description,
			Vendor:           txn.Vendor,
			Amount:           txn.Amount.StringFixed(2),
			Type:             string(txn.Type),
			ProviderCategory: txn.ProviderCategory,
		}
	}
	txnJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode transactions: %w", err)
	}

	return fmt.Sprintf(`Categorize each of these small-business bank transactions.

Categories (name, type):
%s
Transactions:
%s

Rules:
- Use ONLY category names from the list above, spelled exactly.
- "type" is "income" or "expense". Correct it if the current type is clearly wrong
  (for example a refund recorded as an expense).
- A category may only be used for transactions of the same type.
- "is_deductible" is true only for ordinary and necessary business expenses.
- "confidence" is a number between 0 and 1.

Respond with:
{"results":[{"index":0,"category":"<name>","type":"income|expense","is_deductible":false,"confidence":0.9}]}
`, categoryList.String(), string(txnJSON)), nil
}

func (c *Categorizer) recordAudit(ctx context.Context, userID string, summary Summary) {
	details, err := json.Marshal(summary)
	if err != nil {
		details = []byte("{}")
	}
	if err := c.storage.RecordAudit(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     model.ActionCategorized,
		EntityType: "transaction",
		Details:    string(details),
	}); err != nil {
		c.logger.Warn("Failed to record audit log", "error", err)
	}
}
