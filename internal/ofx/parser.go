// Package ofx reads OFX/QFX bank and credit card statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// ProviderIDPrefix marks provider transaction ids that came from an OFX FITID.
const ProviderIDPrefix = "ofx:"

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line with no closing bracket.
	unclosedTagRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Statement is the transactions of one account within a file.
type Statement struct {
	AccountID    string
	Kind         string
	Transactions []model.Transaction
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: common.ComponentLogger(logger, "ofx")}
}

// preprocessOFX fixes formatting issues seen in bank exports.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in the file. OFX reports money
// leaving the account as negative; such rows become expenses.
func (p *Parser) Parse(ctx context.Context, reader io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			statements = append(statements, p.statement("bank", string(stmt.BankAcctFrom.AcctID), stmt.BankTranList))
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			statements = append(statements, p.statement("credit_card", string(stmt.CCAcctFrom.AcctID), stmt.BankTranList))
		}
	}

	total := 0
	for _, s := range statements {
		total += len(s.Transactions)
	}
	p.logger.Info("Parsed OFX file",
		"statements", len(statements),
		"transactions", total)

	return statements, nil
}

func (p *Parser) statement(kind, accountID string, list *ofxgo.TransactionList) Statement {
	s := Statement{Kind: kind, AccountID: accountID}
	if list == nil {
		return s
	}
	for _, ofxTx := range list.Transactions {
		txn, err := convertTransaction(ofxTx)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction",
				"account", accountID,
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		s.Transactions = append(s.Transactions, txn)
	}
	return s
}

func convertTransaction(ofxTx ofxgo.Transaction) (model.Transaction, error) {
	if ofxTx.FiTID == "" {
		return model.Transaction{}, fmt.Errorf("missing FITID")
	}

	signed, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}
	// OFX is signed from the account holder's side, the opposite of the provider convention.
	amount, txnType := model.TypeFromProviderAmount(signed.Neg())

	description := strings.TrimSpace(string(ofxTx.Name))
	if description == "" {
		description = strings.TrimSpace(string(ofxTx.Memo))
	}

	return model.Transaction{
		ProviderTransactionID: model.StringPtr(ProviderIDPrefix + string(ofxTx.FiTID)),
		Date:                  ofxTx.DtPosted.Time,
		Description:           description,
		Vendor:                extractMerchantName(ofxTx),
		Amount:                amount,
		Type:                  txnType,
		ProviderCategory:      ofxTx.TrnType.String(),
		Source:                model.SourceOFX,
	}, nil
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// extractMerchantName prefers PAYEE, then NAME, then MEMO when NAME is generic.
func extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
