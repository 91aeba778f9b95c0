// Package plaid provides a client for interacting with the Plaid API.
package plaid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	dateLayout = "2006-01-02"
	// pageSize is Plaid's maximum page size for /transactions/get.
	pageSize = int32(500)
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	ClientName  string
	RedirectURI string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("plaid client ID is required")
	}
	if c.Secret == "" {
		return fmt.Errorf("plaid secret is required")
	}
	if c.Environment == "" {
		return fmt.Errorf("plaid environment is required")
	}

	validEnvs := map[string]bool{
		"sandbox":    true,
		"production": true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid Plaid environment: must be sandbox or production")
	}

	return nil
}

// Client implements the Provider interface against the Plaid API.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	clientName  string
	redirectURI string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "Books"
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		clientName:  clientName,
		redirectURI: cfg.RedirectURI,
		logger:      slog.Default().With("component", "plaid"),
	}, nil
}

// GetTransactions fetches posted transactions for the given accounts within the date range.
// It makes a single attempt per page; any provider error is returned to the caller.
func (c *Client) GetTransactions(ctx context.Context, accessToken string, accountIDs []string, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format(dateLayout),
		"end_date", endDate.Format(dateLayout),
		"accounts", len(accountIDs))

	var allTransactions []plaid.Transaction
	offset := int32(0)

	for {
		request := plaid.NewTransactionsGetRequest(
			accessToken,
			startDate.Format(dateLayout),
			endDate.Format(dateLayout),
		)
		options := plaid.TransactionsGetRequestOptions{
			Count:  plaid.PtrInt32(pageSize),
			Offset: plaid.PtrInt32(offset),
		}
		if len(accountIDs) > 0 {
			options.SetAccountIds(accountIDs)
		}
		request.SetOptions(options)

		resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, wrapPlaidError("fetch transactions", err)
		}

		page := resp.GetTransactions()
		allTransactions = append(allTransactions, page...)

		c.logger.Debug("Fetched transaction batch",
			"count", len(page),
			"offset", offset,
			"total", resp.GetTotalTransactions())

		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	transactions := make([]model.Transaction, 0, len(allTransactions))
	skipped := 0
	for _, pt := range allTransactions {
		// Pending rows are reposted with a new id once they settle.
		if pt.GetPending() {
			skipped++
			continue
		}
		txn, err := mapPlaidTransaction(pt)
		if err != nil {
			c.logger.Warn("Skipping unmappable transaction",
				"transaction_id", pt.GetTransactionId(),
				"error", err)
			skipped++
			continue
		}
		transactions = append(transactions, txn)
	}

	c.logger.Info("Fetched all transactions", "count", len(transactions), "skipped", skipped)
	return transactions, nil
}

// GetAccounts lists the accounts reachable with an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	request := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapPlaidError("fetch accounts", err)
	}

	accounts := make([]Account, 0, len(resp.GetAccounts()))
	for _, acct := range resp.GetAccounts() {
		accounts = append(accounts, Account{
			ID:   acct.GetAccountId(),
			Name: acct.GetName(),
			Mask: acct.GetMask(),
			Type: string(acct.GetType()),
		})
	}

	c.logger.Info("Fetched accounts", "count", len(accounts))
	return accounts, nil
}

// CreateLinkToken creates a Link token for Plaid Link initialization.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}

	request := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	// OAuth institutions require a redirect URI registered in the Plaid dashboard.
	if c.redirectURI != "" {
		request.SetRedirectUri(c.redirectURI)
	}

	resp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", wrapPlaidError("create link token", err)
	}

	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access token and item ID.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", wrapPlaidError("exchange public token", err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// mapPlaidTransaction converts a Plaid transaction into an unsaved transaction.
// The caller assigns the user and bank account.
func mapPlaidTransaction(pt plaid.Transaction) (model.Transaction, error) {
	date, err := time.Parse(dateLayout, pt.GetDate())
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q: %w", pt.GetDate(), err)
	}
	if pt.GetTransactionId() == "" {
		return model.Transaction{}, fmt.Errorf("missing transaction id")
	}

	vendor := pt.GetMerchantName()
	if vendor == "" {
		vendor = pt.GetName()
	}

	amount, txnType := model.TypeFromProviderAmount(decimal.NewFromFloat(pt.GetAmount()))

	return model.Transaction{
		ProviderTransactionID: model.StringPtr(pt.GetTransactionId()),
		Date:                  date,
		Description:           pt.GetName(),
		Vendor:                cleanMerchantName(vendor),
		Amount:                amount,
		Type:                  txnType,
		Source:                model.SourcePlaid,
		ProviderCategory:      providerCategory(pt),
	}, nil
}

// providerCategory prefers Plaid's personal finance category over the legacy hierarchy.
func providerCategory(pt plaid.Transaction) string {
	pfc := pt.GetPersonalFinanceCategory()
	if detailed := pfc.GetDetailed(); detailed != "" {
		return detailed
	}
	if primary := pfc.GetPrimary(); primary != "" {
		return primary
	}
	return strings.Join(pt.GetCategory(), " > ")
}

// merchantSuffixes are corporate suffixes dropped from vendor names.
var merchantSuffixes = []string{
	" Llc",
	" Inc",
	" Corp",
	" Corporation",
	" Company",
	" Co",
	" Ltd",
	" Limited",
}

// cleanMerchantName standardizes merchant names by removing common suffixes and normalizing format.
func cleanMerchantName(name string) string {
	// Casers are stateful, so each call gets its own.
	parts := strings.Fields(cases.Title(language.English).String(strings.ToLower(name)))

	// Handle trailing reference numbers like "MERCHANT 123456789".
	if len(parts) > 1 {
		lastPart := parts[len(parts)-1]
		if len(lastPart) > 5 && isAllDigits(lastPart) {
			parts = parts[:len(parts)-1]
		}
	}
	name = strings.Join(parts, " ")

	changed := true
	for changed {
		changed = false
		for _, suffix := range merchantSuffixes {
			if strings.HasSuffix(name, suffix) {
				name = strings.TrimSuffix(name, suffix)
				changed = true
			}
		}
	}

	return strings.TrimSpace(name)
}

// isAllDigits checks if a string contains only digits.
func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// wrapPlaidError converts SDK errors into errors wrapping common.ErrPlaidConnection.
func wrapPlaidError(op string, err error) error {
	if plaidErr, convErr := plaid.ToPlaidError(err); convErr == nil {
		return fmt.Errorf("%w: %s: %s - %s", common.ErrPlaidConnection, op, plaidErr.ErrorCode, plaidErr.ErrorMessage)
	}
	return fmt.Errorf("%w: failed to %s: %v", common.ErrPlaidConnection, op, err)
}

var _ Provider = (*Client)(nil)
