// Package plaid fetches posted transactions from the Plaid API.
package plaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	AccessToken string
	BaseURL     string // Overrides Environment; used against test servers
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("plaid client ID is required")
	}
	if c.Secret == "" {
		return errors.New("plaid secret is required")
	}
	if c.AccessToken == "" {
		return errors.New("plaid access token is required")
	}
	if c.BaseURL != "" {
		return nil
	}
	if _, err := environmentURL(c.Environment); err != nil {
		return err
	}
	return nil
}

func environmentURL(env string) (plaid.Environment, error) {
	switch env {
	case "sandbox":
		return plaid.Sandbox, nil
	case "production":
		return plaid.Production, nil
	case "":
		return "", errors.New("plaid environment is required")
	default:
		return "", fmt.Errorf("invalid Plaid environment %q: must be sandbox or production", env)
	}
}

// Client implements the TransactionFetcher interface.
type Client struct {
	client      *plaid.APIClient
	logger      *slog.Logger
	retryOpts   common.RetryOptions
	accessToken string
}

// NewClient creates a new Plaid client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	if cfg.BaseURL != "" {
		configuration.UseEnvironment(plaid.Environment(cfg.BaseURL))
	} else {
		env, _ := environmentURL(cfg.Environment)
		configuration.UseEnvironment(env)
	}

	return &Client{
		client:      plaid.NewAPIClient(configuration),
		accessToken: cfg.AccessToken,
		logger:      slog.Default().With("component", "plaid"),
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// GetTransactions fetches posted transactions within the date range. Pending
// transactions are skipped because Plaid replaces them once they post.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}
	if startDate.After(endDate) {
		return nil, errors.New("start date must be before end date")
	}

	c.logger.Info("Fetching transactions from Plaid",
		"start_date", startDate.Format(model.DateLayout),
		"end_date", endDate.Format(model.DateLayout))

	var allTransactions []plaid.Transaction
	offset := int32(0)
	const pageSize = int32(500) // Plaid's max page size

	for {
		var page []plaid.Transaction

		retryErr := common.WithRetry(ctx, func() error {
			request := plaid.NewTransactionsGetRequest(
				c.accessToken,
				startDate.Format(model.DateLayout),
				endDate.Format(model.DateLayout),
			)
			request.SetOptions(plaid.TransactionsGetRequestOptions{
				Count:  plaid.PtrInt32(pageSize),
				Offset: plaid.PtrInt32(offset),
			})

			resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
			if err != nil {
				return c.classifyError("failed to fetch transactions", err)
			}

			page = resp.GetTransactions()
			c.logger.Debug("Fetched transaction batch",
				"count", len(page),
				"offset", offset,
				"total", resp.GetTotalTransactions())
			return nil
		}, c.retryOpts)
		if retryErr != nil {
			return nil, retryErr
		}

		allTransactions = append(allTransactions, page...)
		if len(page) < int(pageSize) {
			break
		}
		offset += pageSize
	}

	transactions := make([]model.Transaction, 0, len(allTransactions))
	pending := 0
	for _, pt := range allTransactions {
		if pt.GetPending() {
			pending++
			continue
		}
		tx, err := mapPlaidTransaction(pt)
		if err != nil {
			c.logger.Warn("Skipping Plaid transaction",
				"transaction_id", pt.GetTransactionId(),
				"error", err)
			continue
		}
		transactions = append(transactions, tx)
	}

	c.logger.Info("Fetched all transactions",
		"count", len(transactions),
		"pending_skipped", pending)

	return transactions, nil
}

// GetAccounts fetches account IDs from Plaid.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context cannot be nil")
	}

	var accounts []plaid.AccountBase
	retryErr := common.WithRetry(ctx, func() error {
		request := plaid.NewAccountsGetRequest(c.accessToken)
		resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
		if err != nil {
			return c.classifyError("failed to fetch accounts", err)
		}
		accounts = resp.GetAccounts()
		return nil
	}, c.retryOpts)
	if retryErr != nil {
		return nil, retryErr
	}

	accountIDs := make([]string, 0, len(accounts))
	for _, account := range accounts {
		accountIDs = append(accountIDs, account.GetAccountId())
	}
	return accountIDs, nil
}

// classifyError retries rate limits and treats every other API error as
// permanent.
func (c *Client) classifyError(action string, err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if plaidErr.ErrorCode == "RATE_LIMIT_EXCEEDED" {
		c.logger.Warn("Rate limit hit, will retry", "error", plaidErr.ErrorMessage)
		return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrPlaidRateLimit, plaidErr.ErrorMessage), Retryable: true}
	}
	return common.Permanent(fmt.Errorf("%w: %s - %s", common.ErrPlaidConnection, plaidErr.ErrorCode, plaidErr.ErrorMessage))
}

// mapPlaidTransaction converts a Plaid transaction to the dedup model. Plaid
// reports money out as positive, so the sign is flipped. The authorized date
// becomes the primary date when Plaid has one.
func mapPlaidTransaction(pt plaid.Transaction) (model.Transaction, error) {
	posted := pt.GetDate()
	if _, err := time.Parse(model.DateLayout, posted); err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q: %w", posted, err)
	}

	tx := model.Transaction{
		Date:                 posted,
		PostedDate:           model.StringPtr(posted),
		Description:          pt.GetName(),
		ProviderMerchantName: model.StringPtr(pt.GetMerchantName()),
		Amount:               decimal.NewFromFloat(pt.GetAmount()).Neg().Round(2),
		AccountID:            pt.GetAccountId(),
		Source:               model.SourcePlaid,
	}

	if authorized := pt.GetAuthorizedDate(); authorized != "" {
		if _, err := time.Parse(model.DateLayout, authorized); err == nil {
			tx.Date = authorized
			tx.AuthorizedDate = model.StringPtr(authorized)
		}
	}

	if tx.Description == "" {
		tx.Description = tx.MerchantName()
	}
	if tx.Description == "" {
		return model.Transaction{}, errors.New("transaction has no name")
	}

	return tx, nil
}

// Ensure Client implements TransactionFetcher interface.
var _ TransactionFetcher = (*Client)(nil)
