// Package simplefin fetches transactions from a SimpleFIN Bridge access URL.
package simplefin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Client fetches posted transactions from SimpleFIN.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	accessURL  string
}

type accountSet struct {
	Errors   []string  `json:"errors"`
	Accounts []account `json:"accounts"`
}

type account struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Payee        string `json:"payee"`
	Posted       int64  `json:"posted"`
	TransactedAt int64  `json:"transacted_at"`
	Pending      bool   `json:"pending"`
}

// NewClient claims token on first use, or reuses the access URL saved in
// stateDir.
func NewClient(token, stateDir string) (*Client, error) {
	auth, err := LoadOrClaimAuth(token, stateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load/claim auth: %w", err)
	}
	return NewClientWithAccessURL(auth.AccessURL), nil
}

// NewClientWithAccessURL creates a client for an already claimed access URL.
func NewClientWithAccessURL(accessURL string) *Client {
	return &Client{
		accessURL:  strings.TrimRight(accessURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "simplefin"),
	}
}

// GetTransactions fetches posted transactions within [startDate, endDate].
// The posting date is the primary date and transacted_at, when present, the
// authorized date.
func (c *Client) GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error) {
	if startDate.After(endDate) {
		return nil, errors.New("start date must be before end date")
	}

	params := url.Values{}
	params.Set("start-date", strconv.FormatInt(startDate.Unix(), 10))
	// end-date is exclusive.
	params.Set("end-date", strconv.FormatInt(endDate.AddDate(0, 0, 1).Unix(), 10))

	set, err := c.fetchAccounts(ctx, params)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	skipped := 0
	for _, acct := range set.Accounts {
		for _, tx := range acct.Transactions {
			if tx.Pending || tx.Posted == 0 {
				continue
			}
			posted := time.Unix(tx.Posted, 0).UTC()
			if posted.Before(startDate) || posted.After(endDate.AddDate(0, 0, 1)) {
				continue
			}

			modelTx, err := convertTransaction(tx, acct.ID)
			if err != nil {
				skipped++
				c.logger.Warn("Skipping SimpleFIN transaction",
					"account", acct.ID,
					"id", tx.ID,
					"error", err)
				continue
			}
			transactions = append(transactions, modelTx)
		}
	}

	c.logger.Info("Fetched SimpleFIN transactions",
		"accounts", len(set.Accounts),
		"count", len(transactions),
		"skipped", skipped)

	return transactions, nil
}

// GetAccounts returns the list of account IDs.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	set, err := c.fetchAccounts(ctx, url.Values{"balances-only": {"1"}})
	if err != nil {
		return nil, err
	}
	accountIDs := make([]string, 0, len(set.Accounts))
	for _, acct := range set.Accounts {
		accountIDs = append(accountIDs, acct.ID)
	}
	return accountIDs, nil
}

func (c *Client) fetchAccounts(ctx context.Context, params url.Values) (*accountSet, error) {
	u, err := url.Parse(c.accessURL + "/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Requesting SimpleFIN accounts", "params", u.RawQuery)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("SimpleFIN API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var set accountSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: failed to decode SimpleFIN response: %w", common.ErrMalformedInput, err)
	}
	for _, msg := range set.Errors {
		c.logger.Warn("SimpleFIN reported an error", "message", msg)
	}
	return &set, nil
}

func convertTransaction(tx transaction, accountID string) (model.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q: %w", tx.Amount, err)
	}

	description := strings.TrimSpace(tx.Description)
	payee := strings.TrimSpace(tx.Payee)
	if description == "" {
		description = payee
	}
	if description == "" {
		return model.Transaction{}, errors.New("transaction has no description")
	}

	posted := time.Unix(tx.Posted, 0).UTC().Format(model.DateLayout)
	modelTx := model.Transaction{
		Date:                 posted,
		PostedDate:           model.StringPtr(posted),
		Description:          description,
		ProviderMerchantName: model.StringPtr(payee),
		Amount:               amount,
		AccountID:            accountID,
		Source:               model.SourceSimpleFIN,
	}
	if tx.TransactedAt != 0 {
		modelTx.AuthorizedDate = model.StringPtr(time.Unix(tx.TransactedAt, 0).UTC().Format(model.DateLayout))
	}
	return modelTx, nil
}
