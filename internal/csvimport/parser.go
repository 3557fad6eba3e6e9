// Package csvimport reads bank and card CSV exports with loosely named
// columns.
package csvimport

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

// Header aliases, matched case-insensitively after trimming.
var columnAliases = map[string][]string{
	colPosted:     {"date", "post date", "posting date", "posted date", "posted"},
	colAuthorized: {"transaction date", "trans date", "trans. date", "authorized date"},
	colDesc:       {"description", "payee", "name", "details", "memo", "transaction"},
	colMerchant:   {"merchant", "merchant name"},
	colAmount:     {"amount", "transaction amount"},
	colDebit:      {"debit", "withdrawal", "withdrawals", "money out"},
	colCredit:     {"credit", "deposit", "deposits", "money in"},
	colAccount:    {"account", "account id", "account number", "card"},
}

const (
	colPosted     = "posted"
	colAuthorized = "authorized"
	colDesc       = "description"
	colMerchant   = "merchant"
	colAmount     = "amount"
	colDebit      = "debit"
	colCredit     = "credit"
	colAccount    = "account"
)

var dateLayouts = []string{
	model.DateLayout,
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"Jan 2, 2006",
	"02 Jan 2006",
	"2 Jan 2006",
}

// Options configures a Parser.
type Options struct {
	Logger    *slog.Logger
	AccountID string // Used when the file has no account column
	// InvertSign flips amounts for exports that list charges as positive.
	InvertSign bool
}

// RowError describes a row that could not be imported.
type RowError struct {
	Err  error
	Line int
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result holds the parsed transactions and the rows that were skipped.
type Result struct {
	Transactions []model.Transaction
	Skipped      []RowError
}

// Parser converts CSV exports into transactions.
type Parser struct {
	logger *slog.Logger
	opts   Options
}

// NewParser creates a CSV parser.
func NewParser(opts Options) *Parser {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "csvimport"), opts: opts}
}

// ParseFile reads a CSV export. A missing required column fails the whole
// file; a malformed row is skipped and reported in Result.Skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*Result, error) {
	csvReader := csv.NewReader(bufio.NewReader(reader))
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	headers, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV file", common.ErrNoTransactions)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading CSV headers: %w", err)
	}

	columns, err := mapColumns(headers)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			result.Skipped = append(result.Skipped, RowError{Line: line, Err: err})
			continue
		}
		line, _ := csvReader.FieldPos(0)
		if isBlank(record) {
			continue
		}

		tx, err := p.parseRecord(record, columns)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Err: err})
			continue
		}
		result.Transactions = append(result.Transactions, tx)

		if len(result.Transactions)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	for _, skipped := range result.Skipped {
		p.logger.Warn("Skipped CSV row", "line", skipped.Line, "error", skipped.Err)
	}
	p.logger.Info("Parsed CSV file",
		"total_transactions", len(result.Transactions),
		"skipped", len(result.Skipped))

	return result, nil
}

// mapColumns resolves each logical column to its index. The first matching
// header wins.
func mapColumns(headers []string) (map[string]int, error) {
	byName := make(map[string]int, len(headers))
	for i, header := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if _, seen := byName[name]; !seen {
			byName[name] = i
		}
	}

	columns := make(map[string]int)
	for col, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := byName[alias]; ok {
				columns[col] = idx
				break
			}
		}
	}

	_, hasPosted := columns[colPosted]
	_, hasAuthorized := columns[colAuthorized]
	if !hasPosted && !hasAuthorized {
		return nil, fmt.Errorf("%w: no date column in %v", common.ErrMalformedInput, headers)
	}
	if _, ok := columns[colDesc]; !ok {
		return nil, fmt.Errorf("%w: no description column in %v", common.ErrMalformedInput, headers)
	}
	_, hasAmount := columns[colAmount]
	_, hasDebit := columns[colDebit]
	_, hasCredit := columns[colCredit]
	if !hasAmount && !hasDebit && !hasCredit {
		return nil, fmt.Errorf("%w: no amount column in %v", common.ErrMalformedInput, headers)
	}
	return columns, nil
}

func (p *Parser) parseRecord(record []string, columns map[string]int) (model.Transaction, error) {
	field := func(col string) string {
		idx, ok := columns[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	posted, err := parseOptionalDate(field(colPosted))
	if err != nil {
		return model.Transaction{}, err
	}
	authorized, err := parseOptionalDate(field(colAuthorized))
	if err != nil {
		return model.Transaction{}, err
	}
	if posted == "" && authorized == "" {
		return model.Transaction{}, errors.New("missing date")
	}

	description := field(colDesc)
	if description == "" {
		return model.Transaction{}, errors.New("missing description")
	}

	amount, err := p.rowAmount(field)
	if err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		Date:                 posted,
		Description:          description,
		ProviderMerchantName: model.StringPtr(field(colMerchant)),
		Amount:               amount,
		AccountID:            field(colAccount),
		Source:               model.SourceCSV,
	}
	if tx.AccountID == "" {
		tx.AccountID = p.opts.AccountID
	}
	switch {
	case posted == "":
		tx.Date = authorized
	case authorized != "" && authorized != posted:
		tx.AuthorizedDate = model.StringPtr(authorized)
	}
	return tx, nil
}

// rowAmount reads either a signed amount column or a debit/credit pair.
// Debits are money out and become negative.
func (p *Parser) rowAmount(field func(string) string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	if raw := field(colAmount); raw != "" {
		parsed, err := ParseAmount(raw)
		if err != nil {
			return decimal.Zero, err
		}
		amount = parsed
	} else {
		debit, credit := field(colDebit), field(colCredit)
		if debit == "" && credit == "" {
			return decimal.Zero, errors.New("missing amount")
		}
		if debit != "" {
			parsed, err := ParseAmount(debit)
			if err != nil {
				return decimal.Zero, err
			}
			amount = amount.Sub(parsed.Abs())
		}
		if credit != "" {
			parsed, err := ParseAmount(credit)
			if err != nil {
				return decimal.Zero, err
			}
			amount = amount.Add(parsed.Abs())
		}
	}

	if p.opts.InvertSign {
		amount = amount.Neg()
	}
	return amount, nil
}

// ParseAmount accepts currency symbols, thousands separators, a trailing or
// leading minus and accounting parentheses.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "", "USD", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "+")

	amount, err := decimal.NewFromString(s)
	if err != nil || s == "" {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

func parseOptionalDate(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	date, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return date, nil
}

// ParseDate normalizes a date in any of the accepted layouts to YYYY-MM-DD.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
