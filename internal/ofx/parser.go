// Package ofx imports OFX/QFX bank and credit card statements as income and
// expense transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"

	"github.com/Veraticus/the-cash-must-flow/internal/model"
)

// Default categories for statement rows that carry no better hint.
const (
	DefaultIncomeCategory  = "Uncategorized Income"
	DefaultExpenseCategory = "Uncategorized"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening tags at end of line that lost their closing bracket.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger          *slog.Logger
	incomeCategory  string
	expenseCategory string
}

// Option configures a Parser.
type Option func(*Parser)

// WithCategories overrides the fallback income and expense categories.
func WithCategories(income, expense string) Option {
	return func(p *Parser) {
		if income != "" {
			p.incomeCategory = income
		}
		if expense != "" {
			p.expenseCategory = expense
		}
	}
}

// WithLogger sets the parser's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a new OFX parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		logger:          slog.Default(),
		incomeCategory:  DefaultIncomeCategory,
		expenseCategory: DefaultExpenseCategory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file. Credits become income and debits become
// expenses; zero-amount rows are dropped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList != nil {
				transactions = p.appendConverted(transactions, stmt.BankTranList.Transactions)
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList != nil {
				transactions = p.appendConverted(transactions, stmt.BankTranList.Transactions)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) appendConverted(dst []model.Transaction, rows []ofxgo.Transaction) []model.Transaction {
	for _, row := range rows {
		txn, ok := p.convertTransaction(row)
		if !ok {
			p.logger.Debug("skipping zero-amount OFX row", "fitid", string(row.FiTID))
			continue
		}
		dst = append(dst, txn)
	}
	return dst
}

// convertTransaction converts an OFX row. OFX signs amounts: negative is money out.
func (p *Parser) convertTransaction(row ofxgo.Transaction) (model.Transaction, bool) {
	signed, _ := row.TrnAmt.Float64()
	if signed == 0 {
		return model.Transaction{}, false
	}

	txn := model.Transaction{
		ID:          string(row.FiTID),
		Date:        civil.DateOf(row.DtPosted.Time),
		Description: p.extractMerchantName(row),
		Type:        model.TransactionTypeIncome,
		Amount:      signed,
		Category:    p.incomeCategory,
	}
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if signed < 0 {
		txn.Type = model.TransactionTypeExpense
		txn.Amount = -signed
		txn.Category = p.expenseCategory
	}

	switch row.TrnType {
	case ofxgo.TrnTypeInt, ofxgo.TrnTypeDiv:
		if txn.Type == model.TransactionTypeIncome {
			txn.Category = "Interest"
		}
	case ofxgo.TrnTypeFee, ofxgo.TrnTypeSrvChg:
		if txn.Type == model.TransactionTypeExpense {
			txn.Category = "Bank Fees"
		}
	case ofxgo.TrnTypeATM:
		if txn.Type == model.TransactionTypeExpense {
			txn.Category = "Cash & ATM"
		}
	}

	return txn, true
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"ACH CREDIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "DEPOSIT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts extracts the sorted unique account IDs from the OFX file.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	accountMap := make(map[string]bool)
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankAcctFrom.AcctID != "" {
			accountMap[string(stmt.BankAcctFrom.AcctID)] = true
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.CCAcctFrom.AcctID != "" {
			accountMap[string(stmt.CCAcctFrom.AcctID)] = true
		}
	}

	accounts := make([]string, 0, len(accountMap))
	for acct := range accountMap {
		accounts = append(accounts, acct)
	}
	sort.Strings(accounts)
	return accounts, nil
}
