package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/testutil"
	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240122120000[0:GMT]
<TRNAMT>1500.00
<FITID>2024012201
<NAME>CREDIT
<MEMO>ACME CORP INVOICE 1001
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{name: "valid bank statement", ofxData: sampleBankOFX, expectedCount: 4},
		{name: "valid credit card statement", ofxData: sampleCreditCardOFX, expectedCount: 2},
		{name: "invalid OFX data", ofxData: "not valid OFX", expectedError: true},
		{name: "empty OFX", ofxData: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statements, err := NewParser(nil).Parse(context.Background(), strings.NewReader(tt.ofxData))
			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, statements, 1)
			assert.Len(t, statements[0].Transactions, tt.expectedCount)
		})
	}
}

func TestParseBankTransactions(t *testing.T) {
	statements, err := NewParser(nil).Parse(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "1234567890", statements[0].AccountID)
	assert.Equal(t, "bank", statements[0].Kind)

	txns := statements[0].Transactions
	require.Len(t, txns, 4)

	coffee := txns[0]
	require.NotNil(t, coffee.ProviderTransactionID)
	assert.Equal(t, "ofx:2024011501", *coffee.ProviderTransactionID)
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Description)
	assert.Equal(t, "STARBUCKS STORE #1234", coffee.Vendor)
	assert.Equal(t, "25.5", coffee.Amount.String())
	assert.Equal(t, model.TypeExpense, coffee.Type)
	assert.Equal(t, model.SourceOFX, coffee.Source)
	assert.Equal(t, "2024-01-15", coffee.Date.Format("2006-01-02"))

	deposit := txns[2]
	assert.Equal(t, "1500", deposit.Amount.String())
	assert.Equal(t, model.TypeIncome, deposit.Type)
	assert.Equal(t, "ACME CORP INVOICE 1001", deposit.Vendor, "generic NAME falls back to MEMO")

	check := txns[3]
	assert.Equal(t, "CHECK #1234", check.Description)
	assert.Equal(t, "500", check.Amount.String())
	assert.Equal(t, model.TypeExpense, check.Type)
}

func TestParseCreditCardTransactions(t *testing.T) {
	statements, err := NewParser(nil).Parse(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Equal(t, "4111111111111111", statements[0].AccountID)
	assert.Equal(t, "credit_card", statements[0].Kind)

	txns := statements[0].Transactions
	require.Len(t, txns, 2)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", txns[0].Description)
	assert.Equal(t, "45.99", txns[0].Amount.String())
	assert.Equal(t, "ofx:CC2024011501", *txns[1].ProviderTransactionID)
}

func TestPreprocessOFX(t *testing.T) {
	in := "\n\n  <SEVERITY>Info</SEVERITY>\n<CODE\n"
	assert.Equal(t, "<SEVERITY>INFO</SEVERITY>\n<CODE>\n", preprocessOFX(in))
}

func TestExtractMerchantName(t *testing.T) {
	tests := []struct {
		name     string
		tx       ofxgo.Transaction
		expected string
	}{
		{name: "remove POS prefix", tx: ofxgo.Transaction{Name: "POS PURCHASE STARBUCKS"}, expected: "STARBUCKS"},
		{name: "remove DEBIT CARD prefix", tx: ofxgo.Transaction{Name: "DEBIT CARD PURCHASE WHOLE FOODS"}, expected: "WHOLE FOODS"},
		{name: "keep clean name", tx: ofxgo.Transaction{Name: "NETFLIX.COM"}, expected: "NETFLIX.COM"},
		{name: "trim whitespace", tx: ofxgo.Transaction{Name: "  AMAZON.COM  "}, expected: "AMAZON.COM"},
		{name: "strip posting date", tx: ofxgo.Transaction{Name: "01/15 UBER TRIP"}, expected: "UBER TRIP"},
		{name: "generic name uses memo", tx: ofxgo.Transaction{Name: "PAYMENT", Memo: "CITY OF AUSTIN UTIL"}, expected: "CITY OF AUSTIN UTIL"},
		{name: "payee wins", tx: ofxgo.Transaction{Name: "ACH DEBIT 1234", Payee: &ofxgo.Payee{Name: "Gusto"}}, expected: "Gusto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractMerchantName(tt.tx))
		})
	}
}

func TestImport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	parser := NewParser(nil)

	result, err := parser.Import(context.Background(), db.Storage, db.UserID, "", strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Accounts: []string{"1234567890"}, Parsed: 4, Inserted: 4}, result)

	result, err = parser.Import(context.Background(), db.Storage, db.UserID, "", strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 4, result.Existing)

	ids, err := db.Storage.ProviderTransactionIDs(context.Background(), db.UserID)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	assert.Contains(t, ids, "ofx:2024012201")
}
