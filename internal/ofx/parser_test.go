package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-reconcile/internal/common"
	"github.com/Veraticus/spice-reconcile/internal/model"
)

const ofxHeader = `OFXHEADER:100
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
<DTSERVER>20250131120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
`

const sampleBankOFX = ofxHeader + `<BANKMSGSRSV1>
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
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<DTUSER>20250113120000[0:GMT]
<TRNAMT>-22.77
<FITID>2025011501
<NAME>AplPay BURRITO BARN 1249RIVERDALE XX
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2025012001
<NAME>PURCHASE
<MEMO>HARDWARE DEPOT #44
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250125120000[0:GMT]
<TRNAMT>1500.00
<FITID>2025012501
<NAME>PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = ofxHeader + `<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>Info
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250110120000[0:GMT]
<TRNAMT>-45.67
<FITID>CC2025011001
<PAYEE>
<NAME>Amazon Web Services
<ADDR1>410 Terry Ave N
<CITY>Seattle
<STATE>WA
<POSTALCODE>98109
<PHONE>2065551234
</PAYEE>
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseBankTransactions(t *testing.T) {
	parser := NewParser(common.DiscardLogger())

	txs, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	burrito := txs[0]
	assert.Equal(t, "AplPay BURRITO BARN 1249RIVERDALE XX", burrito.Description)
	assert.Equal(t, "2025-01-15", burrito.Date)
	require.NotNil(t, burrito.AuthorizedDate)
	assert.Equal(t, "2025-01-13", *burrito.AuthorizedDate)
	assert.True(t, burrito.Amount.Equal(decimal.RequireFromString("-22.77")))
	assert.Equal(t, "1234567890", burrito.AccountID)
	assert.Equal(t, model.SourceOFX, burrito.Source)
	assert.Nil(t, burrito.ProviderMerchantName)

	assert.Equal(t, "HARDWARE DEPOT #44", txs[1].Description, "generic NAME falls back to MEMO")
	assert.Nil(t, txs[1].AuthorizedDate)

	assert.True(t, txs[2].Amount.IsPositive(), "credits stay positive")
}

func TestParseCreditCardTransactions(t *testing.T) {
	parser := NewParser(common.DiscardLogger())

	txs, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "Amazon Web Services", tx.Description)
	assert.Equal(t, "Amazon Web Services", tx.MerchantName())
	assert.Equal(t, "4111111111111111", tx.AccountID)
	assert.Equal(t, "2025-01-10", tx.Date)
}

func TestParseFileErrors(t *testing.T) {
	parser := NewParser(common.DiscardLogger())

	t.Run("not OFX", func(t *testing.T) {
		_, err := parser.ParseFile(context.Background(), strings.NewReader("date,amount\n"))
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := parser.ParseFile(ctx, strings.NewReader(sampleBankOFX))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPreprocessOFX(t *testing.T) {
	parser := NewParser(common.DiscardLogger())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "leading blank lines",
			in:   "\n\n  OFXHEADER:100",
			want: "OFXHEADER:100",
		},
		{
			name: "mixed case severity",
			in:   "<SEVERITY>Info</SEVERITY>",
			want: "<SEVERITY>INFO</SEVERITY>",
		},
		{
			name: "unclosed tag",
			in:   "<STMTTRN\n<TRNTYPE>DEBIT",
			want: "<STMTTRN>\n<TRNTYPE>DEBIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.preprocessOFX(tt.in))
		})
	}
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("purchase"))
	assert.False(t, isGenericDescription("PURCHASE AT BURRITO BARN"))
}
