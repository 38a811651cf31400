package dto

import (
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engine(t *testing.T) *validator.Validate {
	t.Helper()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	return v
}

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := TransferRequest{
		ToUserID: "  7f1c1f7e-9a55-4bd4-9b0b-2c3a1e4d5f60  ",
		Amount:   " 10.50 ",
		OrderID:  " o-1 ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "7f1c1f7e-9a55-4bd4-9b0b-2c3a1e4d5f60", req.ToUserID)
	assert.Equal(t, "10.50", req.Amount)
	assert.Equal(t, "o-1", req.OrderID)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := PaymentRequest{Note: "lunch <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Note, "&lt;script&gt;")
	assert.NotContains(t, req.Note, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	orderID := "  o-9  "
	resp := HoldResponse{OrderID: &orderID}
	SanitizeStruct(&resp)

	assert.Equal(t, "o-9", *resp.OrderID)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s)
	assert.Equal(t, "hello", s)
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	for _, tc := range []string{"ref-001", "REF_002", "a.b.c", "cb:DEPOSIT:o-1"} {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
	for _, tc := range []string{"ref 001", "ref<001>", "ref;DROP", "", "ref\n001"} {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestAmountValidation(t *testing.T) {
	v := engine(t)
	tests := []struct {
		amount string
		valid  bool
	}{
		{"10", true},
		{"0.0001", true},
		{"1234.5678", true},
		{"0", false},
		{"0.0000", false},
		{"-5", false},
		{"1.23456", false},
		{"1e3", false},
		{"abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			req := FundRequest{UserID: uuid.NewString(), Amount: tt.amount, OrderID: "o-1"}
			err := v.Struct(req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTransferRequestValidation(t *testing.T) {
	v := engine(t)

	assert.NoError(t, v.Struct(TransferRequest{ToUserID: uuid.NewString(), Amount: "5"}))
	assert.Error(t, v.Struct(TransferRequest{ToUserID: "not-a-uuid", Amount: "5"}))
	assert.Error(t, v.Struct(TransferRequest{ToUserID: uuid.NewString(), Amount: "5", OrderID: "bad id"}))
}

func TestSettingAndStatusValidation(t *testing.T) {
	v := engine(t)

	assert.NoError(t, v.Struct(SettingRequest{Value: "0.05"}))
	assert.NoError(t, v.Struct(SettingRequest{Value: "-1"}))
	assert.Error(t, v.Struct(SettingRequest{Value: "five"}))

	assert.NoError(t, v.Struct(TransferStatusRequest{Status: "ADMIN_DENIED"}))
	assert.Error(t, v.Struct(TransferStatusRequest{Status: "ADMIN_REQUIRED"}))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 12.30 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.3")))

	_, err = ParseAmount("x")
	assert.Error(t, err)
}

// --- Mapping tests ---

func TestNewOperationResponse(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	main := &domain.Transfer{
		Model:   domain.Model{UUID: uuid.New(), CreatedAt: at},
		Amount:  decimal.RequireFromString("100"),
		Type:    domain.TransferTypeDeposit,
		Status:  domain.TransferStatusSuccess,
		OrderID: domain.OptionalOrderID("o-1"),
	}

	resp := NewOperationResponse(main, nil)
	assert.Equal(t, "DEPOSIT", resp.Transfer.Type)
	assert.Equal(t, "100", resp.Transfer.Amount)
	assert.Equal(t, "2026-03-01T00:00:00Z", resp.Transfer.CreatedAt)
	assert.Nil(t, resp.CashBack)

	cb := &domain.Transfer{Model: domain.Model{UUID: uuid.New()}, Amount: decimal.RequireFromString("3"), Type: domain.TransferTypeCashBack}
	resp = NewOperationResponse(main, cb)
	require.NotNil(t, resp.CashBack)
	assert.Equal(t, "CASHBACK", resp.CashBack.Type)
}

func TestNewLedgerEntryResponses(t *testing.T) {
	entries := []domain.LedgerEntry{{
		Action: domain.Action{
			Balance: domain.NewBalance(decimal.RequireFromString("70"), decimal.RequireFromString("30")),
		},
		Transfer: domain.Transfer{Amount: decimal.RequireFromString("30"), Type: domain.TransferTypeCashBack},
	}}

	out := NewLedgerEntryResponses(entries)
	require.Len(t, out, 1)
	assert.Equal(t, BalanceResponse{Cash: "70", Hold: "30", Total: "100"}, out[0].Balance)
	assert.Equal(t, "30", out[0].Transfer.Amount)

	assert.Empty(t, NewLedgerEntryResponses(nil))
	assert.NotNil(t, NewHoldResponses(nil))
}
