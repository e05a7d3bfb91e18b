package http

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"expenseform/internal/core"
)

const maxBodyBytes = 1 << 20

// recordRequest is the JSON shape clients send for create and update.
// Money fields are decimal strings ("30.00"); dates are YYYY-MM-DD.
type recordRequest struct {
	Date                string              `json:"date"`
	Place               string              `json:"place"`
	Amount              string              `json:"amount"`
	Category            string              `json:"category"`
	PaymentInstrumentID string              `json:"paymentInstrumentId"`
	PostedDate          string              `json:"postedDate,omitempty"`
	FutureMonths        int                 `json:"futureMonths,omitempty"`
	OriginalCost        string              `json:"originalCost,omitempty"`
	InsuranceEligible   bool                `json:"insuranceEligible,omitempty"`
	ClaimStatus         string              `json:"claimStatus,omitempty"`
	People              []allocationRequest `json:"people,omitempty"`
	Invoices            []invoiceRequest    `json:"invoices,omitempty"`
}

type allocationRequest struct {
	PersonID string `json:"personId"`
	// Amount is optional; when every entry omits it the split is equal.
	Amount string `json:"amount,omitempty"`
}

type invoiceRequest struct {
	ID       string `json:"id,omitempty"`
	FileName string `json:"fileName"`
}

func decodeRecordRequest(body io.Reader) (*recordRequest, error) {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	var req recordRequest
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return &req, nil
}

func parseDateField(name, value string) (core.Date, error) {
	if strings.TrimSpace(value) == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", name, value)
	}
	return core.Date{Time: t}, nil
}

func parseMoneyField(name, value string) (core.Money, error) {
	if strings.TrimSpace(value) == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(value)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return core.Money{Cents: cents}, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
