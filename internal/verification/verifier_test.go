package verification

import (
	"context"
	"testing"
	"time"

	"market-sentiment-lab/internal/domain"
	"market-sentiment-lab/internal/storage/memory"
)

func ptrFloat64(v float64) *float64 { return &v }

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCompareSeries_ExactMatch(t *testing.T) {
	quotes := []*domain.Quote{
		{Date: day(1), Close: 100},
		{Date: day(2), Close: 110, PctChange: ptrFloat64(10)},
		{Date: day(3), Close: 99, PctChange: ptrFloat64(-10)},
	}

	if divs := CompareSeries("GGAL", quotes); len(divs) != 0 {
		t.Errorf("expected no divergences, got %v", divs)
	}
}

func TestCompareSeries_Divergent(t *testing.T) {
	quotes := []*domain.Quote{
		{Date: day(1), Close: 100, PctChange: ptrFloat64(5)},
		{Date: day(2), Close: 110, PctChange: ptrFloat64(10.5)},
		{Date: day(3), Close: 99},
	}

	divs := CompareSeries("GGAL", quotes)
	if len(divs) != 3 {
		t.Fatalf("expected 3 divergences, got %d: %v", len(divs), divs)
	}
	if divs[0].Expected != nil || divs[0].Actual == nil {
		t.Errorf("expected first divergence to replay null, got %s", divs[0])
	}
	if divs[2].Actual != nil || divs[2].Expected == nil {
		t.Errorf("expected last divergence to store null, got %s", divs[2])
	}
}

func TestCompareSeries_WithinTolerance(t *testing.T) {
	quotes := []*domain.Quote{
		{Date: day(1), Close: 100},
		{Date: day(2), Close: 110, PctChange: ptrFloat64(10.00000001)},
	}

	if divs := CompareSeries("GGAL", quotes); len(divs) != 0 {
		t.Errorf("expected no divergences within tolerance, got %v", divs)
	}
}

func TestQuoteVerifier_VerifyAll(t *testing.T) {
	ctx := context.Background()
	companies := memory.NewCompanyStore()
	quotes := memory.NewQuoteStore()

	good := domain.NewPlaceholderCompany("GGAL")
	bad := domain.NewPlaceholderCompany("YPF")
	for _, c := range []*domain.Company{good, bad} {
		if err := companies.Insert(ctx, c); err != nil {
			t.Fatalf("insert company: %v", err)
		}
	}

	rows := []*domain.Quote{
		{CompanyID: good.ID, Date: day(1), Close: 100},
		{CompanyID: good.ID, Date: day(2), Close: 110, PctChange: ptrFloat64(10)},
		{CompanyID: bad.ID, Date: day(1), Close: 20},
		{CompanyID: bad.ID, Date: day(2), Close: 30, PctChange: ptrFloat64(10)},
	}
	if err := quotes.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("insert quotes: %v", err)
	}

	report, err := NewQuoteVerifier(companies, quotes).VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if report.TotalSeries != 2 || report.MatchedSeries != 1 || report.DivergentSeries != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Results[0].Ticker != "GGAL" || !report.Results[0].Match {
		t.Errorf("expected GGAL to match, got %+v", report.Results[0])
	}
	yf := report.Results[1]
	if yf.Ticker != "YPF" || yf.Match || len(yf.Divergences) != 1 {
		t.Errorf("expected one YPF divergence, got %+v", yf)
	}
}

func TestQuoteVerifier_UnknownTicker(t *testing.T) {
	v := NewQuoteVerifier(memory.NewCompanyStore(), memory.NewQuoteStore())
	if _, err := v.VerifyCompany(context.Background(), "NOPE"); err == nil {
		t.Error("expected error for unknown ticker")
	}
}
