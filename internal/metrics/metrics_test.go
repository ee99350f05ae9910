package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bankimport/internal/importer"
	"bankimport/internal/parser"
	"bankimport/internal/reconciliation"
	"bankimport/internal/resolver"
)

func testResult() *importer.Result {
	return &importer.Result{
		Format: parser.FormatExchange,
		Diagnostics: parser.Diagnostics{
			Seen:          4,
			Parsed:        2,
			Dropped:       map[parser.DropReason]int{parser.DropMissingDate: 1, parser.DropIncompleteSection: 1},
			DateFallbacks: 1,
		},
		Records: []importer.Record{
			{
				Counterparty:   resolver.Resolved{Kind: resolver.KindClient, Source: resolver.SourceTaxID},
				Reconciliation: reconciliation.Result{Classification: reconciliation.ClassVerified},
			},
			{
				Counterparty:   resolver.Unresolved,
				Reconciliation: reconciliation.Result{Classification: reconciliation.ClassNew},
			},
		},
		TaxIDUpdates: []importer.TaxIDUpdate{{ClientID: 1, TaxID: "123456789012", Saved: true}},
	}
}

func TestObserveImport(t *testing.T) {
	r := New()
	r.ObserveImport(testResult(), 150*time.Millisecond)
	r.ObserveImport(testResult(), 50*time.Millisecond)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"imports", testutil.ToFloat64(r.imports.WithLabelValues("exchange")), 2},
		{"rows parsed", testutil.ToFloat64(r.rowsParsed.WithLabelValues("exchange")), 4},
		{"missing date drops", testutil.ToFloat64(r.rowsDropped.WithLabelValues("missing_date")), 2},
		{"date fallbacks", testutil.ToFloat64(r.dateFallbacks), 2},
		{"verified", testutil.ToFloat64(r.classifications.WithLabelValues("verified")), 2},
		{"new", testutil.ToFloat64(r.classifications.WithLabelValues("new")), 2},
		{"tax id source", testutil.ToFloat64(r.resolutions.WithLabelValues("TAX_ID")), 2},
		{"none source", testutil.ToFloat64(r.resolutions.WithLabelValues("NONE")), 2},
		{"tax id updates", testutil.ToFloat64(r.taxIDUpdates), 2},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(r.duration); n != 1 {
		t.Errorf("duration histogram series = %d, want 1", n)
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveImport(testResult(), time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`bankimport_imports_total{format="exchange"} 1`,
		`bankimport_rows_dropped_total{reason="incomplete_section"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
