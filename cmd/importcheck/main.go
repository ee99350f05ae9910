// Command importcheck decodes and parses a bank export offline and prints
// what an import would see. With -db it also classifies the transactions
// against an organization's records, without writing anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"bankimport/internal/database"
	"bankimport/internal/decode"
	"bankimport/internal/importer"
	"bankimport/internal/logger"
	"bankimport/internal/parser"
	"bankimport/internal/reconciliation"
)

type options struct {
	path     string
	encoding string
	currency string
	dbPath   string
	orgID    int64
	asJSON   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.encoding, "encoding", "", "force an encoding (utf-8, windows-1251, cp866); detected when empty")
	flag.StringVar(&opts.currency, "currency", parser.DefaultBaseCurrency, "organization base currency")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite database to classify against")
	flag.Int64Var(&opts.orgID, "org", 1, "organization ID, with -db")
	flag.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: importcheck [flags] <statement file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.path = flag.Arg(0)

	if err := run(context.Background(), os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "importcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, opts options) error {
	raw, err := os.ReadFile(opts.path)
	if err != nil {
		return err
	}
	content, err := decode.DecodeUpload(raw, filepath.Base(opts.path), opts.encoding)
	if err != nil {
		return err
	}
	popts := parser.Options{BaseCurrency: opts.currency}

	if opts.dbPath != "" {
		return classify(ctx, w, opts, content, popts)
	}

	res := parser.Parse(content, filepath.Base(opts.path), popts)
	if opts.asJSON {
		return writeJSON(w, res)
	}
	printParse(w, res)
	return nil
}

func classify(ctx context.Context, w io.Writer, opts options, content string, popts parser.Options) error {
	db, err := database.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Logs go to stderr so the report on stdout stays clean.
	ctx = logger.WithLogger(ctx, logger.New(os.Stderr, "warn"))

	in, err := importer.Load(ctx, db, opts.orgID)
	if err != nil {
		return err
	}
	in.FileName = filepath.Base(opts.path)
	in.Content = content
	in.DryRun = true

	im := importer.New(importer.Config{Aliases: db, Parser: popts})
	res, err := im.Import(ctx, in)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return writeJSON(w, res)
	}

	fmt.Fprintf(w, "Format: %s\n", res.Format)
	fmt.Fprintf(w, "Records: %d\n\n", len(res.Records))
	for _, rec := range res.Records {
		txn := rec.Transaction
		matched := ""
		if id := rec.Reconciliation.MatchedLedgerTransactionID; id != nil {
			matched = fmt.Sprintf(" -> #%d", *id)
		}
		fmt.Fprintf(w, "  %s | %14s | %-11s%s | %-9s %-19s | %s\n",
			txn.Date,
			txn.Amount.StringFixed(2),
			rec.Reconciliation.Classification,
			matched,
			rec.Counterparty.Kind,
			rec.Counterparty.Source,
			truncate(txn.CounterpartyName, 40),
		)
	}

	fmt.Fprintln(w, "\nSummary by classification:")
	counts := res.Counts()
	for _, c := range sortedKeys(counts) {
		fmt.Fprintf(w, "  %-12s: %3d\n", c, counts[reconciliation.Classification(c)])
	}
	printDiagnostics(w, res.Diagnostics)
	return nil
}

func printParse(w io.Writer, res parser.Result) {
	fmt.Fprintf(w, "Format: %s\n", res.Format)
	fmt.Fprintf(w, "Transactions: %d\n\n", len(res.Transactions))

	// Summary by payment type
	typeCounts := make(map[string]int)
	typeAmounts := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, txn := range res.Transactions {
		t := string(txn.PaymentType)
		typeCounts[t]++
		typeAmounts[t] = typeAmounts[t].Add(txn.Amount)
		total = total.Add(txn.Amount)
	}

	fmt.Fprintln(w, "Summary by Type:")
	fmt.Fprintln(w, "----------------")
	for _, t := range sortedKeys(typeCounts) {
		fmt.Fprintf(w, "  %-12s: %3d transactions, total: %16s\n", t, typeCounts[t], typeAmounts[t].StringFixed(2))
	}

	fmt.Fprintln(w, "\nAll Transactions:")
	fmt.Fprintln(w, "-----------------")
	for _, txn := range res.Transactions {
		currency := ""
		if txn.ExchangeRate != nil {
			currency = fmt.Sprintf(" [%s %s @ %s]", txn.AmountOriginal.StringFixed(2), txn.Currency, txn.ExchangeRate.String())
		}
		taxID := ""
		if txn.CounterpartyTaxID != "" {
			taxID = fmt.Sprintf(" (%s)", txn.CounterpartyTaxID)
		}
		fmt.Fprintf(w, "  %s | %14s | %-10s | %s%s | %s%s\n",
			txn.Date,
			txn.Amount.StringFixed(2),
			txn.PaymentType,
			truncate(txn.CounterpartyName, 40),
			taxID,
			truncate(txn.Description, 50),
			currency,
		)
	}

	fmt.Fprintf(w, "\nTotal credited: %s\n", total.StringFixed(2))
	printDiagnostics(w, res.Diagnostics)
}

func printDiagnostics(w io.Writer, d parser.Diagnostics) {
	fmt.Fprintln(w, "\nDiagnostics:")
	fmt.Fprintln(w, "------------")
	fmt.Fprintf(w, "  Records seen:   %d\n", d.Seen)
	fmt.Fprintf(w, "  Parsed:         %d\n", d.Parsed)
	fmt.Fprintf(w, "  Date fallbacks: %d\n", d.DateFallbacks)
	for _, reason := range sortedKeys(d.Dropped) {
		fmt.Fprintf(w, "  Dropped %-20s %d\n", reason+":", d.Dropped[parser.DropReason(reason)])
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
