// Package importer runs a bank export through detection, parsing,
// counterparty resolution and reconciliation.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankimport/internal/logger"
	"bankimport/internal/models"
	"bankimport/internal/parser"
	"bankimport/internal/reconciliation"
	"bankimport/internal/resolver"
	"bankimport/internal/textnorm"
)

// AliasStore persists confirmed counterparty aliases.
type AliasStore interface {
	GetAliases(ctx context.Context, orgID int64) ([]models.CounterpartyAlias, error)
	// SaveAlias upserts on tax ID when one is given and inserts otherwise.
	SaveAlias(ctx context.Context, orgID int64, normalizedName, taxID string, clientID int64) error
}

// TaxIDSink receives tax IDs discovered for clients that have none on file.
// Implementations must not overwrite a populated value.
type TaxIDSink interface {
	SetClientTaxIDIfEmpty(ctx context.Context, orgID, clientID int64, taxID string) (bool, error)
}

// Directory loads the per-organization lookup tables of an import.
type Directory interface {
	ListClients(ctx context.Context, orgID int64) ([]models.Client, error)
	ListEmployees(ctx context.Context, orgID int64, activeOnly bool) ([]models.Employee, error)
	ListLedgerTransactions(ctx context.Context, orgID int64) ([]models.LedgerTransaction, error)
}

// Observer is told about every finished import.
type Observer interface {
	ObserveImport(res *Result, elapsed time.Duration)
}

// ErrEmptyAlias is returned when an alias has neither a usable name nor a
// tax ID.
var ErrEmptyAlias = errors.New("save alias: name and tax id are both empty")

// Config wires an Importer. Cache, TaxIDs and Observer are optional.
type Config struct {
	Aliases  AliasStore
	Cache    *resolver.AliasCache
	TaxIDs   TaxIDSink
	Observer Observer
	Parser   parser.Options
}

type Importer struct {
	aliases  AliasStore
	cache    *resolver.AliasCache
	taxIDs   TaxIDSink
	observer Observer
	opts     parser.Options
	now      func() time.Time
}

func New(cfg Config) *Importer {
	return &Importer{
		aliases:  cfg.Aliases,
		cache:    cfg.Cache,
		taxIDs:   cfg.TaxIDs,
		observer: cfg.Observer,
		opts:     cfg.Parser,
		now:      time.Now,
	}
}

// Input is one file plus the lookup tables of its organization.
type Input struct {
	OrganizationID int64
	FileName       string
	Content        string
	Clients        []models.Client
	Employees      []models.Employee
	Ledger         []models.LedgerTransaction
	// DryRun skips the tax-ID sink and the observer; discovered tax IDs are
	// still reported.
	DryRun bool
}

// Load fills an Input with the clients, active employees and ledger of an
// organization.
func Load(ctx context.Context, dir Directory, orgID int64) (Input, error) {
	clients, err := dir.ListClients(ctx, orgID)
	if err != nil {
		return Input{}, fmt.Errorf("load clients: %w", err)
	}
	employees, err := dir.ListEmployees(ctx, orgID, true)
	if err != nil {
		return Input{}, fmt.Errorf("load employees: %w", err)
	}
	ledger, err := dir.ListLedgerTransactions(ctx, orgID)
	if err != nil {
		return Input{}, fmt.Errorf("load ledger: %w", err)
	}
	return Input{OrganizationID: orgID, Clients: clients, Employees: employees, Ledger: ledger}, nil
}

// Import classifies every transaction of in.Content. Transactions are
// resolved and reconciled one at a time in file order.
func (im *Importer) Import(ctx context.Context, in Input) (*Result, error) {
	log := logger.FromContext(ctx)
	start := im.now()

	aliases, err := im.loadAliases(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}

	parsed := parser.Parse(in.Content, in.FileName, im.opts)
	if dropped := parsed.Diagnostics.DroppedTotal(); dropped > 0 {
		log.Debug("import_rows_dropped",
			"org_id", in.OrganizationID,
			"file", in.FileName,
			"dropped", dropped,
			"reasons", parsed.Diagnostics.Dropped,
		)
	}

	res := &Result{
		OrganizationID: in.OrganizationID,
		FileName:       in.FileName,
		Format:         parsed.Format,
		Diagnostics:    parsed.Diagnostics,
		Records:        make([]Record, 0, len(parsed.Transactions)),
	}

	r := resolver.New(resolver.Directory{Clients: in.Clients, Aliases: aliases, Employees: in.Employees})
	m := reconciliation.NewMatcher(in.Ledger)

	for _, txn := range parsed.Transactions {
		cp := r.Resolve(txn.CounterpartyName, txn.CounterpartyTaxID)

		if update, ok := im.discoverTaxID(ctx, r, in, txn, cp); ok {
			res.TaxIDUpdates = append(res.TaxIDUpdates, update)
		}

		rec, err := m.Match(txn, cp)
		if err != nil {
			return nil, fmt.Errorf("reconcile transaction: %w", err)
		}
		res.Records = append(res.Records, Record{Transaction: txn, Counterparty: cp, Reconciliation: rec})
	}

	elapsed := im.now().Sub(start)
	counts := res.Counts()
	log.Info("import_classified",
		"org_id", in.OrganizationID,
		"file", in.FileName,
		"format", res.Format,
		"parsed", res.Diagnostics.Parsed,
		"dropped", res.Diagnostics.DroppedTotal(),
		"new", counts[reconciliation.ClassNew],
		"verified", counts[reconciliation.ClassVerified],
		"discrepancy", counts[reconciliation.ClassDiscrepancy],
		"duplicate", counts[reconciliation.ClassDuplicate],
		"duration_ms", elapsed.Milliseconds(),
	)
	// Previews are not imports; the job for the same file is counted later.
	if im.observer != nil && !in.DryRun {
		im.observer.ObserveImport(res, elapsed)
	}
	return res, nil
}

// discoverTaxID reports a tax ID for a client matched by alias or name that
// has none on file, and records it in the resolver so later rows of the same
// file match by tax ID.
func (im *Importer) discoverTaxID(ctx context.Context, r *resolver.Resolver, in Input, txn parser.RawTransaction, cp resolver.Resolved) (TaxIDUpdate, bool) {
	if txn.CounterpartyTaxID == "" || cp.Kind != resolver.KindClient {
		return TaxIDUpdate{}, false
	}
	if cp.Source != resolver.SourceAlias && cp.Source != resolver.SourceNameFuzzy {
		return TaxIDUpdate{}, false
	}
	clientID := *cp.EntityID
	if !r.SetClientTaxID(clientID, txn.CounterpartyTaxID) {
		return TaxIDUpdate{}, false
	}

	update := TaxIDUpdate{ClientID: clientID, TaxID: txn.CounterpartyTaxID}
	if in.DryRun || im.taxIDs == nil {
		return update, true
	}
	log := logger.FromContext(ctx)
	saved, err := im.taxIDs.SetClientTaxIDIfEmpty(ctx, in.OrganizationID, clientID, txn.CounterpartyTaxID)
	if err != nil {
		log.Warn("client_tax_id_update_failed", "org_id", in.OrganizationID, "client_id", clientID, "error", err.Error())
		return update, true
	}
	update.Saved = saved
	if saved {
		log.Info("client_tax_id_updated", "org_id", in.OrganizationID, "client_id", clientID)
	}
	return update, true
}

func (im *Importer) loadAliases(ctx context.Context, orgID int64) ([]models.CounterpartyAlias, error) {
	if im.cache != nil {
		if aliases, ok := im.cache.Get(orgID); ok {
			return aliases, nil
		}
	}
	if im.aliases == nil {
		return nil, nil
	}
	aliases, err := im.aliases.GetAliases(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	if im.cache != nil {
		im.cache.Put(orgID, aliases)
	}
	return aliases, nil
}

// ConfirmAlias stores a human-confirmed binding of a bank counterparty to a
// client and drops the organization's cached aliases.
func (im *Importer) ConfirmAlias(ctx context.Context, orgID int64, bankName, taxID string, clientID int64) error {
	if im.aliases == nil {
		return fmt.Errorf("save alias: no alias store configured")
	}
	normalized := textnorm.ComparableForm(bankName)
	if normalized == "" && taxID == "" {
		return ErrEmptyAlias
	}
	if err := im.aliases.SaveAlias(ctx, orgID, normalized, taxID, clientID); err != nil {
		return fmt.Errorf("save alias: %w", err)
	}
	if im.cache != nil {
		im.cache.Invalidate(orgID)
	}

	logger.FromContext(ctx).Info("alias_saved",
		"org_id", orgID,
		"client_id", clientID,
		"has_tax_id", taxID != "",
	)
	return nil
}
