// Package resolver matches a bank counterparty to a known client or employee.
//
// Matching is a precedence policy, not a ranking. Tax-ID evidence outranks
// name evidence and clients outrank employees:
//
//  1. client tax ID (BIN or IIN)
//  2. employee IIN, digits only, at least 10 digits
//  3. confirmed alias, by tax ID and then by normalized name
//  4. client name, exact normalized form and then the partial rule
//  5. employee name, same rule as 4
//
// Within a step the first acceptable candidate in directory order wins.
// There is no best-score selection, so results depend on input order.
package resolver

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"bankimport/internal/models"
	"bankimport/internal/textnorm"
)

// Kind is the type of entity a counterparty resolved to.
type Kind string

const (
	KindClient     Kind = "CLIENT"
	KindEmployee   Kind = "EMPLOYEE"
	KindUnresolved Kind = "UNRESOLVED"
)

// MatchSource names the rule that produced a resolution.
type MatchSource string

const (
	SourceTaxID             MatchSource = "TAX_ID"
	SourceAlias             MatchSource = "ALIAS"
	SourceNameFuzzy         MatchSource = "NAME_FUZZY"
	SourceEmployeeTaxID     MatchSource = "EMPLOYEE_TAX_ID"
	SourceEmployeeNameFuzzy MatchSource = "EMPLOYEE_NAME_FUZZY"
	SourceNone              MatchSource = "NONE"
)

const (
	minEmployeeTaxIDDigits = 10
	minPartialLength       = 5
	minLengthRatio         = 0.4
	minContainmentRatio    = 0.6
	minSharedWordLength    = 3
)

// Resolved is the outcome of resolving one counterparty.
type Resolved struct {
	Kind     Kind        `json:"kind"`
	EntityID *int64      `json:"entity_id,omitempty"`
	Source   MatchSource `json:"match_source"`
}

// Unresolved is the result when no rule matched.
var Unresolved = Resolved{Kind: KindUnresolved, Source: SourceNone}

// ClientID returns the client ID when the counterparty resolved to a client.
func (r Resolved) ClientID() *int64 {
	if r.Kind != KindClient {
		return nil
	}
	return r.EntityID
}

// Directory holds the known entities of one organization, loaded once per
// import.
type Directory struct {
	Clients   []models.Client
	Aliases   []models.CounterpartyAlias
	Employees []models.Employee
}

type clientEntry struct {
	client models.Client
	form   string
}

type employeeEntry struct {
	employee models.Employee
	digits   string
	form     string
}

type aliasEntry struct {
	alias models.CounterpartyAlias
	form  string
}

// Resolver answers lookups against a Directory. Normalized forms are computed
// once in New.
type Resolver struct {
	clients   []clientEntry
	employees []employeeEntry
	aliases   []aliasEntry
	clientIdx map[int64]int
}

func New(dir Directory) *Resolver {
	r := &Resolver{clientIdx: make(map[int64]int, len(dir.Clients))}
	for _, c := range dir.Clients {
		r.clientIdx[c.ID] = len(r.clients)
		r.clients = append(r.clients, clientEntry{client: c, form: textnorm.ComparableForm(c.Name)})
	}
	for _, e := range dir.Employees {
		r.employees = append(r.employees, employeeEntry{
			employee: e,
			digits:   digitsOnly(e.IIN),
			form:     textnorm.ComparableForm(e.Name),
		})
	}
	for _, a := range dir.Aliases {
		r.aliases = append(r.aliases, aliasEntry{alias: a, form: textnorm.ComparableForm(a.NormalizedBankName)})
	}
	return r
}

// Resolve is a convenience for a single lookup without keeping a Resolver.
func Resolve(name, taxID string, dir Directory) Resolved {
	return New(dir).Resolve(name, taxID)
}

// Resolve matches a bank-displayed name and tax ID. It never writes aliases.
func (r *Resolver) Resolve(name, taxID string) Resolved {
	taxID = strings.TrimSpace(taxID)
	form := textnorm.ComparableForm(name)

	if taxID != "" {
		for _, c := range r.clients {
			if matchesTaxID(c.client, taxID) {
				return clientResult(c.client.ID, SourceTaxID)
			}
		}
		if digits := digitsOnly(taxID); len(digits) >= minEmployeeTaxIDDigits {
			for _, e := range r.employees {
				if e.digits == digits {
					return employeeResult(e.employee.ID, SourceEmployeeTaxID)
				}
			}
		}
	}

	if id, ok := r.aliasClient(taxID, form); ok {
		return clientResult(id, SourceAlias)
	}

	if form == "" {
		return Unresolved
	}
	if i := firstNameMatch(len(r.clients), func(i int) string { return r.clients[i].form }, form); i >= 0 {
		return clientResult(r.clients[i].client.ID, SourceNameFuzzy)
	}
	if i := firstNameMatch(len(r.employees), func(i int) string { return r.employees[i].form }, form); i >= 0 {
		return employeeResult(r.employees[i].employee.ID, SourceEmployeeNameFuzzy)
	}
	return Unresolved
}

// aliasClient looks up a confirmed alias by tax ID, then by normalized name.
// Aliases bound to a client that is not in the directory are ignored.
func (r *Resolver) aliasClient(taxID, form string) (int64, bool) {
	if taxID != "" {
		for _, a := range r.aliases {
			if a.alias.BankTaxID == taxID && r.hasClient(a.alias.ClientID) {
				return a.alias.ClientID, true
			}
		}
	}
	if form == "" {
		return 0, false
	}
	for _, a := range r.aliases {
		if a.form == form && r.hasClient(a.alias.ClientID) {
			return a.alias.ClientID, true
		}
	}
	return 0, false
}

func (r *Resolver) hasClient(id int64) bool {
	_, ok := r.clientIdx[id]
	return ok
}

// Client returns the directory entry for a client ID.
func (r *Resolver) Client(id int64) (models.Client, bool) {
	i, ok := r.clientIdx[id]
	if !ok {
		return models.Client{}, false
	}
	return r.clients[i].client, true
}

// SetClientTaxID records a tax ID learned during an import so later
// transactions of the same file resolve by tax ID. A populated value is never
// overwritten.
func (r *Resolver) SetClientTaxID(id int64, taxID string) bool {
	i, ok := r.clientIdx[id]
	if !ok || taxID == "" || r.clients[i].client.HasTaxID() {
		return false
	}
	r.clients[i].client.BIN = taxID
	return true
}

func matchesTaxID(c models.Client, taxID string) bool {
	for _, id := range c.TaxIDs() {
		if id == taxID {
			return true
		}
	}
	return false
}

// firstNameMatch returns the index of the first candidate whose form equals
// form, or failing that the first one accepted by the partial rule; -1 if none.
func firstNameMatch(n int, candidate func(int) string, form string) int {
	for i := 0; i < n; i++ {
		if candidate(i) == form {
			return i
		}
	}
	for i := 0; i < n; i++ {
		if c := candidate(i); c != "" && partialMatch(c, form) {
			return i
		}
	}
	return -1
}

// partialMatch compares two normalized names. The shorter must have at least
// five characters and be at least 40% of the longer. They then match when
// they share a word of three or more characters, or when the shorter is
// contained in the longer and at least 60% of its length.
func partialMatch(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	short, long := a, b
	ls, ll := la, lb
	if la > lb {
		short, long = b, a
		ls, ll = lb, la
	}
	if ls < minPartialLength {
		return false
	}
	ratio := float64(ls) / float64(ll)
	if ratio < minLengthRatio {
		return false
	}
	if sharesWord(short, long) {
		return true
	}
	return ratio >= minContainmentRatio && strings.Contains(long, short)
}

func sharesWord(a, b string) bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(a) {
		if utf8.RuneCountInString(w) >= minSharedWordLength {
			words[w] = true
		}
	}
	for _, w := range strings.Fields(b) {
		if words[w] {
			return true
		}
	}
	return false
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func clientResult(id int64, src MatchSource) Resolved {
	return Resolved{Kind: KindClient, EntityID: &id, Source: src}
}

func employeeResult(id int64, src MatchSource) Resolved {
	return Resolved{Kind: KindEmployee, EntityID: &id, Source: src}
}
