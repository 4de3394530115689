package nlp

import (
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	apperrors "nse-newsfeatures/internal/errors"
	"nse-newsfeatures/internal/models"
)

// DefaultMaxSymbols is the resolve limit used when none is given.
const DefaultMaxSymbols = 5

// AliasSeparator splits the aliases column of the symbol index.
const AliasSeparator = ";"

// symbolIndexRow is one CSV row of the reference symbol index.
type symbolIndexRow struct {
	Symbol      string `csv:"symbol"`
	CompanyName string `csv:"company_name"`
	Aliases     string `csv:"aliases"`
}

// LoadSymbolIndex reads the reference symbol index at path.
// Rows without a symbol or company name are skipped. A missing file or an index
// with no usable rows is a ReferenceDataError.
func LoadSymbolIndex(path string) ([]models.SymbolIndexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewReferenceDataError(path, apperrors.ErrSymbolIndexMissing)
		}
		return nil, apperrors.NewReferenceDataError(path, err)
	}
	defer f.Close()

	var rows []*symbolIndexRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, apperrors.NewReferenceDataError(path, err)
	}

	entries := parseSymbolIndex(rows)
	if len(entries) == 0 {
		return nil, apperrors.NewReferenceDataError(path, apperrors.ErrSymbolIndexEmpty)
	}
	return entries, nil
}

// parseSymbolIndex converts raw index rows into entries, preserving row order.
func parseSymbolIndex(rows []*symbolIndexRow) []models.SymbolIndexEntry {
	entries := make([]models.SymbolIndexEntry, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		name := strings.TrimSpace(row.CompanyName)
		if symbol == "" || name == "" {
			continue
		}

		aliases := []string{name}
		for _, a := range strings.Split(row.Aliases, AliasSeparator) {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}
		aliases = append(aliases, symbol)

		entries = append(entries, models.SymbolIndexEntry{
			Symbol:  symbol,
			Name:    name,
			Aliases: aliases,
		})
	}
	return entries
}

type indexedEntry struct {
	symbol  string
	aliases []string // uppercased, non-empty
}

// SymbolResolver maps free text to known ticker symbols by alias substring match.
// It is immutable after construction and safe for concurrent use.
type SymbolResolver struct {
	entries []indexedEntry
}

// NewSymbolResolver builds a resolver over entries in the given order.
func NewSymbolResolver(entries []models.SymbolIndexEntry) *SymbolResolver {
	r := &SymbolResolver{entries: make([]indexedEntry, 0, len(entries))}
	for _, e := range entries {
		ie := indexedEntry{symbol: e.Symbol}
		for _, a := range e.Aliases {
			if a = strings.ToUpper(strings.TrimSpace(a)); a != "" {
				ie.aliases = append(ie.aliases, a)
			}
		}
		r.entries = append(r.entries, ie)
	}
	return r
}

// Len returns the number of index entries.
func (r *SymbolResolver) Len() int {
	return len(r.entries)
}

// Resolve returns up to limit distinct symbols whose aliases occur in text,
// in index order. A limit of zero or less means DefaultMaxSymbols.
func (r *SymbolResolver) Resolve(text string, limit int) []string {
	if text == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = DefaultMaxSymbols
	}

	upper := strings.ToUpper(text)
	hits := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, e := range r.entries {
		if _, dup := seen[e.symbol]; dup {
			continue
		}
		for _, alias := range e.aliases {
			if strings.Contains(upper, alias) {
				seen[e.symbol] = struct{}{}
				hits = append(hits, e.symbol)
				break
			}
		}
		if len(hits) >= limit {
			break
		}
	}
	return hits
}
