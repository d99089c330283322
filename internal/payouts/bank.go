package payouts

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/transfer"
)

// Ways a bank name can match the catalog.
const (
	MatchExact        = "exact"
	MatchFuzzy        = "fuzzy"
	MatchAbbreviation = "abbreviation"
)

const (
	defaultMinMatchScore  = 0.75
	defaultCatalogTTL     = 6 * time.Hour
	wholeWordFloor        = 0.75
	maxAbbreviationLength = 3
)

var (
	bankStopwords = map[string]struct{}{
		"BANK": {}, "GHANA": {}, "LIMITED": {}, "LTD": {}, "PLC": {}, "AND": {},
		"LOANS": {}, "SAVINGS": {}, "AFRICA": {}, "AGRICULTURAL": {}, "DEVELOPMENT": {},
	}
	nonWord = regexp.MustCompile(`\W+`)
)

// BankMatch is a resolved bank code with the confidence of the match.
type BankMatch struct {
	Code  string
	Name  string
	Score float64
	Via   string
}

type bankLister interface {
	ListBanks(ctx context.Context) ([]transfer.Bank, error)
}

type catalogEntry struct {
	code string
	name string
}

// BankResolver maps free-text bank names onto the provider's bank codes.
// The catalog is fetched lazily and kept for the configured TTL.
type BankResolver struct {
	client   bankLister
	currency string
	ttl      time.Duration
	minScore float64
	logg     *logger.Logger
	now      func() time.Time

	mu        sync.Mutex
	catalog   map[string]catalogEntry
	keys      []string
	fetchedAt time.Time
}

// NewBankResolver builds a resolver over client's bank catalog. Only active
// banks settling in currency are considered.
func NewBankResolver(client bankLister, currency string, ttl time.Duration, minScore float64, logg *logger.Logger) *BankResolver {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	if minScore <= 0 || minScore > 1 {
		minScore = defaultMinMatchScore
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &BankResolver{
		client:   client,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
		ttl:      ttl,
		minScore: minScore,
		logg:     logg,
		now:      time.Now,
	}
}

// NormalizeBankName uppercases name and drops generic words such as BANK or GHANA.
func NormalizeBankName(name string) string {
	words := lo.Filter(strings.Fields(strings.ToUpper(name)), func(w string, _ int) bool {
		_, stop := bankStopwords[w]
		return !stop
	})
	return strings.Join(words, " ")
}

// Resolve finds the bank code for name. The bool is false when nothing in
// the catalog is close enough.
func (r *BankResolver) Resolve(ctx context.Context, name string) (BankMatch, bool, error) {
	raw := strings.ToUpper(strings.TrimSpace(name))
	if raw == "" {
		return BankMatch{}, false, nil
	}
	catalog, keys, err := r.snapshot(ctx)
	if err != nil {
		return BankMatch{}, false, err
	}
	normalized := NormalizeBankName(raw)

	for _, candidate := range []string{raw, normalized} {
		if entry, ok := catalog[candidate]; ok {
			return BankMatch{Code: entry.code, Name: entry.name, Score: 1, Via: MatchExact}, true, nil
		}
	}

	if key, score := bestFuzzy(keys, raw, normalized); score >= r.minScore {
		entry := catalog[key]
		return BankMatch{Code: entry.code, Name: entry.name, Score: score, Via: MatchFuzzy}, true, nil
	}

	if key, score := r.bestAbbreviation(keys, raw); key != "" {
		entry := catalog[key]
		return BankMatch{Code: entry.code, Name: entry.name, Score: score, Via: MatchAbbreviation}, true, nil
	}

	r.logg.Warn(r.logg.WithField(ctx, "bank_name", name), "no bank matches name")
	return BankMatch{}, false, nil
}

func bestFuzzy(keys []string, inputs ...string) (string, float64) {
	var (
		best      string
		bestScore float64
	)
	for _, key := range keys {
		for _, in := range inputs {
			if in == "" {
				continue
			}
			if score := similarity(in, key); score > bestScore {
				best, bestScore = key, score
			}
		}
	}
	return best, bestScore
}

// similarity is 1 - edit distance / longer length.
func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// keyword picks the first short token of name (an abbreviation such as GCB),
// else its first word.
func keyword(name string) string {
	words := lo.Filter(nonWord.Split(strings.ToUpper(name), -1), func(w string, _ int) bool {
		return utf8.RuneCountInString(w) > 1
	})
	if len(words) == 0 {
		return strings.ToUpper(strings.TrimSpace(name))
	}
	if short, ok := lo.Find(words, func(w string) bool { return utf8.RuneCountInString(w) <= maxAbbreviationLength }); ok {
		return short
	}
	return words[0]
}

func (r *BankResolver) bestAbbreviation(keys []string, raw string) (string, float64) {
	abbrev := keyword(raw)
	if abbrev == "" {
		return "", 0
	}
	var (
		best      string
		bestScore float64
	)
	for _, key := range keys {
		if !strings.Contains(key, abbrev) {
			continue
		}
		score := float64(utf8.RuneCountInString(abbrev)) / float64(utf8.RuneCountInString(key))
		if slices.Contains(strings.Fields(key), abbrev) {
			score = max(score, wholeWordFloor)
		}
		if score >= r.minScore && score > bestScore {
			best, bestScore = key, score
		}
	}
	return best, bestScore
}

// snapshot returns the cached catalog, refreshing it once the TTL passes. A
// failed refresh keeps serving the previous catalog.
func (r *BankResolver) snapshot(ctx context.Context) (map[string]catalogEntry, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.catalog != nil && r.now().Sub(r.fetchedAt) < r.ttl {
		return r.catalog, r.keys, nil
	}
	banks, err := r.client.ListBanks(ctx)
	if err != nil {
		if r.catalog != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "bank catalog refresh failed; using cached catalog")
			return r.catalog, r.keys, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank catalog")
	}

	catalog := make(map[string]catalogEntry, len(banks))
	for _, bank := range banks {
		if !bank.Active || bank.Code == "" {
			continue
		}
		if r.currency != "" && !strings.EqualFold(bank.Currency, r.currency) {
			continue
		}
		if bank.Type == transfer.RecipientTypeMomo {
			continue
		}
		key := NormalizeBankName(bank.Name)
		if key == "" {
			key = strings.ToUpper(strings.TrimSpace(bank.Name))
		}
		if _, dup := catalog[key]; dup {
			continue
		}
		catalog[key] = catalogEntry{code: bank.Code, name: bank.Name}
	}
	keys := lo.Keys(catalog)
	slices.Sort(keys)

	r.catalog, r.keys, r.fetchedAt = catalog, keys, r.now()
	r.logg.Info(r.logg.WithField(ctx, "banks", len(keys)), "bank catalog loaded")
	return catalog, keys, nil
}
