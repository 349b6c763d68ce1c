// Package resolver maps free-text portal addresses to canonical address
// records using tiered matching from strict to loose.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mramzani/barghalarm/internal/entities"
)

// MinFragmentLen is the shortest text, in runes, allowed to match by
// substring containment.
const MinFragmentLen = 8

// ErrAddressNotFound is returned when no tier matches. It is not a failure:
// the address has not been discovered yet.
var ErrAddressNotFound = errors.New("address not found")

// Tier identifies which matching stage resolved an address
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierNormalized
	TierFragment
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierNormalized:
		return "normalized"
	case TierFragment:
		return "fragment"
	default:
		return "none"
	}
}

// AddressStore is the reference-data lookup the resolver depends on
type AddressStore interface {
	FindAddressIDByLabel(ctx context.Context, cityID int64, label string) (int64, bool, error)
	ListAddressesByCity(ctx context.Context, cityID int64) ([]entities.Address, error)
}

type candidate struct {
	id     int64
	folded string
	runes  int
}

// Resolver resolves raw address text within a city. A Resolver snapshots
// each city's labels on first use and is meant to live for a single
// import run.
type Resolver struct {
	store AddressStore

	mu     sync.Mutex
	cities map[int64][]candidate
}

// New creates a resolver backed by store
func New(store AddressStore) *Resolver {
	return &Resolver{
		store:  store,
		cities: make(map[int64][]candidate),
	}
}

// Resolve returns the id of the canonical address matching raw in cityID
// and the tier that matched it.
func (r *Resolver) Resolve(ctx context.Context, cityID int64, raw string) (int64, Tier, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, TierNone, ErrAddressNotFound
	}

	id, found, err := r.store.FindAddressIDByLabel(ctx, cityID, text)
	if err != nil {
		return 0, TierNone, fmt.Errorf("exact address lookup: %w", err)
	}
	if found {
		return id, TierExact, nil
	}

	candidates, err := r.snapshot(ctx, cityID)
	if err != nil {
		return 0, TierNone, err
	}

	query := Fold(text)
	if id, ok := matchNormalized(candidates, query); ok {
		return id, TierNormalized, nil
	}

	fragment := Fold(LongestFragment(text))
	if utf8.RuneCountInString(fragment) >= MinFragmentLen {
		if id, ok := bestMatch(candidates, fragment, func(c candidate) bool {
			return strings.Contains(c.folded, fragment)
		}); ok {
			return id, TierFragment, nil
		}
	}

	return 0, TierNone, ErrAddressNotFound
}

func (r *Resolver) snapshot(ctx context.Context, cityID int64) ([]candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cities[cityID]; ok {
		return c, nil
	}
	addresses, err := r.store.ListAddressesByCity(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("list addresses for city %d: %w", cityID, err)
	}
	candidates := make([]candidate, 0, len(addresses))
	for _, a := range addresses {
		folded := Fold(a.Label)
		if folded == "" {
			continue
		}
		candidates = append(candidates, candidate{
			id:     a.ID,
			folded: folded,
			runes:  utf8.RuneCountInString(folded),
		})
	}
	r.cities[cityID] = candidates
	return candidates, nil
}

// Forget drops the cached labels of a city, e.g. after new addresses
// were created for it.
func (r *Resolver) Forget(cityID int64) {
	r.mu.Lock()
	delete(r.cities, cityID)
	r.mu.Unlock()
}

func matchNormalized(candidates []candidate, query string) (int64, bool) {
	if query == "" {
		return 0, false
	}
	if id, ok := bestMatch(candidates, query, func(c candidate) bool {
		return c.folded == query
	}); ok {
		return id, true
	}

	queryLen := utf8.RuneCountInString(query)
	return bestMatch(candidates, query, func(c candidate) bool {
		if queryLen <= c.runes {
			return queryLen >= MinFragmentLen && strings.Contains(c.folded, query)
		}
		return c.runes >= MinFragmentLen && strings.Contains(query, c.folded)
	})
}

// bestMatch returns the accepted candidate closest in length to query,
// lowest id first on ties.
func bestMatch(candidates []candidate, query string, accept func(candidate) bool) (int64, bool) {
	queryLen := utf8.RuneCountInString(query)
	var (
		bestID   int64
		bestDist = -1
	)
	for _, c := range candidates {
		if !accept(c) {
			continue
		}
		dist := c.runes - queryLen
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && c.id < bestID) {
			bestID, bestDist = c.id, dist
		}
	}
	return bestID, bestDist >= 0
}
