// Package catalog serves the lookup data the entry form depends on:
// categories, payment instruments, people, and fuzzy category suggestions
// from remembered place history. Lookups are cached with a short TTL so a
// burst of form mounts does not hammer the backend.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"expenseform/internal/cache"
	"expenseform/internal/core"
	"expenseform/internal/form"
)

// PlaceVisit is one remembered place with the category it was filed under.
type PlaceVisit struct {
	Place    string
	Category string
}

// Source is the backend the service reads from. Both the sqlite and the
// in-memory backends implement it.
type Source interface {
	Categories(ctx context.Context) ([]core.Category, error)
	PaymentInstruments(ctx context.Context) ([]core.PaymentInstrument, error)
	People(ctx context.Context) ([]core.Person, error)
	PlaceHistory(ctx context.Context, limit int) ([]PlaceVisit, error)
}

const (
	cacheTTL     = 5 * time.Minute
	cacheSize    = 16
	historyLimit = 500

	// minConfidence is the similarity floor below which no suggestion is
	// offered. Matches behave well around 0.6 for short merchant names.
	minConfidence = 0.6
)

// Service implements form.CatalogSource over a Source with caching.
type Service struct {
	source Source

	categories  *cache.LRUCache[[]core.Category]
	instruments *cache.LRUCache[[]core.PaymentInstrument]
	people      *cache.LRUCache[[]core.Person]
	history     *cache.LRUCache[[]PlaceVisit]
}

func NewService(source Source, mgr *cache.Manager) *Service {
	s := &Service{
		source:      source,
		categories:  cache.NewLRUCache[[]core.Category](cacheSize, cacheTTL),
		instruments: cache.NewLRUCache[[]core.PaymentInstrument](cacheSize, cacheTTL),
		people:      cache.NewLRUCache[[]core.Person](cacheSize, cacheTTL),
		history:     cache.NewLRUCache[[]PlaceVisit](cacheSize, cacheTTL),
	}
	if mgr != nil {
		mgr.Register(s.categories)
		mgr.Register(s.instruments)
		mgr.Register(s.people)
		mgr.Register(s.history)
	}
	return s
}

func (s *Service) ListCategories(ctx context.Context) ([]core.Category, error) {
	if cached, ok := s.categories.Get("all"); ok {
		return cached, nil
	}
	cats, err := s.source.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	s.categories.Set("all", cats)
	return cats, nil
}

func (s *Service) ListPaymentInstruments(ctx context.Context, activeOnly bool) ([]core.PaymentInstrument, error) {
	key := "all"
	if activeOnly {
		key = "active"
	}
	if cached, ok := s.instruments.Get(key); ok {
		return cached, nil
	}
	all, err := s.source.PaymentInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment instruments: %w", err)
	}
	out := all
	if activeOnly {
		out = make([]core.PaymentInstrument, 0, len(all))
		for _, pi := range all {
			if pi.Active {
				out = append(out, pi)
			}
		}
	}
	s.instruments.Set(key, out)
	return out, nil
}

func (s *Service) ListPeople(ctx context.Context) ([]core.Person, error) {
	if cached, ok := s.people.Get("all"); ok {
		return cached, nil
	}
	people, err := s.source.People(ctx)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	s.people.Set("all", people)
	return people, nil
}

// SuggestCategory fuzzy-matches place against remembered place history and
// returns the category of the closest match, with a similarity confidence in
// [0,1]. A nil suggestion means nothing scored above the floor.
func (s *Service) SuggestCategory(ctx context.Context, place string) (*form.CategorySuggestion, error) {
	place = normalize(place)
	if place == "" {
		return nil, nil
	}

	visits, ok := s.history.Get("recent")
	if !ok {
		var err error
		visits, err = s.source.PlaceHistory(ctx, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("load place history: %w", err)
		}
		s.history.Set("recent", visits)
	}

	var (
		best     float64
		category string
	)
	for _, v := range visits {
		score := similarity(place, normalize(v.Place))
		if score > best {
			best = score
			category = v.Category
		}
	}
	if best < minConfidence {
		return nil, nil
	}
	slog.DebugContext(ctx, "Category suggested",
		"place", place, "category", category, "confidence", best)
	return &form.CategorySuggestion{Category: category, Confidence: best}, nil
}

// InvalidateHistory drops the cached place history; called after new records
// land so fresh places become suggestable without waiting for the TTL.
func (s *Service) InvalidateHistory() {
	s.history.Delete("recent")
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
