package tables

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"tablebooking/internal/cache"
	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/validator"
	"tablebooking/internal/repository"
)

type Service struct {
	store *repository.Store
	cache *cache.TableCache
	log   *zerolog.Logger
}

func NewService(store *repository.Store, tableCache *cache.TableCache, log *zerolog.Logger) *Service {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{store: store, cache: tableCache, log: log}
}

// ListTables serves the catalog cache-aside. Booking decisions never read it.
func (s *Service) ListTables(ctx context.Context, activeOnly bool) ([]domain.Table, error) {
	if list, ok, err := s.cache.Get(ctx, activeOnly); err != nil {
		s.log.Warn().Err(err).Msg("table cache read failed")
	} else if ok {
		return list, nil
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	list, err := s.store.Repos().Tables.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, activeOnly, list); err != nil {
		s.log.Warn().Err(err).Msg("table cache write failed")
	}
	return list, nil
}

func (s *Service) GetTable(ctx context.Context, id int64) (*domain.Table, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	return s.store.Repos().Tables.GetByID(ctx, id)
}

func (s *Service) CreateTable(ctx context.Context, req CreateTableRequest) (*domain.Table, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if !req.Floor.Valid() {
		return nil, apperr.Invalid("floor", "oneof", "floor must be GROUND or MEZZANINE")
	}

	t := &domain.Table{
		Number:         req.Number,
		Floor:          req.Floor,
		CapacityMin:    req.CapacityMin,
		CapacityMax:    req.CapacityMax,
		IsVIP:          req.IsVIP,
		IsActive:       true,
		CombinableWith: normalize(req.CombinableWith),
	}
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		partners, err := loadPartners(ctx, r, t.Number, t.CombinableWith)
		if err != nil {
			return err
		}
		if err := r.Tables.Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Invalid("number", "unique", fmt.Sprintf("table %d already exists", t.Number))
			}
			return err
		}
		return link(ctx, r, t.Number, partners)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int("number", t.Number).Ints("combinable_with", t.CombinableWith).Msg("table created")
	return t, nil
}

// UpdateTable rewrites a table and mirrors combinability changes onto the
// partner tables in the same transaction.
func (s *Service) UpdateTable(ctx context.Context, id int64, req UpdateTableRequest) (*domain.Table, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	if !req.Floor.Valid() {
		return nil, apperr.Invalid("floor", "oneof", "floor must be GROUND or MEZZANINE")
	}

	var updated *domain.Table
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		t, err := r.Tables.GetByID(ctx, id)
		if err != nil {
			return err
		}
		next := normalize(req.CombinableWith)
		added, removed := diff(t.CombinableWith, next)

		addedPartners, err := loadPartners(ctx, r, t.Number, added)
		if err != nil {
			return err
		}
		removedPartners, err := r.Tables.GetByNumbers(ctx, removed)
		if err != nil {
			return err
		}

		t.Floor = req.Floor
		t.CapacityMin = req.CapacityMin
		t.CapacityMax = req.CapacityMax
		t.IsVIP = req.IsVIP
		t.CombinableWith = next
		if err := r.Tables.Save(ctx, t); err != nil {
			return err
		}
		if err := link(ctx, r, t.Number, addedPartners); err != nil {
			return err
		}
		if err := unlink(ctx, r, t.Number, removedPartners); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int("number", updated.Number).Ints("combinable_with", updated.CombinableWith).Msg("table updated")
	return updated, nil
}

// SetActive takes a table in or out of service. Existing bookings are kept.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*domain.Table, error) {
	var updated *domain.Table
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		t, err := r.Tables.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t.IsActive = active
		if err := r.Tables.Save(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int("number", updated.Number).Bool("active", active).Msg("table activity changed")
	return updated, nil
}

// VerifySymmetry reports every combinability entry its partner does not mirror.
func (s *Service) VerifySymmetry(ctx context.Context) (*SymmetryReport, error) {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	list, err := s.store.Repos().Tables.List(ctx, false)
	if err != nil {
		return nil, err
	}
	pairs := domain.FindAsymmetricPairs(list)
	if pairs == nil {
		pairs = []domain.AsymmetricPair{}
	}
	return &SymmetryReport{Symmetric: len(pairs) == 0, Asymmetric: pairs}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("table cache invalidation failed")
	}
}

// loadPartners resolves partner numbers, rejecting self-references and unknown tables.
func loadPartners(ctx context.Context, r repository.Repos, self int, numbers []int) ([]*domain.Table, error) {
	for _, n := range numbers {
		if n == self {
			return nil, apperr.Invalid("combinable_with", "ne", "a table cannot be combined with itself")
		}
	}
	found, err := r.Tables.GetByNumbers(ctx, numbers)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Table, 0, len(numbers))
	for _, n := range numbers {
		p, ok := found[n]
		if !ok {
			return nil, apperr.Invalid("combinable_with", "exists", fmt.Sprintf("table %d does not exist", n))
		}
		out = append(out, p)
	}
	return out, nil
}

func link(ctx context.Context, r repository.Repos, number int, partners []*domain.Table) error {
	for _, p := range partners {
		if p.CanCombineWith(number) {
			continue
		}
		p.CombinableWith = normalize(append(p.CombinableWith, number))
		if err := r.Tables.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func unlink(ctx context.Context, r repository.Repos, number int, partners map[int]*domain.Table) error {
	for _, p := range partners {
		if !p.CanCombineWith(number) {
			continue
		}
		kept := make([]int, 0, len(p.CombinableWith))
		for _, n := range p.CombinableWith {
			if n != number {
				kept = append(kept, n)
			}
		}
		p.CombinableWith = kept
		if err := r.Tables.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// normalize sorts and de-duplicates a combinability list.
func normalize(numbers []int) []int {
	seen := make(map[int]bool, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

func diff(before, after []int) (added, removed []int) {
	had := make(map[int]bool, len(before))
	for _, n := range before {
		had[n] = true
	}
	has := make(map[int]bool, len(after))
	for _, n := range after {
		has[n] = true
		if !had[n] {
			added = append(added, n)
		}
	}
	for _, n := range before {
		if !has[n] {
			removed = append(removed, n)
		}
	}
	return added, removed
}
