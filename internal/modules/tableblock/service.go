package tableblock

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tablebooking/internal/domain"
	"tablebooking/internal/modules/availability"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/validator"
	"tablebooking/internal/repository"
)

type Service struct {
	store  *repository.Store
	window *availability.Window
	log    *zerolog.Logger
}

func NewService(store *repository.Store, window *availability.Window, log *zerolog.Logger) *Service {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{store: store, window: window, log: log}
}

type dateRange struct {
	start, end domain.Date
}

func parseRange(req BlockRequest) (dateRange, error) {
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		return dateRange{}, apperr.Invalid("start_date", "date", "start_date must be YYYY-MM-DD")
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		return dateRange{}, apperr.Invalid("end_date", "date", "end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return dateRange{}, apperr.Invalid("end_date", "gtefield", "end_date must not be before start_date")
	}
	return dateRange{start: start, end: end}, nil
}

// checkClear rejects a range that overlaps active bookings on the table,
// returning those bookings with the conflict.
func checkClear(ctx context.Context, r repository.Repos, tableID int64, rng dateRange) error {
	if _, err := r.Tables.GetByID(ctx, tableID); err != nil {
		return err
	}
	bookings, err := r.Bookings.ListOccupyingInRange(ctx, tableID, rng.start, rng.end)
	if err != nil {
		return err
	}
	if len(bookings) > 0 {
		cerr := apperr.Conflict(apperr.ReasonBlockOverlap,
			fmt.Sprintf("%d active booking(s) fall inside the block", len(bookings)))
		cerr.Bookings = bookings
		return cerr
	}
	return nil
}

// CreateBlock takes a table out of service for an inclusive date range.
func (s *Service) CreateBlock(ctx context.Context, req BlockRequest, createdBy string) (*domain.TableBlock, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	rng, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	block := &domain.TableBlock{
		TableID:   req.TableID,
		StartDate: rng.start,
		EndDate:   rng.end,
		Reason:    req.Reason,
		CreatedBy: createdBy,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		if err := checkClear(ctx, r, req.TableID, rng); err != nil {
			return err
		}
		return r.Blocks.Create(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("block_id", block.ID).
		Int64("table_id", block.TableID).
		Str("start", block.StartDate.String()).
		Str("end", block.EndDate.String()).
		Str("created_by", createdBy).
		Msg("table block created")
	return block, nil
}

// UpdateBlock re-checks the new range against bookings before saving.
func (s *Service) UpdateBlock(ctx context.Context, id int64, req BlockRequest) (*domain.TableBlock, error) {
	if err := validator.Check(req); err != nil {
		return nil, err
	}
	rng, err := parseRange(req)
	if err != nil {
		return nil, err
	}

	var updated *domain.TableBlock
	err = s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		block, err := r.Blocks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkClear(ctx, r, req.TableID, rng); err != nil {
			return err
		}
		block.TableID = req.TableID
		block.StartDate = rng.start
		block.EndDate = rng.end
		block.Reason = req.Reason
		if err := r.Blocks.Save(ctx, block); err != nil {
			return err
		}
		updated = block
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("block_id", id).
		Str("start", updated.StartDate.String()).
		Str("end", updated.EndDate.String()).
		Msg("table block updated")
	return updated, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id int64) error {
	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	if err := s.store.Repos().Blocks.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("block_id", id).Msg("table block deleted")
	return nil
}

// ListBlocks hides blocks that ended before today unless includeExpired is set.
func (s *Service) ListBlocks(ctx context.Context, req ListRequest) ([]domain.TableBlock, error) {
	f := repository.BlockFilter{TableID: req.TableID}
	if !req.IncludeExpired {
		today := s.window.Today()
		f.ActiveOn = &today
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	blocks, err := s.store.Repos().Blocks.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []domain.TableBlock{}
	}
	return blocks, nil
}
