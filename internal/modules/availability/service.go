package availability

import (
	"context"

	"github.com/rs/zerolog"

	"tablebooking/internal/domain"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/repository"
)

type Service struct {
	store  *repository.Store
	engine *Engine
	log    *zerolog.Logger
}

func NewService(store *repository.Store, engine *Engine, log *zerolog.Logger) *Service {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Service{store: store, engine: engine, log: log}
}

// CheckAvailability answers the three shapes of availability query:
// a table at a time, a table over a whole day, or any table at a time.
func (s *Service) CheckAvailability(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return nil, apperr.Invalid("date", "date", "date must be YYYY-MM-DD")
	}

	ctx, cancel := s.store.WithTimeout(ctx)
	defer cancel()
	r := s.store.Repos()

	resp := &CheckResponse{
		Conflicts:    []domain.BookedSlot{},
		Blocks:       []domain.TableBlock{},
		Alternatives: []domain.Alternative{},
	}

	if req.TableID == nil {
		if req.Time == "" || req.PartySize <= 0 {
			return nil, apperr.Invalid("table_id", "required", "table_id, or time and party_size, are required")
		}
		alts, err := s.engine.Alternatives(ctx, r, AlternativesQuery{
			Date: date, Time: req.Time, PartySize: req.PartySize, ExcludeBookingID: req.ExcludeBookingID,
		})
		if err != nil {
			return nil, err
		}
		resp.Alternatives = alts
		resp.Available = len(alts) > 0
		return resp, nil
	}

	if req.Time == "" {
		day, err := s.engine.DayView(ctx, r, *req.TableID, date)
		if err != nil {
			return nil, err
		}
		resp.Day = day
		resp.Blocks = day.Blocks
		resp.Available = len(day.FreeSlots) > 0
		return resp, nil
	}

	res, err := s.engine.Check(ctx, r, Query{
		TableID:          *req.TableID,
		PartnerTableID:   req.PartnerTableID,
		Date:             date,
		Time:             req.Time,
		ExcludeBookingID: req.ExcludeBookingID,
	})
	if err != nil {
		return nil, err
	}
	resp.Available = res.Available
	resp.Reason = string(res.Reason)
	if res.Conflicts != nil {
		resp.Conflicts = domain.Slots(res.Conflicts)
	}
	if res.Blocks != nil {
		resp.Blocks = res.Blocks
	}

	if !res.Available && req.PartySize > 0 {
		alts, err := s.engine.Alternatives(ctx, r, AlternativesQuery{
			Date: date, Time: req.Time, PartySize: req.PartySize, ExcludeBookingID: req.ExcludeBookingID,
		})
		if err != nil {
			s.log.Warn().Err(err).Msg("alternatives lookup failed")
		} else {
			resp.Alternatives = alts
		}
	}
	return resp, nil
}
