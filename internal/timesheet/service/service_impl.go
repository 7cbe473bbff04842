package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	timesheetdomain "github.com/clearhour/clearhour/internal/timesheet/domain"
	"github.com/clearhour/clearhour/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	entryrepo repository.Repository[timesheetdomain.TimeEntry]
}

func NewService(p Params) timesheetdomain.Aggregator {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("timesheet.service"),
		entryrepo: repository.ProvideStore[timesheetdomain.TimeEntry](p.DB),
	}
}

func (s *Service) Collect(ctx context.Context, kind timesheetdomain.SourceKind, sourceID snowflake.ID) ([]timesheetdomain.TimeEntry, error) {
	items, err := s.entryrepo.Find(ctx, &timesheetdomain.TimeEntry{
		SourceKind: kind,
		SourceID:   sourceID,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]timesheetdomain.TimeEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}
	return entries, nil
}

func (s *Service) Totals(ctx context.Context, kind timesheetdomain.SourceKind, sourceID snowflake.ID) (timesheetdomain.Totals, error) {
	entries, err := s.Collect(ctx, kind, sourceID)
	if err != nil {
		return timesheetdomain.Totals{}, err
	}
	return timesheetdomain.Sum(entries), nil
}
