package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	sourcedomain "github.com/clearhour/clearhour/internal/billingsource/domain"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	milestonerepo repository.Repository[sourcedomain.Milestone]
	reportrepo    repository.Repository[sourcedomain.MonthlyReport]
	projectrepo   repository.Repository[sourcedomain.Project]
}

func NewService(p Params) sourcedomain.Resolver {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingsource.service"),
		clock: p.Clock,

		milestonerepo: repository.ProvideStore[sourcedomain.Milestone](p.DB),
		reportrepo:    repository.ProvideStore[sourcedomain.MonthlyReport](p.DB),
		projectrepo:   repository.ProvideStore[sourcedomain.Project](p.DB),
	}
}

func (s *Service) Resolve(ctx context.Context, kind sourcedomain.Kind, id snowflake.ID) (sourcedomain.Source, error) {
	switch kind {
	case sourcedomain.KindMilestone:
		return s.resolveMilestone(ctx, id)
	case sourcedomain.KindMonthlyReport:
		return s.resolveMonthlyReport(ctx, id)
	case sourcedomain.KindProject:
		return s.resolveProject(ctx, id)
	default:
		return sourcedomain.Source{}, sourcedomain.ErrUnknownKind
	}
}

func (s *Service) resolveMilestone(ctx context.Context, id snowflake.ID) (sourcedomain.Source, error) {
	milestone, err := s.milestonerepo.FindOne(ctx, &sourcedomain.Milestone{ID: id})
	if err != nil {
		return sourcedomain.Source{}, err
	}
	if milestone == nil {
		return sourcedomain.Source{}, sourcedomain.ErrNotFound
	}

	return sourcedomain.Source{
		Kind:        sourcedomain.KindMilestone,
		ID:          milestone.ID,
		OrgID:       milestone.OrgID,
		Description: fmt.Sprintf("Milestone: %s", milestone.Name),
		Allowance:   milestone.FreeHoursAllowance,
		Rate:        milestone.HourlyRate,
		BillingDate: milestone.BillingDate,
	}, nil
}

func (s *Service) resolveMonthlyReport(ctx context.Context, id snowflake.ID) (sourcedomain.Source, error) {
	report, err := s.reportrepo.FindOne(ctx, &sourcedomain.MonthlyReport{ID: id})
	if err != nil {
		return sourcedomain.Source{}, err
	}
	if report == nil {
		return sourcedomain.Source{}, sourcedomain.ErrNotFound
	}

	return sourcedomain.Source{
		Kind:        sourcedomain.KindMonthlyReport,
		ID:          report.ID,
		OrgID:       report.OrgID,
		Description: fmt.Sprintf("Support hours %s", report.PeriodStart.Format("January 2006")),
		Allowance:   report.FreeHoursLimit,
		Rate:        report.HourlyRate,
		BillingDate: report.PeriodEnd,
	}, nil
}

func (s *Service) resolveProject(ctx context.Context, id snowflake.ID) (sourcedomain.Source, error) {
	project, err := s.projectrepo.FindOne(ctx, &sourcedomain.Project{ID: id})
	if err != nil {
		return sourcedomain.Source{}, err
	}
	if project == nil {
		return sourcedomain.Source{}, sourcedomain.ErrNotFound
	}

	return sourcedomain.Source{
		Kind:        sourcedomain.KindProject,
		ID:          project.ID,
		OrgID:       project.OrgID,
		Description: fmt.Sprintf("Project closeout: %s", project.Name),
		Rate:        project.HourlyRate,
		BillingDate: s.clock.Now(),
	}, nil
}
