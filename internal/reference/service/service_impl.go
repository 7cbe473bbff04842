package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/clearhour/clearhour/internal/clock"
	"github.com/clearhour/clearhour/internal/config"
	"github.com/clearhour/clearhour/internal/orgcontext"
	referencedomain "github.com/clearhour/clearhour/internal/reference/domain"
	"github.com/clearhour/clearhour/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxIssueAttempts bounds the duplicate-key retry loop when another
// process wins the race for the same (prefix, month) slot.
const maxIssueAttempts = 3

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	BillingCfg *config.BillingConfigHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billingCfg *config.BillingConfigHolder

	// mu serializes issuance per (prefix, yymm) within this process;
	// the unique index on reference_numbers.value covers the rest.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(p Params) referencedomain.Generator {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reference.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billingCfg: p.BillingCfg,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *Service) Generate(ctx context.Context, entityType referencedomain.EntityType, logicalDate time.Time) (string, error) {
	prefix, err := s.prefixFor(entityType)
	if err != nil {
		return "", err
	}

	if logicalDate.IsZero() {
		logicalDate = s.clock.Now()
	}
	yymm := logicalDate.Format("0601")

	lock := s.scopeLock(prefix + "-" + yymm)
	lock.Lock()
	defer lock.Unlock()

	var value string
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		value, err = s.issue(ctx, entityType, prefix, yymm)
		if err == nil {
			return value, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return "", err
		}
		s.log.Warn("reference number collision, retrying",
			zap.String("prefix", prefix),
			zap.String("yymm", yymm),
			zap.Int("attempt", attempt),
		)
	}
	return "", fmt.Errorf("issue reference %s-%s: %w", prefix, yymm, err)
}

func (s *Service) GenerateFromString(ctx context.Context, entityType referencedomain.EntityType, logicalDate string) (string, error) {
	logicalDate = strings.TrimSpace(logicalDate)
	if logicalDate == "" {
		return s.Generate(ctx, entityType, time.Time{})
	}
	parsed, err := time.Parse("2006-01-02", logicalDate)
	if err != nil {
		return "", referencedomain.ErrInvalidDate
	}
	return s.Generate(ctx, entityType, parsed)
}

func (s *Service) issue(ctx context.Context, entityType referencedomain.EntityType, prefix, yymm string) (string, error) {
	var value string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Raw(
			`SELECT COALESCE(MAX(sequence), 0) + 1
			 FROM reference_numbers
			 WHERE prefix = ? AND yymm = ?`,
			prefix,
			yymm,
		).Scan(&next).Error; err != nil {
			return err
		}

		value = fmt.Sprintf("%s-%s-%03d", prefix, yymm, next)

		orgID, _ := orgcontext.OrgIDFromContext(ctx)
		return tx.Create(&referencedomain.ReferenceNumber{
			ID:         s.genID.Generate(),
			OrgID:      orgID,
			EntityType: entityType,
			Prefix:     prefix,
			YYMM:       yymm,
			Sequence:   next,
			Value:      value,
			CreatedAt:  s.clock.Now(),
		}).Error
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Service) prefixFor(entityType referencedomain.EntityType) (string, error) {
	prefixes := s.billingCfg.Get().Prefixes
	switch entityType {
	case referencedomain.EntityTypeInvoice:
		return prefixes.Invoice, nil
	case referencedomain.EntityTypeReport:
		return prefixes.Report, nil
	case referencedomain.EntityTypeServiceRequest:
		return prefixes.ServiceRequest, nil
	default:
		return "", referencedomain.ErrUnknownEntityType
	}
}

func (s *Service) scopeLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
