package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sprintline/sprintline/internal/clock"
	userdomain "github.com/sprintline/sprintline/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  userdomain.Repository

	importer userdomain.LocalProgressImporter
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  userdomain.Repository

	Importer userdomain.LocalProgressImporter `optional:"true"`
}

func NewService(p ServiceParam) userdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		importer: p.Importer,
	}
}

// Resolve implements domain.Service.
func (s *Service) Resolve(ctx context.Context, externalID string) (userdomain.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return userdomain.User{}, userdomain.ErrInvalidExternalID
	}

	user, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return userdomain.User{}, err
	}
	if user == nil {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}

	return *user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (userdomain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return userdomain.User{}, err
	}
	if user == nil {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}
	return *user, nil
}

// Create registers the internal record for an external subject. Repeated
// calls with the same subject return the existing record; any checklist
// progress captured before the account existed is replayed once.
func (s *Service) Create(ctx context.Context, req userdomain.CreateUserRequest) (userdomain.User, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return userdomain.User{}, userdomain.ErrInvalidExternalID
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return userdomain.User{}, userdomain.ErrInvalidEmail
	}

	now := s.clock.Now()
	user := userdomain.User{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		Email:      email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByExternalID(ctx, tx, externalID)
		if err != nil {
			return err
		}
		if existing != nil {
			user = *existing
			return nil
		}

		inserted, err := s.repo.Insert(ctx, tx, &user)
		if err != nil {
			return err
		}
		if !inserted {
			reread, err := s.repo.FindByExternalID(ctx, tx, externalID)
			if err != nil {
				return err
			}
			if reread == nil {
				return gorm.ErrRecordNotFound
			}
			user = *reread
			return nil
		}

		if s.importer != nil {
			if err := s.importer.SyncLocalProgress(ctx, tx, user.ID, email); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return userdomain.User{}, err
	}

	return user, nil
}
