package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/numericalz/practicehub/pkg/db"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const codePrefix = "NZ"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	name := strings.TrimSpace(req.CompanyName)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}
	if !domain.ValidCategory(req.CompanyCategory) {
		return domain.Client{}, domain.ErrInvalidCategory
	}
	if req.VATEnabled && !deadline.ValidQuarterGroup(req.VATQuarterGroup) {
		return domain.Client{}, domain.ErrInvalidQuarterGroup
	}

	companyNumber := strings.TrimSpace(req.CompanyNumber)
	if companyNumber != "" {
		existing, err := s.repo.FindByCompanyNumber(ctx, s.db, companyNumber)
		if err != nil {
			return domain.Client{}, err
		}
		if existing != nil {
			return domain.Client{}, domain.ErrCompanyNumberTaken
		}
	}

	now := s.clock.Now()
	client := domain.Client{
		ID:                    s.genID.Generate(),
		CompanyName:           name,
		CompanyCategory:       req.CompanyCategory,
		IncorporationDate:     req.IncorporationDate,
		ARDDay:                req.ARDDay,
		ARDMonth:              req.ARDMonth,
		VATEnabled:            req.VATEnabled,
		VATQuarterGroup:       req.VATQuarterGroup,
		VATRegistrationNumber: strings.TrimSpace(req.VATRegistrationNumber),
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if companyNumber != "" {
		client.CompanyNumber = &companyNumber
	}

	code, err := s.generateCode(ctx, name)
	if err != nil {
		return domain.Client{}, err
	}
	client.ClientCode = code

	s.recomputeDueDates(&client)

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost a race on the generated code; retry once with the
			// next suffix.
			client.ClientCode, err = s.generateCode(ctx, name)
			if err != nil {
				return domain.Client{}, err
			}
			if err := s.repo.Insert(ctx, s.db, &client); err != nil {
				return domain.Client{}, err
			}
			return client, nil
		}
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetClientRequest) (domain.Client, error) {
	client, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Client, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Client{}, domain.ErrInvalidID
	}
	client, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Client{}, err
	}
	if client == nil {
		return domain.Client{}, domain.ErrClientNotFound
	}
	return *client, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	filter := domain.ListClientFilter{
		Category:       req.Category,
		ActiveOnly:     req.ActiveOnly,
		VATEnabledOnly: req.VATEnabledOnly,
		Search:         strings.TrimSpace(req.Search),
	}
	if raw := strings.TrimSpace(req.AssignedUserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListClientResponse{}, domain.ErrInvalidID
		}
		filter.AssignedUserID = &id
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListClientResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return domain.ListClientResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListClientResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.ClientCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListClientResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(client *domain.Client) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        client.ID.String(),
			CreatedAt: client.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}

	resp := domain.ListClientResponse{Clients: clients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateClientRequest) (domain.Client, error) {
	client, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Client{}, err
	}

	if req.CompanyName != nil {
		name := strings.TrimSpace(*req.CompanyName)
		if name == "" {
			return domain.Client{}, domain.ErrInvalidName
		}
		client.CompanyName = name
	}
	if req.CompanyCategory != nil {
		if !domain.ValidCategory(*req.CompanyCategory) {
			return domain.Client{}, domain.ErrInvalidCategory
		}
		client.CompanyCategory = *req.CompanyCategory
	}
	if req.IncorporationDate != nil {
		client.IncorporationDate = req.IncorporationDate
	}
	if req.ARDDay != nil {
		client.ARDDay = *req.ARDDay
	}
	if req.ARDMonth != nil {
		client.ARDMonth = *req.ARDMonth
	}
	if req.VATEnabled != nil {
		client.VATEnabled = *req.VATEnabled
	}
	if req.VATQuarterGroup != nil {
		if *req.VATQuarterGroup != 0 && !deadline.ValidQuarterGroup(*req.VATQuarterGroup) {
			return domain.Client{}, domain.ErrInvalidQuarterGroup
		}
		client.VATQuarterGroup = *req.VATQuarterGroup
	}
	if req.VATRegistrationNumber != nil {
		client.VATRegistrationNumber = strings.TrimSpace(*req.VATRegistrationNumber)
	}
	if client.VATEnabled && !deadline.ValidQuarterGroup(client.VATQuarterGroup) {
		return domain.Client{}, domain.ErrInvalidQuarterGroup
	}

	s.recomputeDueDates(client)

	client.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, client); err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) UpdateAssignments(ctx context.Context, req domain.UpdateAssignmentsRequest) (domain.Client, error) {
	client, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Client{}, err
	}

	client.AssignedUserID = applySlot(client.AssignedUserID, req.General)
	client.LtdAssignedUserID = applySlot(client.LtdAssignedUserID, req.LtdAccounts)
	client.NonLtdAssignedUserID = applySlot(client.NonLtdAssignedUserID, req.NonLtdAccounts)
	client.VATAssignedUserID = applySlot(client.VATAssignedUserID, req.VAT)

	client.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, client); err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

func (s *Service) SoftDelete(ctx context.Context, id string) error {
	client, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !client.IsActive {
		return nil
	}
	client.IsActive = false
	client.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, client)
}

func (s *Service) Reactivate(ctx context.Context, id string) error {
	client, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if client.IsActive {
		return nil
	}
	client.IsActive = true
	client.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, client)
}

func (s *Service) HardDelete(ctx context.Context, id string) error {
	client, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cascades := []string{
			`DELETE FROM vat_quarter_histories WHERE vat_quarter_id IN (SELECT id FROM vat_quarters WHERE client_id = ?)`,
			`DELETE FROM vat_quarters WHERE client_id = ?`,
			`DELETE FROM ltd_workflow_histories WHERE workflow_id IN (SELECT id FROM ltd_accounts_workflows WHERE client_id = ?)`,
			`DELETE FROM ltd_accounts_workflows WHERE client_id = ?`,
			`DELETE FROM non_ltd_workflow_histories WHERE workflow_id IN (SELECT id FROM non_ltd_accounts_workflows WHERE client_id = ?)`,
			`DELETE FROM non_ltd_accounts_workflows WHERE client_id = ?`,
			`UPDATE activity_logs SET client_id = NULL WHERE client_id = ?`,
		}
		for _, stmt := range cascades {
			if err := tx.Exec(stmt, client.ID).Error; err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, tx, client.ID)
	})
}

func (s *Service) ApplyRegistryProfile(ctx context.Context, id string, profile domain.RegistryProfile) (domain.Client, error) {
	client, err := s.find(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	if name := strings.TrimSpace(profile.CompanyName); name != "" {
		client.CompanyName = name
	}
	if profile.CompanyStatus != "" {
		client.CompanyStatus = profile.CompanyStatus
	}
	if profile.IncorporationDate != nil {
		client.IncorporationDate = profile.IncorporationDate
	}
	if profile.ARDDay != 0 && profile.ARDMonth != 0 {
		client.ARDDay = profile.ARDDay
		client.ARDMonth = profile.ARDMonth
	}
	if profile.LastAccountsMadeUpTo != nil {
		client.LastAccountsMadeUpTo = profile.LastAccountsMadeUpTo
	}
	client.NextAccountsDue = profile.NextAccountsDue
	client.NextConfirmationDue = profile.NextConfirmationDue

	s.recomputeDueDates(client)

	now := s.clock.Now()
	client.RegistryRefreshedAt = &now
	client.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, client); err != nil {
		return domain.Client{}, err
	}
	return *client, nil
}

// recomputeDueDates fills statutory due dates the registry did not supply.
// Calculator failures degrade to absent values with a warn log.
func (s *Service) recomputeDueDates(client *domain.Client) {
	if client.NextAccountsDue == nil {
		if yearEnd := deadline.AccountingReferenceDate(client.AccountingData()); yearEnd != nil {
			var due time.Time
			if client.LastAccountsMadeUpTo == nil && client.IncorporationDate != nil {
				due = deadline.FirstYearAccountsDeadline(*client.IncorporationDate)
			} else {
				due = deadline.AccountsFilingDeadline(*yearEnd)
			}
			client.NextAccountsDue = &due
		} else if client.ARDDay != 0 || client.ARDMonth != 0 {
			s.log.Warn("accounts due date unresolvable",
				zap.String("client_code", client.ClientCode),
				zap.Int("ard_day", client.ARDDay),
				zap.Int("ard_month", client.ARDMonth),
			)
		}
	}

	if client.NextConfirmationDue == nil && client.IncorporationDate != nil {
		due := deadline.ConfirmationStatementDue(*client.IncorporationDate)
		client.NextConfirmationDue = &due
	}
}

func (s *Service) generateCode(ctx context.Context, companyName string) (string, error) {
	base := slug.Make(companyName)
	if len(base) > 24 {
		base = base[:24]
	}
	prefix := fmt.Sprintf("%s-%s-", codePrefix, base)
	count, err := s.repo.CountByCodePrefix(ctx, s.db, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", prefix, count+1), nil
}

func applySlot(current, update *snowflake.ID) *snowflake.ID {
	if update == nil {
		return current
	}
	if *update == 0 {
		return nil
	}
	return update
}

func (s *Service) find(ctx context.Context, raw string) (*domain.Client, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidID
	}
	client, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrClientNotFound
	}
	return client, nil
}
