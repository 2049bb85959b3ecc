package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// ErrClientHasDeals guards client deletion while deals still reference it.
var ErrClientHasDeals = errors.New("client has deals and cannot be deleted")

// ErrLeadAlreadyConverted rejects converting the same lead twice.
var ErrLeadAlreadyConverted = errors.New("lead was already converted to a client")

// convertedLeadStatus is the terminal pipeline stage a lead lands on when it
// becomes a client.
const convertedLeadStatus = "won"

// ClientService owns clients and the lead-to-client conversion protocol.
type ClientService struct {
	store Store
	log   *logger.Logger
}

func NewClientService(store Store, log *logger.Logger) *ClientService {
	return &ClientService{store: store, log: log}
}

// Create inserts a client. With SourceLeadID set it runs the conversion
// protocol instead: the client insert, its converted_to_client activity, the
// source lead's terminal patch, and the lead's lead_converted activity all
// commit as one transaction. A failure at any step leaves nothing behind.
func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest, performedBy string) (*domain.Client, error) {
	if req.SourceLeadID != nil {
		return s.convertLead(ctx, req, performedBy)
	}

	now := time.Now().UTC()
	client := &domain.Client{
		ID:          uuid.NewString(),
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Status:      req.Status,
		ClientSince: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if client.Status == "" {
		client.Status = domain.ClientStatusActive
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Clients().Create(ctx, client); err != nil {
			return fmt.Errorf("create client: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityClientCreatedManual,
			Description: fmt.Sprintf("Client %q created", client.FullName),
			Ref:         domain.EntityRef{Kind: domain.EntityClient, ID: client.ID},
			PerformedBy: performedBy,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "client created",
		logger.Module("client"),
		logger.Action("create"),
		zap.String("client_id", client.ID),
	)

	return client, nil
}

// convertLead promotes a lead into a client. The client id is generated up
// front so both sides can cross-reference each other before either write
// lands. A lead that is deleted or already converted cannot be converted.
func (s *ClientService) convertLead(ctx context.Context, req *domain.CreateClientRequest, performedBy string) (*domain.Client, error) {
	lead, err := s.store.Leads().Get(ctx, *req.SourceLeadID)
	if err != nil {
		return nil, err
	}
	if lead.Deleted {
		return nil, ErrLeadNotFound
	}
	if lead.ConvertedToClientID != nil {
		return nil, fmt.Errorf("lead %s: %w", lead.ID, ErrLeadAlreadyConverted)
	}

	now := time.Now().UTC()
	clientID := uuid.NewString()

	client := &domain.Client{
		ID:           clientID,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		Status:       req.Status,
		ClientSince:  now,
		SourceLeadID: &lead.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if client.Status == "" {
		client.Status = domain.ClientStatusActive
	}

	oldStatus := lead.Status

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Clients().Create(ctx, client); err != nil {
			return fmt.Errorf("create client: %w", err)
		}

		if err := tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityConvertedToClient,
			Description: fmt.Sprintf("Client %q created from lead conversion", client.FullName),
			Ref:         domain.EntityRef{Kind: domain.EntityClient, ID: clientID},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaSourceLeadID: lead.ID,
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("create client activity: %w", err)
		}

		won := convertedLeadStatus
		if _, err := tx.Leads().Update(ctx, lead.ID, domain.LeadPatch{
			Status:              &won,
			ConvertedToClientID: &clientID,
		}); err != nil {
			return fmt.Errorf("patch source lead: %w", err)
		}

		if err := tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityLeadConverted,
			Description: fmt.Sprintf("Lead %q converted to client", lead.FullName),
			Ref:         domain.EntityRef{Kind: domain.EntityLead, ID: lead.ID},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaOldStatus: oldStatus,
				domain.MetaNewStatus: convertedLeadStatus,
				domain.MetaClientID:  clientID,
			},
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("create lead activity: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "lead converted to client",
		logger.Module("client"),
		logger.Action("convert"),
		zap.String("lead_id", lead.ID),
		zap.String("client_id", clientID),
	)

	return client, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	return s.store.Clients().Get(ctx, id)
}

func (s *ClientService) List(ctx context.Context, params domain.ListClientsParams) ([]domain.Client, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}
	return s.store.Clients().List(ctx, params)
}

// Update patches a client. A status change (active <-> past) appends a
// status_changed activity in the same transaction.
func (s *ClientService) Update(ctx context.Context, id string, req *domain.UpdateClientRequest, performedBy string) (*domain.Client, error) {
	current, err := s.store.Clients().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := req.Patch()
	statusChanged := req.Status != nil && *req.Status != current.Status

	if !statusChanged {
		return s.store.Clients().Update(ctx, id, patch)
	}

	var updated *domain.Client
	err = s.store.InTx(ctx, func(tx Store) error {
		updated, err = tx.Clients().Update(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("update client: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityStatusChanged,
			Description: fmt.Sprintf("Client status changed from %s to %s", current.Status, *req.Status),
			Ref:         domain.EntityRef{Kind: domain.EntityClient, ID: id},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaOldStatus: string(current.Status),
				domain.MetaNewStatus: string(*req.Status),
			},
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes a client. It is refused while any deal still belongs to the
// client; delete or reassign the deals first. The client's activity history
// is preserved.
func (s *ClientService) Delete(ctx context.Context, id string, performedBy string) error {
	if _, err := s.store.Clients().Get(ctx, id); err != nil {
		return err
	}

	count, err := s.store.Deals().CountByClient(ctx, id)
	if err != nil {
		return fmt.Errorf("count client deals: %w", err)
	}
	if count > 0 {
		return ErrClientHasDeals
	}

	if err := s.store.Clients().Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info(ctx, "client deleted",
		logger.Module("client"),
		logger.Action("delete"),
		zap.String("client_id", id),
	)
	return nil
}
