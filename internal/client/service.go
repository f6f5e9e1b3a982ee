package client

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RegisterClientRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=100"`
	RedirectURIs []string `json:"redirect_uris" validate:"required,min=1,dive,uri"`
	Scopes       []string `json:"scopes" validate:"omitempty,dive,min=1"`
	Confidential bool     `json:"confidential"`
}

// RegisterClientResponse carries the plain secret exactly once; it cannot
// be retrieved again afterwards.
type RegisterClientResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
	Confidential bool     `json:"confidential"`
}

type IClientService interface {
	Register(ctx context.Context, req RegisterClientRequest) (RegisterClientResponse, error)
	Get(ctx context.Context, clientID string) (OAuthClient, error)
}

type ClientService struct {
	repo IClientRepository
}

func NewClientService(repo IClientRepository) IClientService {
	return &ClientService{repo: repo}
}

func (s *ClientService) Register(ctx context.Context, req RegisterClientRequest) (RegisterClientResponse, error) {
	client := OAuthClient{
		ClientID:     uuid.NewString(),
		Name:         req.Name,
		RedirectURIs: req.RedirectURIs,
		Scopes:       req.Scopes,
		Confidential: req.Confidential,
		CreatedAt:    time.Now(),
	}

	var plainSecret string
	if req.Confidential {
		secret, secretHash, err := GenClientSecret()
		if err != nil {
			return RegisterClientResponse{}, err
		}
		plainSecret = secret
		client.SecretHash = secretHash
	}

	if err := s.repo.Insert(ctx, client); err != nil {
		return RegisterClientResponse{}, err
	}

	return RegisterClientResponse{
		ClientID:     client.ClientID,
		ClientSecret: plainSecret,
		Name:         client.Name,
		RedirectURIs: client.RedirectURIs,
		Scopes:       client.Scopes,
		Confidential: client.Confidential,
	}, nil
}

func (s *ClientService) Get(ctx context.Context, clientID string) (OAuthClient, error) {
	return s.repo.FindByClientID(ctx, clientID)
}
