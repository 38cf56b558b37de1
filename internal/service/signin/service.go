package signin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/teamdocs-auth/internal/domain"
	"github.com/smallbiznis/teamdocs-auth/internal/identity"
	"github.com/smallbiznis/teamdocs-auth/internal/provision"
	"github.com/smallbiznis/teamdocs-auth/internal/repository"
	"github.com/smallbiznis/teamdocs-auth/internal/session"
)

// Service orchestrates the federated sign-in flow: handshake, claim
// normalization, account provisioning, and session issuance.
type Service interface {
	StartSignIn(ctx context.Context, in StartSignInInput) (*StartSignInOutput, error)
	HandleCallback(ctx context.Context, in CallbackInput) (*Outcome, error)
}

// StartSignInInput carries parameters for beginning the handshake.
type StartSignInInput struct {
	ReturnTo string
}

// StartSignInOutput returns the provider consent URL.
type StartSignInOutput struct {
	AuthorizationURL string
	State            string
}

// CallbackInput captures provider callback query parameters.
type CallbackInput struct {
	Code  string
	State string
}

// CredentialIssuer signs a session credential for a resolved user.
type CredentialIssuer interface {
	Issue(user domain.User) (domain.SessionCredential, error)
}

var _ CredentialIssuer = (*session.Signer)(nil)

// Outcome is the terminal result of a completed sign-in request.
type Outcome struct {
	Provider    string
	Team        domain.Team
	User        domain.User
	Credential  domain.SessionCredential
	TeamCreated bool
	UserCreated bool
	ReturnTo    string
}

const (
	statePrefix = "signin:state:"
	stateTTL    = 10 * time.Minute
)

type service struct {
	handshake   identity.HandshakeClient
	provider    string
	stateStore  repository.SigninStateStore
	provisioner *provision.Provisioner
	signer      CredentialIssuer
	logger      *zap.Logger
}

// NewService wires the sign-in orchestrator.
func NewService(
	handshake identity.HandshakeClient,
	provider string,
	stateStore repository.SigninStateStore,
	provisioner *provision.Provisioner,
	signer CredentialIssuer,
	logger *zap.Logger,
) Service {
	return &service{
		handshake:   handshake,
		provider:    provider,
		stateStore:  stateStore,
		provisioner: provisioner,
		signer:      signer,
		logger:      logger,
	}
}

func (s *service) StartSignIn(ctx context.Context, in StartSignInInput) (*StartSignInOutput, error) {
	state, err := secureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := secureRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	codeVerifier, err := secureRandomString(64)
	if err != nil {
		return nil, fmt.Errorf("generate pkce verifier: %w", err)
	}

	payload := domain.SigninState{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: codeVerifier,
		ReturnTo:     strings.TrimSpace(in.ReturnTo),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.stateStore.SaveState(ctx, buildStateKey(state), payload, stateTTL); err != nil {
		return nil, fmt.Errorf("persist state: %w", err)
	}

	return &StartSignInOutput{
		AuthorizationURL: s.handshake.AuthCodeURL(state, nonce, codeVerifier),
		State:            state,
	}, nil
}

// HandleCallback runs the post-handshake stages strictly in sequence:
// normalize, resolve team, resolve user, bootstrap, issue session. Any
// persistence or signing failure aborts at that stage; an ineligible claim
// surfaces as identity.ErrIneligible for the caller to soft-decline.
func (s *service) HandleCallback(ctx context.Context, in CallbackInput) (*Outcome, error) {
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.State) == "" {
		return nil, domain.ErrInvalidRequest
	}

	stateKey := buildStateKey(in.State)
	state, err := s.stateStore.GetState(ctx, stateKey)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state == nil {
		return nil, domain.ErrInvalidState
	}
	defer s.deleteState(ctx, stateKey)

	profile, err := s.handshake.Exchange(ctx, in.Code, state.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	claim, err := identity.Normalize(*profile)
	if err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, s.provider, claim)
	if err != nil {
		return nil, err
	}

	credential, err := s.signer.Issue(result.User)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.log().Info("sign-in completed",
		zap.String("provider", s.provider),
		zap.Int64("team_id", result.Team.ID),
		zap.Int64("user_id", result.User.ID),
		zap.Bool("team_created", result.TeamCreated),
		zap.Bool("user_created", result.UserCreated),
	)

	return &Outcome{
		Provider:    s.provider,
		Team:        result.Team,
		User:        result.User,
		Credential:  credential,
		TeamCreated: result.TeamCreated,
		UserCreated: result.UserCreated,
		ReturnTo:    state.ReturnTo,
	}, nil
}

func (s *service) deleteState(ctx context.Context, stateKey string) {
	if err := s.stateStore.DeleteState(ctx, stateKey); err != nil {
		s.log().Warn("failed to delete signin state", zap.Error(err))
	}
}

func (s *service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func buildStateKey(state string) string {
	return statePrefix + strings.TrimSpace(state)
}

func secureRandomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
