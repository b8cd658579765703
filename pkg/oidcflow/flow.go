package oidcflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmskit/oidc-login/pkg/flowerr"
	"github.com/cmskit/oidc-login/pkg/notification"
	"github.com/cmskit/oidc-login/pkg/provider"
	"github.com/cmskit/oidc-login/pkg/resolver"
	"github.com/cmskit/oidc-login/pkg/schema"
	"github.com/cmskit/oidc-login/pkg/userstore"
)

// UserinfoMapper maps an access token to verified identity claims. Supplied
// by the integrator; provider.UserInfoClient.Fetch is the default.
type UserinfoMapper func(ctx context.Context, accessToken string) (*provider.UserInfo, error)

// Exchanger performs the authorization-code-for-tokens exchange.
// *provider.TokenClient satisfies it.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*provider.TokenResponse, error)
}

// Service sequences one login attempt: state validation, code exchange,
// identity mapping, user resolution, claim projection and session issuance.
// Each attempt is a stateless request-response cycle; the only state carried
// between redirect and callback is the browser's state cookie.
type Service struct {
	provider   *provider.Config
	exchanger  Exchanger
	userinfo   UserinfoMapper
	resolver   *resolver.Service
	fields     []schema.Field
	collection string
	notifier   notification.Notifier
}

// ServiceOption is a function that configures a Service
type ServiceOption func(*Service)

// WithUserinfoMapper sets the identity-claims collaborator. The flow fails
// with unconfigured if no mapper is set.
func WithUserinfoMapper(mapper UserinfoMapper) ServiceOption {
	return func(s *Service) {
		s.userinfo = mapper
	}
}

// WithFields sets the user-collection field schema projected into session
// claims
func WithFields(fields []schema.Field) ServiceOption {
	return func(s *Service) {
		s.fields = fields
	}
}

// WithNotifier sets an optional notifier invoked after first-login account
// creation
func WithNotifier(notifier notification.Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// NewService creates the login flow service for one provider and one user
// collection
func NewService(providerConfig *provider.Config, exchanger Exchanger, resolverService *resolver.Service, collection string, opts ...ServiceOption) *Service {
	service := &Service{
		provider:   providerConfig,
		exchanger:  exchanger,
		resolver:   resolverService,
		collection: collection,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// BuildAuthURL builds the provider authorization URL for a freshly issued
// state
func (s *Service) BuildAuthURL(state string) (string, error) {
	authURL, err := s.provider.BuildAuthURL(state)
	if err != nil {
		return "", flowerr.Wrap(err, flowerr.CodeConfig, flowerr.ReasonUnconfigured, "failed to build authorization URL")
	}
	return authURL, nil
}

// Callback runs the post-validation half of the state machine: code
// exchange, identity mapping, user resolution and claim projection. State
// validation has already happened by the time this runs; the ordering is
// enforced by the handler.
func (s *Service) Callback(ctx context.Context, code string) (map[string]any, error) {
	tokens, err := s.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := s.identity(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	user, created, err := s.resolve(ctx, info)
	if err != nil {
		return nil, err
	}

	if created && s.notifier != nil {
		// Best effort: a failed notification never fails the login
		if err := s.notifier.NotifyWelcome(ctx, user.Email, user.Name); err != nil {
			slog.Warn("Failed to send welcome notification", "email", user.Email, "err", err)
		}
	}

	claims := schema.Project(s.fields, user.Record(), schema.Seed{
		Email:      user.Email,
		ID:         user.ID.String(),
		Collection: s.collection,
	})

	return claims, nil
}

func (s *Service) exchange(ctx context.Context, code string) (*provider.TokenResponse, error) {
	tokens, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, flowerr.Wrap(err, flowerr.CodeUpstream, flowerr.ReasonExchangeTimeout, "token exchange timed out")
		}
		var exchangeErr *provider.ExchangeError
		if errors.As(err, &exchangeErr) {
			return nil, flowerr.Wrap(err, flowerr.CodeUpstream, flowerr.ReasonExchangeError, "token endpoint rejected the exchange")
		}
		return nil, flowerr.Wrap(err, flowerr.CodeUpstream, flowerr.ReasonExchangeError, "token exchange failed")
	}
	return tokens, nil
}

func (s *Service) identity(ctx context.Context, accessToken string) (*provider.UserInfo, error) {
	if s.userinfo == nil {
		return nil, flowerr.New(flowerr.CodeConfig, flowerr.ReasonUnconfigured, "no userinfo mapper configured")
	}

	info, err := s.userinfo(ctx, accessToken)
	if err != nil {
		return nil, flowerr.Wrap(err, flowerr.CodeProtocol, flowerr.ReasonNoEmail, "failed to obtain identity claims")
	}
	if info == nil || info.Email == "" {
		return nil, flowerr.New(flowerr.CodeProtocol, flowerr.ReasonNoEmail, "identity claims missing email")
	}
	return info, nil
}

func (s *Service) resolve(ctx context.Context, info *provider.UserInfo) (userstore.User, bool, error) {
	user, created, err := s.resolver.Resolve(ctx, info)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return userstore.User{}, false, flowerr.Wrap(err, flowerr.CodeStore, flowerr.ReasonStoreTimeout, "user store timed out")
		}
		return userstore.User{}, false, flowerr.Wrap(err, flowerr.CodeStore, flowerr.ReasonStoreError, "failed to resolve user")
	}
	return user, created, nil
}
