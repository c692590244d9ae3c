package provider

import (
	"fmt"
	"net/http"

	"github.com/manorfm/connectM/internal/domain"
	"github.com/manorfm/connectM/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewFactories builds one connection factory per configured provider, in order
func NewFactories(providers []config.ProviderConfig, httpClient *http.Client, logger *zap.Logger) ([]domain.ConnectionFactory, error) {
	factories := make([]domain.ConnectionFactory, 0, len(providers))

	for _, p := range providers {
		profile := ProfileMapping{
			URL:        p.ProfileURL,
			IDField:    p.ProfileIDField,
			NameField:  p.ProfileNameField,
			LinkField:  p.ProfileURLField,
			ImageField: p.ProfileImageField,
		}

		switch domain.Protocol(p.Protocol) {
		case domain.ProtocolOAuth1:
			factories = append(factories, NewOAuth1Factory(OAuth1Config{
				ProviderID:      p.ID,
				APIKind:         domain.APIKind(p.APIKind),
				ConsumerKey:     p.ClientID,
				ConsumerSecret:  p.ClientSecret,
				RequestTokenURL: p.RequestTokenURL,
				AuthorizeURL:    p.AuthorizeURL,
				AccessTokenURL:  p.TokenURL,
				Profile:         profile,
			}, httpClient, logger))
		case domain.ProtocolOAuth2:
			factories = append(factories, NewOAuth2Factory(OAuth2Config{
				ProviderID:   p.ID,
				APIKind:      domain.APIKind(p.APIKind),
				ClientID:     p.ClientID,
				ClientSecret: p.ClientSecret,
				AuthorizeURL: p.AuthorizeURL,
				TokenURL:     p.TokenURL,
				Scopes:       p.Scopes,
				Profile:      profile,
			}, httpClient, logger))
		default:
			return nil, fmt.Errorf("provider %s: unsupported protocol %q", p.ID, p.Protocol)
		}

		logger.Info("Provider configured",
			zap.String("provider", p.ID),
			zap.String("protocol", p.Protocol),
			zap.String("api_kind", p.APIKind))
	}

	return factories, nil
}
