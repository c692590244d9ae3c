package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/manorfm/connectM/internal/domain"
)

// ProfileMapping locates profile attributes in a provider's JSON profile.
// Fields are dotted paths such as "data.id".
type ProfileMapping struct {
	URL        string
	IDField    string
	NameField  string
	LinkField  string
	ImageField string
}

// ProfileFetcher loads the profile of the account owning a set of credentials
type ProfileFetcher struct {
	mapping    ProfileMapping
	signer     domain.RequestSigner
	httpClient *http.Client
}

// NewProfileFetcher creates a new ProfileFetcher
func NewProfileFetcher(mapping ProfileMapping, signer domain.RequestSigner, httpClient *http.Client) *ProfileFetcher {
	return &ProfileFetcher{
		mapping:    mapping,
		signer:     signer,
		httpClient: httpClient,
	}
}

// Fetch performs a signed GET of the profile endpoint
func (p *ProfileFetcher) Fetch(ctx context.Context, creds domain.Credentials) (*domain.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.mapping.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: profile request: %v", domain.ErrInternal, err)
	}
	req.Header.Set("Accept", "application/json")

	if err := p.signer.Sign(req, creds); err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: profile endpoint returned %d", domain.ErrTokenExchange, resp.StatusCode)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%w: profile endpoint returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var doc map[string]interface{}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %v", domain.ErrProviderUnavailable, err)
	}

	profile := &domain.UserProfile{
		ID:         lookup(doc, p.mapping.IDField),
		Name:       lookup(doc, p.mapping.NameField),
		ProfileURL: lookup(doc, p.mapping.LinkField),
		ImageURL:   lookup(doc, p.mapping.ImageField),
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile has no %q", domain.ErrProviderUnavailable, p.mapping.IDField)
	}
	return profile, nil
}

func lookup(doc map[string]interface{}, path string) string {
	if path == "" {
		return ""
	}

	var current interface{} = doc
	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = object[part]
	}

	switch v := current.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
