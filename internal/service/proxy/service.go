package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/engageautomations/ghl-api-backend/internal/adapter/ghl"
	"github.com/engageautomations/ghl-api-backend/internal/domain"
	"github.com/engageautomations/ghl-api-backend/internal/service/installation"
	"github.com/engageautomations/ghl-api-backend/internal/service/locationtoken"
)

// Service is the single generic forwarder behind every proxy endpoint:
// ensure a fresh token of the right scope, substitute path parameters,
// forward, and relay the upstream response.
type Service interface {
	Forward(ctx context.Context, ep Endpoint, in ForwardInput) (*ghl.UpstreamResponse, error)
}

// ForwardInput carries the request pieces the handler extracted.
type ForwardInput struct {
	Installation domain.Installation
	PathParams   map[string]string
	Query        url.Values
	ContentType  string
	Body         []byte
}

type service struct {
	installations installation.Service
	converter     locationtoken.Converter
	client        ghl.Client
	logger        *zap.Logger
}

// NewService wires the proxy forwarder.
func NewService(
	installations installation.Service,
	converter locationtoken.Converter,
	client ghl.Client,
	logger *zap.Logger,
) Service {
	return &service{
		installations: installations,
		converter:     converter,
		client:        client,
		logger:        logger,
	}
}

func (s *service) Forward(ctx context.Context, ep Endpoint, in ForwardInput) (*ghl.UpstreamResponse, error) {
	if err := validateBody(ep, in.Body); err != nil {
		return nil, err
	}

	token, err := s.resolveToken(ctx, ep, in.Installation)
	if err != nil {
		return nil, err
	}

	path, err := substitutePath(ep.UpstreamPath, in.PathParams)
	if err != nil {
		return nil, err
	}

	query := in.Query
	if ep.InjectLocationParam != "" && in.Installation.LocationID != "" {
		if query == nil {
			query = url.Values{}
		}
		if query.Get(ep.InjectLocationParam) == "" {
			query.Set(ep.InjectLocationParam, in.Installation.LocationID)
		}
	}

	resp, err := s.client.Forward(ctx, ghl.ForwardRequest{
		Method:      ep.Method,
		Path:        path,
		Query:       query,
		AccessToken: token,
		ContentType: in.ContentType,
		Body:        in.Body,
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		s.log().Warn("upstream rejected proxied call",
			zap.String("endpoint", ep.Name),
			zap.Int64("installation_id", in.Installation.ID),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp, nil
}

func (s *service) resolveToken(ctx context.Context, ep Endpoint, inst domain.Installation) (string, error) {
	if ep.UseLocationToken {
		return s.converter.GetLocationToken(ctx, inst.ID)
	}
	fresh, err := s.installations.EnsureFreshToken(ctx, inst.ID)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// validateBody applies the endpoint's required-field allow-list to the JSON
// payload before anything goes upstream.
func validateBody(ep Endpoint, body []byte) error {
	if len(ep.RequiredFields) == 0 {
		return nil
	}
	if len(body) == 0 {
		return &domain.ValidationError{Code: "missing_body", Message: "request body is required"}
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return &domain.ValidationError{Code: "invalid_json", Message: "request body must be a JSON object"}
	}
	for _, field := range ep.RequiredFields {
		value, ok := payload[field]
		if !ok || value == nil {
			return &domain.ValidationError{Code: "missing_field", Message: fmt.Sprintf("field %q is required", field)}
		}
		if str, isStr := value.(string); isStr && strings.TrimSpace(str) == "" {
			return &domain.ValidationError{Code: "missing_field", Message: fmt.Sprintf("field %q is required", field)}
		}
	}
	return nil
}

func substitutePath(template string, params map[string]string) (string, error) {
	segments := strings.Split(template, "/")
	for i, segment := range segments {
		if !strings.HasPrefix(segment, ":") {
			continue
		}
		name := strings.TrimPrefix(segment, ":")
		value := params[name]
		if value == "" {
			return "", &domain.ValidationError{Code: "missing_param", Message: fmt.Sprintf("path parameter %q is required", name)}
		}
		segments[i] = url.PathEscape(value)
	}
	return strings.Join(segments, "/"), nil
}

func (s *service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
