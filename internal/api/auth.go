package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"detailing/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	requestIDKey          = "x-request-id"
	clientKeyUnknown      = "unknown"

	permReadCatalog      = "read:catalog"
	permReadAvailability = "read:availability"
	permReadBookings     = "read:bookings"
	permWriteBookings    = "write:bookings"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// keyring resolves API clients from their key and extra-header pair.
type keyring struct {
	apiKeyHeader string
	extraHeader  string
	clients      map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	apiKeyHeader := strings.ToLower(strings.TrimSpace(cfg.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &keyring{apiKeyHeader: apiKeyHeader, extraHeader: extraHeader, clients: m}
}

func (k *keyring) authenticate(apiKey, extra string) (config.APIClientKey, error) {
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingKey
	}
	client, ok := k.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

// hasPermission treats an empty permission list as allow-all.
func hasPermission(client config.APIClientKey, required string) bool {
	if required == "" || len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return true
		}
	}
	return false
}

const (
	grpcServicePrefix = "/" + BookingServiceName + "/"
	grpcHealthPrefix  = "/grpc.health.v1.Health/"
)

func requiredPermissionGRPC(fullMethod string) string {
	switch strings.TrimPrefix(fullMethod, grpcServicePrefix) {
	case "GetAvailableSlots":
		return permReadAvailability
	case "GetQuote", "GetTravelFee":
		return permReadCatalog
	default:
		return ""
	}
}

type AuthInterceptor struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		// health probes come from the orchestrator, not from API clients
		if strings.HasPrefix(info.FullMethod, grpcHealthPrefix) {
			return handler(ctx, req)
		}
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(ctx, info.FullMethod); err != nil {
				return nil, err
			}
		}
		if !a.limiter.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context, fullMethod string) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}

	client, err := a.keys.authenticate(first(md.Get(a.keys.apiKeyHeader)), first(md.Get(a.keys.extraHeader)))
	if err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	if !hasPermission(client, requiredPermissionGRPC(fullMethod)) {
		return status.Error(codes.PermissionDenied, errPermissionDenied.Error())
	}
	return nil
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.keys.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)

		remote := clientKeyUnknown
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		base.Info().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := first(md.Get(requestIDKey)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
