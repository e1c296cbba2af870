package api

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"detailing/internal/availability"
	"detailing/internal/catalog"
	"detailing/internal/config"
	"detailing/internal/database"
	"detailing/internal/models"
	"detailing/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startGRPC(t *testing.T, cfg config.APIConfig) (*BookingServiceClient, *database.DB) {
	t.Helper()
	conn, db := startGRPCConn(t, cfg)
	return NewBookingServiceClient(conn), db
}

func startGRPCConn(t *testing.T, cfg config.APIConfig) (*grpc.ClientConn, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewBookingService(
		pricing.NewEngine(catalog.Default()),
		availability.NewEngine(testSchedule(t), db, &logger),
	)

	lis := bufconn.Listen(1 << 20)
	srv, err := newGRPCServerOn(lis, cfg, svc, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, db
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_GetQuote(t *testing.T) {
	client, _ := startGRPC(t, config.APIConfig{})

	resp, err := client.GetQuote(context.Background(), mustStruct(t, map[string]any{
		"service_type": "premium-detail",
		"vehicle_size": "large",
		"add_ons":      []any{"ceramic-boost", "ceramic-boost", "unknown"},
		"postcode":     "bn21 4xx",
	}))
	require.NoError(t, err)

	got := resp.AsMap()
	assert.Equal(t, 259.99, got["base_price"])
	assert.Equal(t, 79.98, got["add_ons_price"])
	assert.Equal(t, 25.0, got["travel_fee"])
	assert.Equal(t, "eastbourne", got["travel_zone"])
	assert.Equal(t, 364.97, got["total"])
	assert.Equal(t, false, got["needs_review"])
}

func TestGRPC_GetTravelFee(t *testing.T) {
	client, _ := startGRPC(t, config.APIConfig{})

	resp, err := client.GetTravelFee(context.Background(), mustStruct(t, map[string]any{"postcode": "EH1 1YZ"}))
	require.NoError(t, err)
	got := resp.AsMap()
	assert.Equal(t, 25.0, got["amount"])
	assert.Equal(t, true, got["needs_review"])
	assert.Equal(t, "EH1", got["outward_code"])
}

func TestGRPC_GetAvailableSlots(t *testing.T) {
	client, db := startGRPC(t, config.APIConfig{})
	monday := nextMonday()

	require.NoError(t, db.CreateBooking(context.Background(), &models.Booking{
		CustomerName: "Sam",
		Postcode:     "BN1 1AA",
		ServiceType:  models.ServiceBasicWash,
		VehicleSize:  models.VehicleSmall,
		Date:         monday,
		Time:         "12:00",
		Status:       models.StatusConfirmed,
	}))

	resp, err := client.GetAvailableSlots(context.Background(), mustStruct(t, map[string]any{
		"date": monday.Format(models.DateLayout),
	}))
	require.NoError(t, err)

	got := resp.AsMap()
	assert.Equal(t, "live", got["outcome"])
	assert.Equal(t, 4.0, got["available_count"])
	slots, ok := got["slots"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 5)
	for _, raw := range slots {
		slot := raw.(map[string]any)
		assert.Equal(t, slot["time"] != "12:00", slot["is_available"], slot["time"])
	}

	t.Run("ClosedDay", func(t *testing.T) {
		resp, err := client.GetAvailableSlots(context.Background(), mustStruct(t, map[string]any{
			"date": monday.AddDate(0, 0, -1).Format(models.DateLayout),
		}))
		require.NoError(t, err)
		assert.Equal(t, "closed", resp.AsMap()["outcome"])
		assert.Empty(t, resp.AsMap()["slots"])
	})

	t.Run("InvalidDate", func(t *testing.T) {
		_, err := client.GetAvailableSlots(context.Background(), mustStruct(t, map[string]any{"date": "tomorrow"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.GetAvailableSlots(context.Background(), mustStruct(t, map[string]any{}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestGRPC_AuthAndRequestID(t *testing.T) {
	client, _ := startGRPC(t, config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "site", Extra: "s3cret", Permissions: []string{permReadCatalog}}},
		},
	})
	req := mustStruct(t, map[string]any{"postcode": "BN1 1AA"})

	_, err := client.GetTravelFee(context.Background(), req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(),
		"x-api-key", "site", "x-api-extra", "s3cret", requestIDKey, "trace-42")
	var header metadata.MD
	_, err = client.GetTravelFee(ctx, req, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"trace-42"}, header.Get(requestIDKey))

	_, err = client.GetAvailableSlots(ctx, mustStruct(t, map[string]any{"date": "2024-06-10"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPC_HealthSkipsAuth(t *testing.T) {
	conn, _ := startGRPCConn(t, config.APIConfig{
		Auth: config.APIAuthConfig{Enabled: true, APIKeys: []config.APIClientKey{{Name: "site", Key: "k", Extra: "e"}}},
	})
	health := healthpb.NewHealthClient(conn)

	resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: BookingServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
