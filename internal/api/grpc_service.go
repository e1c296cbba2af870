package api

import (
	"context"
	"strings"

	"detailing/internal/availability"
	"detailing/internal/metrics"
	"detailing/internal/models"
	"detailing/internal/pricing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const BookingServiceName = "detailing.booking.v1.BookingService"

// BookingServiceServer is the RPC surface. Requests and responses are
// google.protobuf.Struct values with the same field names as the HTTP JSON.
type BookingServiceServer interface {
	GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetQuote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetTravelFee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type structMethod func(BookingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call structMethod) grpc.MethodDesc {
	fullMethod := "/" + BookingServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetAvailableSlots", BookingServiceServer.GetAvailableSlots),
		unaryHandler("GetQuote", BookingServiceServer.GetQuote),
		unaryHandler("GetTravelFee", BookingServiceServer.GetTravelFee),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "detailing/booking/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

// BookingServiceClient calls the service over a client connection.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+BookingServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetAvailableSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetAvailableSlots", in, opts...)
}

func (c *BookingServiceClient) GetQuote(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetQuote", in, opts...)
}

func (c *BookingServiceClient) GetTravelFee(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetTravelFee", in, opts...)
}

// BookingService serves pricing and availability lookups over gRPC.
type BookingService struct {
	pricing      *pricing.Engine
	availability *availability.Engine
}

func NewBookingService(pricingEngine *pricing.Engine, availabilityEngine *availability.Engine) *BookingService {
	return &BookingService{pricing: pricingEngine, availability: availabilityEngine}
}

func (s *BookingService) GetAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	dateStr := strings.TrimSpace(stringField(req, "date"))
	if dateStr == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	date, err := s.availability.Schedule().ParseDate(dateStr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid date format; expected YYYY-MM-DD")
	}

	res := s.availability.GetAvailableSlots(ctx, date)
	return toStruct(slotsResponse(res))
}

func (s *BookingService) GetQuote(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	quote := s.pricing.Quote(pricing.QuoteRequest{
		ServiceType: models.ServiceType(stringField(req, "service_type")),
		VehicleSize: models.VehicleSize(stringField(req, "vehicle_size")),
		AddOns:      stringListField(req, "add_ons"),
		Postcode:    stringField(req, "postcode"),
	})
	metrics.IncQuote(quote.NeedsReview)
	return toStruct(quoteResponse(quote))
}

func (s *BookingService) GetTravelFee(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(travelFeeResponse(s.pricing.TravelQuote(stringField(req, "postcode"))))
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func stringListField(s *structpb.Struct, name string) []string {
	values := s.GetFields()[name].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
