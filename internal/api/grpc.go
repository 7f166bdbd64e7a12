package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"fundquant/internal/analysis"
	"fundquant/internal/domain"
	"fundquant/internal/strategy"
)

// The analysis service exchanges google.protobuf.Struct messages, so it needs
// no generated code:
//
//	service Analysis {
//	  rpc Analyze(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
//
// Request fields: code, dataset, lookbackDays, strategies. The response is
// the JSON form of analysis.Report.
const (
	analysisServiceName = "fundquant.Analysis"
	analyzeMethod       = "/" + analysisServiceName + "/Analyze"
)

// AnalysisServer is the server API for the Analysis service.
type AnalysisServer interface {
	Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var analysisServiceDesc = grpc.ServiceDesc{
	ServiceName: analysisServiceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fundquant/analysis.proto",
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: analyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var _ AnalysisServer = (*GRPCService)(nil)

// GRPCService implements the Analysis gRPC endpoint on top of an Analyzer.
type GRPCService struct {
	analyzer Analyzer
	log      *slog.Logger
}

// NewGRPCService creates the gRPC endpoint.
func NewGRPCService(analyzer Analyzer, log *slog.Logger) *GRPCService {
	if log == nil {
		log = slog.Default()
	}
	return &GRPCService{analyzer: analyzer, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the service on the given gRPC server instance.
func (g *GRPCService) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&analysisServiceDesc, g)
}

// Analyze decodes the request struct, runs the analysis and returns the
// report as a struct.
func (g *GRPCService) Analyze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := RequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rep, err := g.analyzer.Analyze(ctx, req)
	if err != nil {
		g.log.Warn("analyze failed", "code", req.Code, "error", err)
		return nil, status.Error(grpcCode(err), domain.UserMessage(err))
	}
	out, err := toStruct(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// RequestToStruct encodes an analysis request for the wire.
func RequestToStruct(req analysis.Request) (*structpb.Struct, error) {
	strategies := make([]any, len(req.Strategies))
	for i, k := range req.Strategies {
		strategies[i] = string(k)
	}
	return structpb.NewStruct(map[string]any{
		"code":         req.Code,
		"dataset":      string(req.Dataset),
		"lookbackDays": float64(req.LookbackDays),
		"strategies":   strategies,
	})
}

// RequestFromStruct decodes an analysis request. Missing fields keep their
// zero values.
func RequestFromStruct(in *structpb.Struct) (analysis.Request, error) {
	f := in.GetFields()
	req := analysis.Request{
		Code:    f["code"].GetStringValue(),
		Dataset: domain.Dataset(f["dataset"].GetStringValue()),
	}
	if v, ok := f["lookbackDays"]; ok {
		days := v.GetNumberValue()
		if days != float64(int(days)) {
			return req, domain.InvalidParam("lookbackDays", "must be an integer, got %v", days)
		}
		req.LookbackDays = int(days)
	}
	for _, v := range f["strategies"].GetListValue().GetValues() {
		k, err := strategy.ParseKind(v.GetStringValue())
		if err != nil {
			return req, err
		}
		req.Strategies = append(req.Strategies, k)
	}
	return req, nil
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return structpb.NewStruct(m)
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientHistory):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrProviderFailure):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// AnalysisClient calls a remote Analysis service.
type AnalysisClient struct {
	cc grpc.ClientConnInterface
}

// NewAnalysisClient wraps an established connection.
func NewAnalysisClient(cc grpc.ClientConnInterface) *AnalysisClient {
	return &AnalysisClient{cc: cc}
}

// Analyze sends req and returns the raw report struct.
func (c *AnalysisClient) Analyze(ctx context.Context, req analysis.Request, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := RequestToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, analyzeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
