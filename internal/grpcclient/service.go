package grpcclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// OCRServer is implemented by Go OCR engines that serve the same
// contract the Client speaks.
type OCRServer interface {
	ExtractText(ctx context.Context, imageData []byte, format string) (string, error)
}

// OCRServiceDesc describes the OCR service for grpc.Server registration.
var OCRServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OCRServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractText", Handler: extractTextHandler},
	},
	Metadata: "scanner/ocr/v1/ocr.proto",
}

// RegisterOCRServer registers an engine on s.
func RegisterOCRServer(s grpc.ServiceRegistrar, srv OCRServer) {
	s.RegisterService(&OCRServiceDesc, srv)
}

func extractTextHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		text, err := srv.(OCRServer).ExtractText(ctx, req.(*wrapperspb.BytesValue).GetValue(), incomingFormat(ctx))
		if err != nil {
			return nil, err
		}
		return wrapperspb.String(text), nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExtractTextMethod}
	return interceptor(ctx, in, info, call)
}

func incomingFormat(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(FormatKey); len(v) > 0 {
		return v[0]
	}
	return ""
}
