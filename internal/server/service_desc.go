package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// No .proto file backs this service: the engine's core has no network
// surface of its own (spec.md places the SQL front end, REPL, and
// transaction manager out of scope), so the admin surface is a thin,
// hand-registered RPC layer over the Catalog. Request/response payloads
// are google.protobuf.Struct, which already implements proto.Message
// and is handled by grpc's default codec without any generated code.

func decodeRequest(dec func(interface{}) error) (*structpb.Struct, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	return in, nil
}

// StorageAdminServiceDesc is the hand-authored grpc.ServiceDesc for the
// admin surface: CreateTable, CreateIndex, GetTableInfo, Stats, Health.
var StorageAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: "relstore.StorageAdmin",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTable", Handler: makeMethod("CreateTable", (*Server).CreateTable)},
		{MethodName: "CreateIndex", Handler: makeMethod("CreateIndex", (*Server).CreateIndex)},
		{MethodName: "GetTableInfo", Handler: makeMethod("GetTableInfo", (*Server).GetTableInfo)},
		{MethodName: "Stats", Handler: makeMethod("Stats", (*Server).Stats)},
		{MethodName: "Health", Handler: makeMethod("Health", (*Server).Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "relstore/admin.proto",
}

func makeMethod(name string, method func(s *Server, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/relstore.StorageAdmin/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in, err := decodeRequest(dec)
		if err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return method(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(s, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
