// Package rpc serves and calls gRPC methods described by the embedded schema
// using plain Go request/response structs. Messages travel as dynamicpb
// values and are mapped to structs through their proto JSON form.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/barneyonline/core/internal/schema"
)

// Method binds a typed handler to a method of a service descriptor.
type Method func(svc protoreflect.ServiceDescriptor) (grpc.MethodDesc, error)

// Unary adapts fn into a unary gRPC method named name.
func Unary[Req, Resp any](name string, fn func(context.Context, *Req) (*Resp, error)) Method {
	return func(svc protoreflect.ServiceDescriptor) (grpc.MethodDesc, error) {
		md := svc.Methods().ByName(protoreflect.Name(name))
		if md == nil {
			return grpc.MethodDesc{}, fmt.Errorf("%s has no method %s", svc.FullName(), name)
		}
		fullMethod := fmt.Sprintf("/%s/%s", svc.FullName(), name)

		handler := func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := dynamicpb.NewMessage(md.Input())
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				msg, ok := req.(proto.Message)
				if !ok {
					return nil, status.Errorf(codes.Internal, "unexpected request type %T", req)
				}
				var typed Req
				if err := FromMessage(msg, &typed); err != nil {
					return nil, status.Errorf(codes.InvalidArgument, "decode %s: %v", name, err)
				}
				out, err := fn(ctx, &typed)
				if err != nil {
					return nil, err
				}
				resp, err := ToMessage(out, md.Output())
				if err != nil {
					return nil, status.Errorf(codes.Internal, "encode %s: %v", name, err)
				}
				return resp, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, call)
		}

		return grpc.MethodDesc{MethodName: name, Handler: handler}, nil
	}
}

// Register installs impl's methods for the named service on server.
func Register(server grpc.ServiceRegistrar, name protoreflect.FullName, impl any, methods ...Method) error {
	svc, err := schema.Service(name)
	if err != nil {
		return err
	}

	desc := &grpc.ServiceDesc{
		ServiceName: string(svc.FullName()),
		HandlerType: (*any)(nil),
		Metadata:    svc.ParentFile().Path(),
	}
	for _, m := range methods {
		md, err := m(svc)
		if err != nil {
			return err
		}
		desc.Methods = append(desc.Methods, md)
	}

	server.RegisterService(desc, impl)
	return nil
}

// Invoke calls method on the named service over conn.
func Invoke[Req, Resp any](ctx context.Context, conn grpc.ClientConnInterface, name protoreflect.FullName, method string, req *Req) (*Resp, error) {
	svc, err := schema.Service(name)
	if err != nil {
		return nil, err
	}
	md := svc.Methods().ByName(protoreflect.Name(method))
	if md == nil {
		return nil, fmt.Errorf("%s has no method %s", name, method)
	}

	in, err := ToMessage(req, md.Input())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	out := dynamicpb.NewMessage(md.Output())
	if err := conn.Invoke(ctx, fmt.Sprintf("/%s/%s", name, method), in, out); err != nil {
		return nil, err
	}

	var resp Resp
	if err := FromMessage(out, &resp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return &resp, nil
}

// ToMessage converts a JSON-tagged struct into a dynamic message of type md.
func ToMessage(v any, md protoreflect.MessageDescriptor) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(md)
	if v == nil {
		return msg, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// FromMessage fills the JSON-tagged struct v from msg.
func FromMessage(msg proto.Message, v any) error {
	data, err := (protojson.MarshalOptions{UseProtoNames: true}).Marshal(msg)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
