package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/schema"
)

// serviceAliases are short names accepted wherever a full service name is.
var serviceAliases = map[string]string{
	"daikin":   string(schema.DaikinService),
	"hub":      string(schema.HubService),
	"registry": string(schema.RegistryService),
}

func resolveService(name string) string {
	if full, ok := serviceAliases[strings.ToLower(name)]; ok {
		return full
	}
	return name
}

// resolveMethod accepts "service/method", "service.method" or "alias.method".
func resolveMethod(name string) (string, error) {
	if svc, method, ok := strings.Cut(name, "/"); ok {
		return resolveService(svc) + "/" + method, nil
	}
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", fmt.Errorf("method %q must be service/method", name)
	}
	return resolveService(name[:idx]) + "/" + name[idx+1:], nil
}

func servicesCmd(ctx context.Context, conn *grpc.ClientConn) {
	services, err := grpcurl.ListServices(reflectionSource(ctx, conn))
	if err != nil {
		fatal("list services", err)
	}
	aliasOf := make(map[string]string, len(serviceAliases))
	for alias, full := range serviceAliases {
		aliasOf[full] = alias
	}
	sort.Strings(services)
	for _, service := range services {
		if alias, ok := aliasOf[service]; ok {
			fmt.Printf("%s (%s)\n", service, alias)
			continue
		}
		fmt.Println(service)
	}
}

func methodsCmd(ctx context.Context, conn *grpc.ClientConn, args []string) {
	if len(args) < 1 {
		fatal("methods", fmt.Errorf("missing service name"))
	}
	methods, err := grpcurl.ListMethods(reflectionSource(ctx, conn), resolveService(args[0]))
	if err != nil {
		fatal("list methods", err)
	}
	for _, method := range methods {
		fmt.Println(method)
	}
}

func callCmd(ctx context.Context, conn *grpc.ClientConn, args []string) {
	flags := flag.NewFlagSet("call", flag.ExitOnError)
	data := flags.String("data", "", "JSON request body")
	_ = flags.Parse(args)
	if flags.NArg() < 1 {
		fatal("call", fmt.Errorf("missing method (service/method)"))
	}
	method, err := resolveMethod(flags.Arg(0))
	if err != nil {
		fatal("call", err)
	}

	source := reflectionSource(ctx, conn)
	parser, formatter, err := grpcurl.RequestParserAndFormatter(grpcurl.FormatJSON, source, requestBody(*data), grpcurl.FormatOptions{})
	if err != nil {
		fatal("parse request", err)
	}
	handler := grpcurl.NewDefaultEventHandler(os.Stdout, source, formatter, false)
	if err := grpcurl.InvokeRPC(ctx, source, conn, method, nil, handler, parser.Next); err != nil {
		fatal("invoke", err)
	}
	if handler.Status != nil && handler.Status.Err() != nil {
		fatal("invoke", handler.Status.Err())
	}
}

// requestBody prefers --data, then piped stdin, then an empty object.
func requestBody(data string) io.Reader {
	if data != "" {
		return strings.NewReader(data)
	}
	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return strings.NewReader("{}")
	}
	return os.Stdin
}

func reflectionSource(ctx context.Context, conn *grpc.ClientConn) grpcurl.DescriptorSource {
	return grpcurl.DescriptorSourceFromServer(ctx, grpcreflect.NewClientAuto(ctx, conn))
}
