// Package schema compiles the embedded gohome protobuf definitions at startup
// and registers them with the global registry so gRPC reflection, prototext
// config parsing and grpcurl all see the same descriptors.
package schema

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

//go:embed proto
var protoFS embed.FS

// Files lists the embedded proto sources in registration order.
var Files = []string{
	"gohome/config/v1/config.proto",
	"gohome/registry/v1/registry.proto",
	"gohome/hub/v1/hub.proto",
	"gohome/plugins/daikin/v1/daikin.proto",
}

const (
	ConfigMessage   protoreflect.FullName = "gohome.config.v1.Config"
	RegistryService protoreflect.FullName = "gohome.registry.v1.Registry"
	HubService      protoreflect.FullName = "gohome.hub.v1.Hub"
	DaikinService   protoreflect.FullName = "gohome.plugins.daikin.v1.DaikinService"
)

var (
	loadOnce sync.Once
	loadErr  error
)

// Load parses and registers the embedded descriptors. It is safe to call
// repeatedly; only the first call does work.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load()
	})
	return loadErr
}

func load() error {
	root, err := fs.Sub(protoFS, "proto")
	if err != nil {
		return fmt.Errorf("open embedded protos: %w", err)
	}

	parser := protoparse.Parser{
		Accessor: func(name string) (io.ReadCloser, error) {
			return root.Open(name)
		},
	}
	parsed, err := parser.ParseFiles(Files...)
	if err != nil {
		return fmt.Errorf("parse protos: %w", err)
	}

	for _, fd := range parsed {
		file := fd.UnwrapFile()
		if _, err := protoregistry.GlobalFiles.FindFileByPath(file.Path()); err == nil {
			continue
		}
		if err := protoregistry.GlobalFiles.RegisterFile(file); err != nil {
			return fmt.Errorf("register %s: %w", file.Path(), err)
		}
	}
	return nil
}

// Message resolves a message descriptor by full name.
func Message(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("find message %s: %w", name, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a message", name)
	}
	return md, nil
}

// Service resolves a service descriptor by full name.
func Service(name protoreflect.FullName) (protoreflect.ServiceDescriptor, error) {
	if err := Load(); err != nil {
		return nil, err
	}
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("find service %s: %w", name, err)
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a service", name)
	}
	return sd, nil
}

// NewMessage returns an empty dynamic message of the named type.
func NewMessage(name protoreflect.FullName) (*dynamicpb.Message, error) {
	md, err := Message(name)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessage(md), nil
}
