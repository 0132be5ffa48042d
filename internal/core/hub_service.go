package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/barneyonline/core/internal/hub"
	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
)

type EntityState struct {
	EntityID       string `json:"entity_id,omitempty"`
	State          string `json:"state,omitempty"`
	AttributesJSON string `json:"attributes_json,omitempty"`
	LastChanged    string `json:"last_changed,omitempty"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

type ListStatesRequest struct {
	Domain string `json:"domain,omitempty"`
}

type ListStatesResponse struct {
	States []EntityState `json:"states,omitempty"`
}

type GetStateRequest struct {
	EntityID string `json:"entity_id,omitempty"`
}

type GetStateResponse struct {
	State *EntityState `json:"state,omitempty"`
}

type ServiceField struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Example     string `json:"example,omitempty"`
}

type ServiceInfo struct {
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Fields      []ServiceField `json:"fields,omitempty"`
}

type ListServicesRequest struct{}

type ListServicesResponse struct {
	Services []ServiceInfo `json:"services,omitempty"`
}

type CallServiceRequest struct {
	Domain      string `json:"domain,omitempty"`
	Service     string `json:"service,omitempty"`
	DataJSON    string `json:"data_json,omitempty"`
	NonBlocking bool   `json:"non_blocking,omitempty"`
}

type CallServiceResponse struct {
	ContextID string `json:"context_id,omitempty"`
}

type Device struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	ViaDeviceID  string   `json:"via_device_id,omitempty"`
	Integration  string   `json:"integration,omitempty"`
	Identifiers  []string `json:"identifiers,omitempty"`
}

type ListDevicesRequest struct{}

type ListDevicesResponse struct {
	Devices []Device `json:"devices,omitempty"`
}

type ListDeviceActionsRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

type ListDeviceActionsResponse struct {
	ActionsJSON []string `json:"actions_json,omitempty"`
}

type CallDeviceActionRequest struct {
	ActionJSON string `json:"action_json,omitempty"`
}

type CallDeviceActionResponse struct {
	ContextID string `json:"context_id,omitempty"`
}

// HubService exposes hub state, services and device actions over gRPC.
type HubService struct {
	hub *hub.Hub
}

func NewHubService(h *hub.Hub) *HubService {
	return &HubService{hub: h}
}

// Register installs the hub service on server.
func (s *HubService) Register(server *grpc.Server) error {
	return rpc.Register(server, schema.HubService, s,
		rpc.Unary("ListStates", s.ListStates),
		rpc.Unary("GetState", s.GetState),
		rpc.Unary("ListServices", s.ListServices),
		rpc.Unary("CallService", s.CallService),
		rpc.Unary("ListDevices", s.ListDevices),
		rpc.Unary("ListDeviceActions", s.ListDeviceActions),
		rpc.Unary("CallDeviceAction", s.CallDeviceAction),
	)
}

func (s *HubService) ListStates(_ context.Context, req *ListStatesRequest) (*ListStatesResponse, error) {
	resp := &ListStatesResponse{}
	for _, st := range s.hub.States.All(req.Domain) {
		out, err := entityState(st)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode %s: %v", st.EntityID, err)
		}
		resp.States = append(resp.States, out)
	}
	return resp, nil
}

func (s *HubService) GetState(_ context.Context, req *GetStateRequest) (*GetStateResponse, error) {
	st, ok := s.hub.States.Get(req.EntityID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "entity %q not found", req.EntityID)
	}
	out, err := entityState(st)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s: %v", st.EntityID, err)
	}
	return &GetStateResponse{State: &out}, nil
}

func (s *HubService) ListServices(_ context.Context, _ *ListServicesRequest) (*ListServicesResponse, error) {
	resp := &ListServicesResponse{}
	for _, info := range s.hub.Services.Services() {
		svc := ServiceInfo{
			Domain:      info.Domain,
			Service:     info.Service,
			Name:        info.Description.Name,
			Description: info.Description.Description,
		}
		names := make([]string, 0, len(info.Description.Fields))
		for name := range info.Description.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			field := info.Description.Fields[name]
			svc.Fields = append(svc.Fields, ServiceField{
				Name:        name,
				Description: field.Description,
				Required:    field.Required,
				Example:     exampleString(field.Example),
			})
		}
		resp.Services = append(resp.Services, svc)
	}
	return resp, nil
}

func (s *HubService) CallService(ctx context.Context, req *CallServiceRequest) (*CallServiceResponse, error) {
	data := map[string]any{}
	if req.DataJSON != "" {
		if err := json.Unmarshal([]byte(req.DataJSON), &data); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "data_json: %v", err)
		}
	}
	var opts []hub.CallOption
	if req.NonBlocking {
		opts = append(opts, hub.NonBlocking())
	}
	callCtx, err := s.hub.Services.Call(ctx, req.Domain, req.Service, data, opts...)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return &CallServiceResponse{ContextID: callCtx.ID}, nil
}

func (s *HubService) ListDevices(_ context.Context, _ *ListDevicesRequest) (*ListDevicesResponse, error) {
	resp := &ListDevicesResponse{}
	for _, dev := range s.hub.Devices.List() {
		out := Device{
			ID:           dev.ID,
			Name:         dev.Name,
			Manufacturer: dev.Manufacturer,
			Model:        dev.Model,
			ViaDeviceID:  dev.ViaDeviceID,
			Integration:  dev.Integration,
		}
		for _, ident := range dev.Identifiers {
			out.Identifiers = append(out.Identifiers, ident[0]+":"+ident[1])
		}
		resp.Devices = append(resp.Devices, out)
	}
	return resp, nil
}

func (s *HubService) ListDeviceActions(ctx context.Context, req *ListDeviceActionsRequest) (*ListDeviceActionsResponse, error) {
	actions, err := s.hub.Actions.ListForDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, StatusFromError(err)
	}
	resp := &ListDeviceActionsResponse{}
	for _, action := range actions {
		data, err := json.Marshal(action)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode action: %v", err)
		}
		resp.ActionsJSON = append(resp.ActionsJSON, string(data))
	}
	return resp, nil
}

func (s *HubService) CallDeviceAction(ctx context.Context, req *CallDeviceActionRequest) (*CallDeviceActionResponse, error) {
	var action hub.ActionConfig
	if err := json.Unmarshal([]byte(req.ActionJSON), &action); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "action_json: %v", err)
	}
	callCtx := hub.NewContext()
	if err := s.hub.Actions.Call(ctx, action, nil, callCtx); err != nil {
		return nil, StatusFromError(err)
	}
	return &CallDeviceActionResponse{ContextID: callCtx.ID}, nil
}

// StatusFromError maps hub errors onto gRPC status codes.
func StatusFromError(err error) error {
	var userErr *hub.Error
	switch {
	case errors.Is(err, hub.ErrServiceNotFound),
		errors.Is(err, hub.ErrEntityNotFound),
		errors.Is(err, hub.ErrDeviceNotFound),
		errors.Is(err, hub.ErrNoActionHandler):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, hub.ErrInvalidData):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &userErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func entityState(st hub.State) (EntityState, error) {
	attrs, err := json.Marshal(st.Attributes)
	if err != nil {
		return EntityState{}, err
	}
	return EntityState{
		EntityID:       st.EntityID,
		State:          st.State,
		AttributesJSON: string(attrs),
		LastChanged:    st.LastChanged.Format(time.RFC3339Nano),
		LastUpdated:    st.LastUpdated.Format(time.RFC3339Nano),
	}, nil
}

func exampleString(v any) string {
	switch ex := v.(type) {
	case nil:
		return ""
	case string:
		return ex
	default:
		return fmt.Sprint(ex)
	}
}
