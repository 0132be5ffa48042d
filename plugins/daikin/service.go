package daikin

import (
	context "context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/barneyonline/core/internal/rate"
	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
)

type UnitSummary struct {
	ID                        string  `json:"id,omitempty"`
	Name                      string  `json:"name,omitempty"`
	Host                      string  `json:"host,omitempty"`
	Model                     string  `json:"model,omitempty"`
	Power                     bool    `json:"power,omitempty"`
	HVACMode                  string  `json:"hvac_mode,omitempty"`
	TargetTemperatureCelsius  float64 `json:"target_temperature_celsius,omitempty"`
	InsideTemperatureCelsius  float64 `json:"inside_temperature_celsius,omitempty"`
	OutsideTemperatureCelsius float64 `json:"outside_temperature_celsius,omitempty"`
	Available                 bool    `json:"available,omitempty"`
}

type ListUnitsRequest struct{}

type ListUnitsResponse struct {
	Units []UnitSummary `json:"units,omitempty"`
}

type GetUnitStateRequest struct {
	UnitID string `json:"unit_id,omitempty"`
}

type GetUnitStateResponse struct {
	JSON string `json:"json,omitempty"`
}

type ZoneSummary struct {
	ZoneID             int     `json:"zone_id,omitempty"`
	Name               string  `json:"name,omitempty"`
	On                 bool    `json:"on,omitempty"`
	TemperatureCelsius float64 `json:"temperature_celsius,omitempty"`
	TemperatureControl bool    `json:"temperature_control,omitempty"`
}

type ListZonesRequest struct {
	UnitID string `json:"unit_id,omitempty"`
}

type ListZonesResponse struct {
	Zones []ZoneSummary `json:"zones,omitempty"`
}

type SetZoneTemperatureRequest struct {
	UnitID             string  `json:"unit_id,omitempty"`
	ZoneID             int     `json:"zone_id,omitempty"`
	TemperatureCelsius float64 `json:"temperature_celsius,omitempty"`
}

type SetZoneTemperatureResponse struct {
	Attempts int `json:"attempts,omitempty"`
}

type SetZonePowerRequest struct {
	UnitID string `json:"unit_id,omitempty"`
	ZoneID int    `json:"zone_id,omitempty"`
	On     bool   `json:"on,omitempty"`
}

type SetZonePowerResponse struct{}

type service struct {
	plugin *Plugin
}

func registerDaikinService(server grpc.ServiceRegistrar, p *Plugin) error {
	s := &service{plugin: p}
	return rpc.Register(server, schema.DaikinService, s,
		rpc.Unary("ListUnits", s.ListUnits),
		rpc.Unary("GetUnitState", s.GetUnitState),
		rpc.Unary("ListZones", s.ListZones),
		rpc.Unary("SetZoneTemperature", s.SetZoneTemperature),
		rpc.Unary("SetZonePower", s.SetZonePower),
	)
}

func (s *service) ListUnits(ctx context.Context, _ *ListUnitsRequest) (*ListUnitsResponse, error) {
	_ = ctx
	if s.plugin.configErr != nil {
		return nil, status.Error(codes.FailedPrecondition, s.plugin.configErr.Error())
	}

	resp := &ListUnitsResponse{}
	for _, u := range s.plugin.units {
		summary := UnitSummary{
			Name:      u.Name(),
			Host:      u.cfg.Host,
			Available: u.coordinator.LastUpdateSuccess(),
		}
		if dev := u.Device(); dev != nil {
			summary.ID = dev.MAC()
			summary.Model = dev.Model()
			summary.Power = dev.IsOn()
			summary.HVACMode = string(dev.HVACMode())
			summary.TargetTemperatureCelsius, _ = dev.TargetTemperature()
			summary.InsideTemperatureCelsius, _ = dev.InsideTemperature()
			summary.OutsideTemperatureCelsius, _ = dev.OutsideTemperature()
		}
		resp.Units = append(resp.Units, summary)
	}
	return resp, nil
}

func (s *service) GetUnitState(ctx context.Context, req *GetUnitStateRequest) (*GetUnitStateResponse, error) {
	_ = ctx
	dev, err := s.device(req.UnitID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(dev.Values().Decoded())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode unit state: %v", err)
	}
	return &GetUnitStateResponse{JSON: string(payload)}, nil
}

func (s *service) ListZones(ctx context.Context, req *ListZonesRequest) (*ListZonesResponse, error) {
	_ = ctx
	dev, err := s.device(req.UnitID)
	if err != nil {
		return nil, err
	}
	resp := &ListZonesResponse{}
	for i, zone := range dev.Zones() {
		resp.Zones = append(resp.Zones, ZoneSummary{
			ZoneID:             i,
			Name:               zone.Name,
			On:                 zone.On,
			TemperatureCelsius: zone.Temperature,
			TemperatureControl: hasTemperatureControl(zone),
		})
	}
	return resp, nil
}

// SetZoneTemperature writes the zone setpoint on one unit, or on every
// connected unit when unit_id is empty.
func (s *service) SetZoneTemperature(ctx context.Context, req *SetZoneTemperatureRequest) (*SetZoneTemperatureResponse, error) {
	if req.ZoneID < 0 {
		return nil, status.Error(codes.InvalidArgument, "zone_id must be at least 0")
	}

	var units []*unit
	if req.UnitID == "" {
		units = s.plugin.units
	} else {
		u, ok := s.plugin.unitByID(req.UnitID)
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unit not found: %s", req.UnitID)
		}
		units = []*unit{u}
	}

	// Every unit is range checked before any zone is written.
	var targets []*unit
	for _, u := range units {
		dev := u.Device()
		if dev == nil {
			if req.UnitID != "" {
				return nil, status.Errorf(codes.Unavailable, "unit %s not connected", req.UnitID)
			}
			continue
		}
		if lo, hi := zoneNumberRange(dev); !inRange(req.TemperatureCelsius, lo, hi) {
			return nil, status.Error(codes.InvalidArgument, outOfRangeError(req.TemperatureCelsius, lo, hi).Error())
		}
		targets = append(targets, u)
	}

	resp := &SetZoneTemperatureResponse{}
	for _, u := range targets {
		attempts, err := s.plugin.setZoneTemperature(ctx, u.Device(), req.ZoneID, req.TemperatureCelsius)
		resp.Attempts += attempts
		if err != nil {
			return nil, zoneWriteStatus(err)
		}
		s.plugin.writeStates(u)
	}
	return resp, nil
}

func (s *service) SetZonePower(ctx context.Context, req *SetZonePowerRequest) (*SetZonePowerResponse, error) {
	dev, err := s.device(req.UnitID)
	if err != nil {
		return nil, err
	}
	if req.On {
		err = dev.TurnOnZone(ctx, req.ZoneID)
	} else {
		err = dev.TurnOffZone(ctx, req.ZoneID)
	}
	if err != nil {
		return nil, zoneWriteStatus(err)
	}
	if u, ok := s.plugin.unitByID(req.UnitID); ok {
		s.plugin.writeStates(u)
	}
	return &SetZonePowerResponse{}, nil
}

func (s *service) device(unitID string) (*AirBase, error) {
	if unitID == "" {
		return nil, status.Error(codes.InvalidArgument, "unit_id is required")
	}
	u, ok := s.plugin.unitByID(unitID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unit not found: %s", unitID)
	}
	dev := u.Device()
	if dev == nil {
		return nil, status.Errorf(codes.Unavailable, "unit %s not connected", unitID)
	}
	return dev, nil
}

func zoneWriteStatus(err error) error {
	var limited rate.RateLimitError
	switch {
	case errors.As(err, &limited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrZoneNotFound), errors.Is(err, ErrInvalidSetpoint):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "set zone: %v", err)
	}
}
