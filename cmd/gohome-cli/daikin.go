package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
	"github.com/barneyonline/core/plugins/daikin"
)

func daikinCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) == 0 {
		daikinUsage()
		os.Exit(2)
	}

	switch args[0] {
	case "units", "list":
		resp, err := rpc.Invoke[daikin.ListUnitsRequest, daikin.ListUnitsResponse](ctx, conn, schema.DaikinService, "ListUnits", &daikin.ListUnitsRequest{})
		if err != nil {
			fatal("daikin list units", err)
		}
		if out.json {
			out.printJSON(resp)
			return
		}
		rows := [][]string{{"UNIT", "NAME", "HOST", "MODE", "INSIDE", "OUTSIDE", "AVAILABLE"}}
		for _, u := range resp.Units {
			mode := u.HVACMode
			if !u.Power {
				mode = "off"
			}
			rows = append(rows, []string{
				u.ID, u.Name, u.Host, mode,
				formatTemp(u.InsideTemperatureCelsius),
				formatTemp(u.OutsideTemperatureCelsius),
				strconv.FormatBool(u.Available),
			})
		}
		out.table(rows)
	case "zones":
		unitID := ""
		if len(args) > 1 {
			unitID = args[1]
		}
		unitID = resolveUnit(ctx, conn, unitID)
		zones := listZones(ctx, conn, unitID)
		if out.json {
			out.printJSON(zones)
			return
		}
		rows := [][]string{{"ZONE", "ID", "ON", "SETPOINT"}}
		for _, z := range zones {
			setpoint := "-"
			if z.TemperatureControl {
				setpoint = formatTemp(z.TemperatureCelsius)
			}
			rows = append(rows, []string{z.Name, strconv.Itoa(z.ZoneID), strconv.FormatBool(z.On), setpoint})
		}
		out.table(rows)
	case "set":
		flags := flag.NewFlagSet("daikin set", flag.ExitOnError)
		unit := flags.String("unit", "", "unit id (default: all units)")
		if len(args) < 3 {
			fatal("daikin set", fmt.Errorf("usage: gohome-cli daikin set <zone> <temp> [--unit unit_id]"))
		}
		_ = flags.Parse(args[3:])
		temp, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fatal("daikin set", fmt.Errorf("invalid temperature %q", args[2]))
		}
		zoneID := zoneIDFor(ctx, conn, *unit, args[1])
		resp, err := rpc.Invoke[daikin.SetZoneTemperatureRequest, daikin.SetZoneTemperatureResponse](ctx, conn, schema.DaikinService, "SetZoneTemperature", &daikin.SetZoneTemperatureRequest{
			UnitID:             *unit,
			ZoneID:             zoneID,
			TemperatureCelsius: temp,
		})
		if err != nil {
			fatal("daikin set", err)
		}
		fmt.Printf("ok (zone %d -> %s, %d attempt(s))\n", zoneID, formatTemp(temp), resp.Attempts)
	case "power":
		flags := flag.NewFlagSet("daikin power", flag.ExitOnError)
		unit := flags.String("unit", "", "unit id")
		if len(args) < 3 {
			fatal("daikin power", fmt.Errorf("usage: gohome-cli daikin power <zone> on|off [--unit unit_id]"))
		}
		_ = flags.Parse(args[3:])
		var on bool
		switch args[2] {
		case "on":
			on = true
		case "off":
		default:
			fatal("daikin power", fmt.Errorf("expected on or off, got %q", args[2]))
		}
		unitID := resolveUnit(ctx, conn, *unit)
		zoneID := zoneIDFor(ctx, conn, unitID, args[1])
		_, err := rpc.Invoke[daikin.SetZonePowerRequest, daikin.SetZonePowerResponse](ctx, conn, schema.DaikinService, "SetZonePower", &daikin.SetZonePowerRequest{
			UnitID: unitID,
			ZoneID: zoneID,
			On:     on,
		})
		if err != nil {
			fatal("daikin power", err)
		}
		fmt.Println("ok")
	default:
		daikinUsage()
		os.Exit(2)
	}
}

// resolveUnit picks the only unit when unitID is empty.
func resolveUnit(ctx context.Context, conn *grpc.ClientConn, unitID string) string {
	if unitID != "" {
		return unitID
	}
	resp, err := rpc.Invoke[daikin.ListUnitsRequest, daikin.ListUnitsResponse](ctx, conn, schema.DaikinService, "ListUnits", &daikin.ListUnitsRequest{})
	if err != nil {
		fatal("daikin list units", err)
	}
	switch len(resp.Units) {
	case 0:
		fatal("daikin", fmt.Errorf("no units configured"))
	case 1:
		return resp.Units[0].ID
	}
	ids := make([]string, 0, len(resp.Units))
	for _, u := range resp.Units {
		ids = append(ids, u.ID+" ("+u.Name+")")
	}
	fatal("daikin", fmt.Errorf("several units configured, pass --unit. Available: %s", strings.Join(ids, ", ")))
	return ""
}

func listZones(ctx context.Context, conn *grpc.ClientConn, unitID string) []daikin.ZoneSummary {
	resp, err := rpc.Invoke[daikin.ListZonesRequest, daikin.ListZonesResponse](ctx, conn, schema.DaikinService, "ListZones", &daikin.ListZonesRequest{UnitID: unitID})
	if err != nil {
		fatal("daikin list zones", err)
	}
	return resp.Zones
}

// zoneIDFor accepts a zone index or a zone name. Names are looked up on
// unitID, or on the only unit when unitID is empty.
func zoneIDFor(ctx context.Context, conn *grpc.ClientConn, unitID, zone string) int {
	if id, err := strconv.Atoi(zone); err == nil {
		return id
	}
	options := make(map[string]string)
	for _, z := range listZones(ctx, conn, resolveUnit(ctx, conn, unitID)) {
		options[z.Name] = strconv.Itoa(z.ZoneID)
	}
	id, err := resolveNamedID("zone", zone, options)
	if err != nil {
		fatal("daikin", err)
	}
	n, _ := strconv.Atoi(id)
	return n
}

func formatTemp(c float64) string {
	return strconv.FormatFloat(c, 'f', 1, 64) + "°C"
}

func daikinUsage() {
	fmt.Println("gohome-cli daikin <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  units")
	fmt.Println("  zones [unit_id]")
	fmt.Println("  set <zone> <temp> [--unit unit_id]")
	fmt.Println("  power <zone> on|off [--unit unit_id]")
}
