package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/grpc"

	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/rpc"
	"github.com/barneyonline/core/internal/schema"
)

func statesCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) == 1 && strings.Contains(args[0], ".") {
		resp, err := rpc.Invoke[core.GetStateRequest, core.GetStateResponse](ctx, conn, schema.HubService, "GetState", &core.GetStateRequest{EntityID: args[0]})
		if err != nil {
			fatal("get state", err)
		}
		if out.json {
			out.printJSON(resp.State)
			return
		}
		fmt.Printf("%s\t%s\n", resp.State.EntityID, resp.State.State)
		fmt.Println(indentJSON(resp.State.AttributesJSON))
		return
	}

	req := &core.ListStatesRequest{}
	if len(args) == 1 {
		req.Domain = args[0]
	}
	resp, err := rpc.Invoke[core.ListStatesRequest, core.ListStatesResponse](ctx, conn, schema.HubService, "ListStates", req)
	if err != nil {
		fatal("list states", err)
	}
	if out.json {
		out.printJSON(resp.States)
		return
	}
	rows := [][]string{{"ENTITY", "STATE", "LAST CHANGED"}}
	for _, st := range resp.States {
		rows = append(rows, []string{st.EntityID, st.State, st.LastChanged})
	}
	out.table(rows)
}

// serviceCmd calls <domain>.<service>. Data comes from --data and key=value
// pairs; values that parse as JSON are sent typed.
func serviceCmd(ctx context.Context, conn *grpc.ClientConn, args []string) {
	flags := flag.NewFlagSet("service", flag.ExitOnError)
	data := flags.String("data", "", "JSON service data")
	noWait := flags.Bool("no-wait", false, "return once the call is scheduled")
	if len(args) < 1 {
		fatal("service", fmt.Errorf("usage: gohome-cli service <domain>.<service> [key=value ...]"))
	}
	target := args[0]
	_ = flags.Parse(args[1:])

	domain, service, ok := strings.Cut(target, ".")
	if !ok || domain == "" || service == "" {
		fatal("service", fmt.Errorf("expected <domain>.<service>, got %q", target))
	}

	payload, err := serviceData(*data, flags.Args())
	if err != nil {
		fatal("service", err)
	}
	resp, err := rpc.Invoke[core.CallServiceRequest, core.CallServiceResponse](ctx, conn, schema.HubService, "CallService", &core.CallServiceRequest{
		Domain:      domain,
		Service:     service,
		DataJSON:    payload,
		NonBlocking: *noWait,
	})
	if err != nil {
		fatal("call service", err)
	}
	fmt.Printf("ok (context %s)\n", resp.ContextID)
}

func serviceData(raw string, pairs []string) (string, error) {
	data := map[string]any{}
	if raw != "" {
		result := gjson.Parse(raw)
		if !gjson.Valid(raw) || !result.IsObject() {
			return "", fmt.Errorf("--data must be a JSON object")
		}
		data, _ = result.Value().(map[string]any)
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return "", fmt.Errorf("expected key=value, got %q", pair)
		}
		if gjson.Valid(value) {
			data[key] = gjson.Parse(value).Value()
		} else {
			data[key] = value
		}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func devicesCmd(ctx context.Context, conn *grpc.ClientConn, out outputMode) {
	resp, err := rpc.Invoke[core.ListDevicesRequest, core.ListDevicesResponse](ctx, conn, schema.HubService, "ListDevices", &core.ListDevicesRequest{})
	if err != nil {
		fatal("list devices", err)
	}
	if out.json {
		out.printJSON(resp.Devices)
		return
	}
	rows := [][]string{{"ID", "NAME", "MODEL", "INTEGRATION"}}
	for _, dev := range resp.Devices {
		rows = append(rows, []string{dev.ID, dev.Name, dev.Model, dev.Integration})
	}
	out.table(rows)
}

func actionsCmd(ctx context.Context, conn *grpc.ClientConn, args []string, out outputMode) {
	if len(args) < 2 {
		fatal("actions", fmt.Errorf("usage: gohome-cli actions list|call <device_id>"))
	}
	deviceID := args[1]

	switch args[0] {
	case "list":
		resp, err := rpc.Invoke[core.ListDeviceActionsRequest, core.ListDeviceActionsResponse](ctx, conn, schema.HubService, "ListDeviceActions", &core.ListDeviceActionsRequest{DeviceID: deviceID})
		if err != nil {
			fatal("list actions", err)
		}
		if out.json {
			actions := make([]json.RawMessage, 0, len(resp.ActionsJSON))
			for _, a := range resp.ActionsJSON {
				actions = append(actions, json.RawMessage(a))
			}
			out.printJSON(actions)
			return
		}
		rows := [][]string{{"DOMAIN", "TYPE", "ENTITY"}}
		for _, a := range resp.ActionsJSON {
			rows = append(rows, []string{
				gjson.Get(a, "domain").String(),
				gjson.Get(a, "type").String(),
				gjson.Get(a, "entity_id").String(),
			})
		}
		out.table(rows)
	case "call":
		flags := flag.NewFlagSet("actions call", flag.ExitOnError)
		data := flags.String("data", "", "action JSON (domain, type, entity_id, ...)")
		_ = flags.Parse(args[2:])
		if *data == "" {
			fatal("call action", fmt.Errorf("--data is required"))
		}
		action, err := serviceData(*data, nil)
		if err != nil {
			fatal("call action", err)
		}
		action, err = withDeviceID(action, deviceID)
		if err != nil {
			fatal("call action", err)
		}
		resp, err := rpc.Invoke[core.CallDeviceActionRequest, core.CallDeviceActionResponse](ctx, conn, schema.HubService, "CallDeviceAction", &core.CallDeviceActionRequest{ActionJSON: action})
		if err != nil {
			fatal("call action", err)
		}
		fmt.Printf("ok (context %s)\n", resp.ContextID)
	default:
		usage()
		os.Exit(2)
	}
}

func withDeviceID(action, deviceID string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(action), &data); err != nil {
		return "", err
	}
	data["device_id"] = deviceID
	encoded, err := json.Marshal(data)
	return string(encoded), err
}

func indentJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(data)
}
