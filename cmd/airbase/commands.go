package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/barneyonline/core/plugins/daikin"
)

var (
	targetHost string
	timeout    time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&targetHost, "host", os.Getenv("AIRBASE_HOST"), "address of the AirBase adapter")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	discoverCmd.Flags().Duration("wait", 2*time.Second, "how long to wait for replies")
	zonePowerCmd.Flags().Bool("off", false, "close the zone instead of opening it")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setZoneCmd)
	rootCmd.AddCommand(zonePowerCmd)
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover AirBase adapters on the network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		ctx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()

		units, err := daikin.Discover(ctx, daikin.DiscoverOptions{})
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		if len(units) == 0 {
			fmt.Println("No devices found.")
			return nil
		}
		w := newTable(os.Stdout)
		fmt.Fprintln(w, "HOST\tMAC\tNAME")
		for _, u := range units {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.Host, u.MAC, u.Name)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show unit and zone status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dev, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(os.Stdout, dev)
		return nil
	},
}

var setZoneCmd = &cobra.Command{
	Use:   "set-zone [zone-id] [temperature]",
	Short: "Set the heating setpoint of a zone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		zoneID, err := parseZoneID(args[0])
		if err != nil {
			return err
		}
		temperature, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid temperature %q", args[1])
		}

		dev, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if !dev.SupportsZoneTemperature() {
			return errors.New("this unit has no zone temperature control")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := dev.SetZoneTemperature(ctx, zoneID, temperature); err != nil {
			return fmt.Errorf("set zone %d: %w", zoneID, err)
		}
		fmt.Println("Command sent successfully.")
		return nil
	},
}

var zonePowerCmd = &cobra.Command{
	Use:   "zone-power [zone-id]",
	Short: "Open a zone damper, or close it with --off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zoneID, err := parseZoneID(args[0])
		if err != nil {
			return err
		}
		off, _ := cmd.Flags().GetBool("off")

		dev, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if off {
			err = dev.TurnOffZone(ctx, zoneID)
		} else {
			err = dev.TurnOnZone(ctx, zoneID)
		}
		if err != nil {
			return fmt.Errorf("zone %d: %w", zoneID, err)
		}
		fmt.Println("Command sent successfully.")
		return nil
	},
}

func connect(ctx context.Context) (*daikin.AirBase, error) {
	if targetHost == "" {
		return nil, errors.New("--host (or AIRBASE_HOST) is required")
	}
	dev, err := daikin.NewAirBase(targetHost, daikin.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if err := dev.Init(ctx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", targetHost, err)
	}
	return dev, nil
}

func parseZoneID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid zone id %q: must be a non-negative number", s)
	}
	return id, nil
}

func printStatus(out io.Writer, dev *daikin.AirBase) {
	power := "OFF"
	if dev.IsOn() {
		power = "ON"
	}
	fmt.Fprintf(out, "%s (%s) %s firmware %s\n", dev.Name(), dev.MAC(), dev.Model(), dev.Firmware())
	fmt.Fprintf(out, "Power=%s Mode=%s", power, dev.HVACMode())
	if t, ok := dev.TargetTemperature(); ok {
		fmt.Fprintf(out, " Setpoint=%g", t)
	}
	if t, ok := dev.InsideTemperature(); ok {
		fmt.Fprintf(out, " Inside=%g", t)
	}
	if t, ok := dev.OutsideTemperature(); ok {
		fmt.Fprintf(out, " Outside=%g", t)
	}
	fmt.Fprintln(out)

	zones := dev.Zones()
	if len(zones) == 0 {
		fmt.Fprintln(out, "No zones.")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "ZONE\tNAME\tOPEN\tSETPOINT")
	for i, z := range zones {
		setpoint := "-"
		if z.Temperature != 0 {
			setpoint = strconv.FormatFloat(z.Temperature, 'f', -1, 64)
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\n", i, z.Name, z.On, setpoint)
	}
	_ = w.Flush()
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
}
