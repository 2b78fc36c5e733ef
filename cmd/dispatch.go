package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mowbotai/fleetd/app"
	"github.com/mowbotai/fleetd/core/mission"
	"github.com/mowbotai/fleetd/core/model"
)

var dispatchFlags struct {
	vehicle string
	route   string
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send a test mission to one vehicle and wait for the ack",
	RunE:  dispatchMission,
}

func init() {
	f := dispatchCmd.Flags()
	f.StringVar(&dispatchFlags.vehicle, "vehicle", "", "target vehicle id")
	f.StringVar(&dispatchFlags.route, "route", "0,0;5,5", "waypoints as x,y pairs separated by ';'")
	_ = dispatchCmd.MarkFlagRequired("vehicle")
	rootCmd.AddCommand(dispatchCmd)
}

// parseRoute turns "0,0;5,5" into alternating node/edge sequence ids the
// way the order codec expects them.
func parseRoute(route string) ([]model.MissionNode, []model.MissionEdge, error) {
	parts := strings.Split(route, ";")
	nodes := make([]model.MissionNode, 0, len(parts))
	for i, p := range parts {
		xy := strings.Split(strings.TrimSpace(p), ",")
		if len(xy) != 2 {
			return nil, nil, fmt.Errorf("waypoint %q: want x,y", p)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("waypoint %q: %w", p, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("waypoint %q: %w", p, err)
		}
		nodes = append(nodes, model.MissionNode{
			NodeID:     fmt.Sprintf("n%d", i+1),
			SequenceID: 2 * i,
			X:          x,
			Y:          y,
		})
	}
	edges := make([]model.MissionEdge, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		edges = append(edges, model.MissionEdge{
			EdgeID:      fmt.Sprintf("e%d", i),
			SequenceID:  2*i - 1,
			StartNodeID: nodes[i-1].NodeID,
			EndNodeID:   nodes[i].NodeID,
		})
	}
	return nodes, edges, nil
}

func dispatchMission(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nodes, edges, err := parseRoute(dispatchFlags.route)
	if err != nil {
		return fmt.Errorf("parse route: %w", err)
	}

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	if err := svc.Conn.Connect(ctx); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}

	order, err := svc.Dispatcher.Dispatch(ctx, mission.Request{
		VehicleID: dispatchFlags.vehicle,
		Nodes:     nodes,
		Edges:     edges,
	})
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	cmd.Printf("order %s dispatched to %s, waiting for ack\n", order.OrderID, order.VehicleID)

	deadline := time.After(cfg.Mission.AckTimeout() + time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("order %s: no acknowledgement", order.OrderID)
		case <-ticker.C:
			cur, err := svc.Dispatcher.Order(order.OrderID)
			if err != nil {
				return err
			}
			switch cur.AckState {
			case model.AckAcked:
				cmd.Printf("order %s acknowledged\n", order.OrderID)
				return nil
			case model.AckTimeout:
				return fmt.Errorf("order %s timed out, use the API to redispatch", order.OrderID)
			}
		}
	}
}
