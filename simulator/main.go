// Command simulator runs a small fleet of fake AGVs against a broker, for
// exercising fleetd without hardware.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://127.0.0.1:1883", "broker URL")
	flag.StringVar(&cfg.InterfaceName, "interface", "uagv", "topic interface name")
	flag.StringVar(&cfg.Manufacturer, "manufacturer", "mowbot", "manufacturer topic segment")
	flag.IntVar(&cfg.Vehicles, "vehicles", 3, "number of simulated vehicles")
	flag.DurationVar(&cfg.StateInterval, "interval", 2*time.Second, "state report interval")
	flag.DurationVar(&cfg.AckDelay, "ack-delay", 0, "delay before orders are acknowledged")
	flag.BoolVar(&cfg.DropAcks, "drop-acks", false, "never acknowledge orders")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	NewSimFleet(cfg).Run(ctx)
}
