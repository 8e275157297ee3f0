package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"refclockd/internal/config"
	"refclockd/internal/driver"
	"refclockd/internal/pps"
	"refclockd/internal/udp"
	"refclockd/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./refclockd.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	edge, err := pps.ParseEdgeKind(cfg.PPS.Edge)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var source pps.Source
	switch cfg.PPS.Source {
	case "gpio":
		source, err = pps.OpenGPIO(cfg.PPS.GPIOChip, cfg.PPS.GPIOLine, edge)
	default:
		source, err = pps.OpenDevice(cfg.PPS.Device, edge, cfg.PPS.KernelDiscipline)
	}
	if err != nil {
		log.Fatalf("pps source init failed: %v", err)
	}
	defer source.Close()

	publisher, err := udp.NewPublisher(cfg.Publish.Dest)
	if err != nil {
		log.Fatalf("udp publisher init failed: %v", err)
	}
	defer publisher.Close()

	svc := driver.NewService(driver.ServiceConfig{
		Device:       cfg.Serial.Device,
		Baud:         cfg.Serial.Baud,
		PollInterval: cfg.Poll.Interval,
		Driver: driver.Config{
			Edge:             edge,
			KernelDiscipline: cfg.PPS.KernelDiscipline,
			TimeoutPolls:     cfg.Poll.TimeoutPolls,
			OnEvent: func(e driver.Event) {
				log.Printf("event %s", e)
			},
		},
	}, source, publisher)

	log.Printf("refclockd starting")
	log.Printf("publish dest=%s pps source=%s edge=%s", cfg.Publish.Dest, cfg.PPS.Source, edge)

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("driver start failed: %v", err)
	}
	defer svc.Close()

	if cfg.Status.Enable {
		go web.Serve(ctx, cfg.Status.Addr, svc)
	}

	<-ctx.Done()
	log.Printf("refclockd stopping")
}
