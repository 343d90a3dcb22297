package main

import (
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/relabs-tech/arm_recorder/internal/app"
	"github.com/relabs-tech/arm_recorder/internal/config"
)

type Options struct {
	Config string `short:"c" long:"config" default:"arm_config.txt" description:"KEY=VALUE configuration file"`
	Plain  bool   `long:"plain" description:"Print one line per record instead of the live chart"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.Println("starting arm console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal(opts.Config); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if config.Get().MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is not set in %s", opts.Config)
	}

	if err := app.RunConsoleMQTT(opts.Plain); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
