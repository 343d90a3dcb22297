package main

import (
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/relabs-tech/arm_recorder/internal/app"
	"github.com/relabs-tech/arm_recorder/internal/config"
)

type Options struct {
	Config string  `short:"c" long:"config" default:"arm_config.txt" description:"KEY=VALUE configuration file"`
	Speed  float64 `short:"s" long:"speed" default:"1" description:"Playback speed factor"`
	Loop   bool    `long:"loop" description:"Start over at the end of the episode"`
	Args   struct {
		Episode string `positional-arg-name:"episode-dir" required:"yes"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.Println("starting arm episode replay (MQTT producer)")

	if err := config.InitGlobal(opts.Config); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if config.Get().MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is not set in %s", opts.Config)
	}

	if err := app.RunReplay(opts.Args.Episode, opts.Speed, opts.Loop); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
