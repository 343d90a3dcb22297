// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/relabs-tech/arm_recorder/internal/app"
	"github.com/relabs-tech/arm_recorder/internal/config"
)

type Options struct {
	Config   string        `short:"c" long:"config" default:"arm_config.txt" description:"KEY=VALUE configuration file"`
	Mock     bool          `long:"mock" description:"Read the simulated ADC"`
	Interval time.Duration `short:"i" long:"interval" default:"20ms" description:"Time between readings"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.Println("starting arm potentiometer readout")

	if err := config.InitGlobal(opts.Config); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunPots(opts.Mock, opts.Interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
