// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/relabs-tech/arm_recorder/internal/app"
	"github.com/relabs-tech/arm_recorder/internal/config"
)

type Options struct {
	Config string `short:"c" long:"config" default:"arm_config.txt" description:"KEY=VALUE configuration file"`
	Mock   bool   `long:"mock" description:"Simulate the ADC and servos (bench run without hardware)"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "Mirrors the leader arm potentiometers onto the servos and records episodes"
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.Println("starting arm recorder")

	if err := config.InitGlobal(opts.Config); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRecorder(opts.Mock); err != nil {
		log.Printf("fatal: %v", err)
		if hints := app.RemediationHints(err); len(hints) > 0 {
			fmt.Fprintln(os.Stderr, "Troubleshooting:")
			for _, h := range hints {
				fmt.Fprintf(os.Stderr, "  - %s\n", h)
			}
		}
		os.Exit(1)
	}
}
