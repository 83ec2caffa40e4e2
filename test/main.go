// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Run a live interval script.
//  --script <file>  The script to run, e.g. test/scripts/scenarios.scm.
//  --verbose        Log each command and split.

package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/s48/regalloc/script"
)

func main() {
	scriptFilename := flag.String("script", "", "script file")
	verbose := flag.Bool("verbose", false, "log each command")
	flag.Parse()

	if *scriptFilename == "" {
		fmt.Fprintf(os.Stderr, "usage: %s --script <file> [--verbose]\n", os.Args[0])
		os.Exit(2)
	}

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	source, err := os.ReadFile(*scriptFilename)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Error("file not found", zap.String("file", *scriptFilename))
		} else {
			logger.Error("error reading file", zap.String("file", *scriptFilename), zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}

	runner := script.NewRunner(os.Stdout, logger)
	if err := runner.Run(string(source)); err != nil {
		logger.Error("script failed", zap.String("file", *scriptFilename), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}
