// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/EvoMech/pkg/logging"
	"github.com/AleutianAI/EvoMech/services/mechanics/config"
)

var (
	cfg    *config.Config
	logger *logging.Logger
)

func main() {
	defer func() {
		if logger != nil {
			_ = logger.Close()
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger = logging.New(logging.Config{
			Level:   logging.ParseLevel(logLevel),
			Service: "evomech",
			JSON:    jsonLogs,
		})

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			logger.Error("configuration rejected", "path", configPath, "error", err)
			os.Exit(1)
		}
		if outputDir != "" {
			cfg.Output.OutputDir = outputDir
		}
		logger.Debug("configuration loaded", "path", configPath)
	}
}
