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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/policygap/cmd/policygap/config"
	"github.com/AleutianAI/policygap/pkg/logging"
)

const version = "0.9.0"

// --- Global Command Variables ---
var (
	policyPath    string
	policyDirPath string
	policyType    string
	outputDir     string
	strategyName  string
	useLLM        bool
	modelOverride string
	referenceDirs []string
	servePort     string
	enableTrace   bool
	logLevelName  string

	globalLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "policygap",
		Short: "Analyze cybersecurity policies for gaps against the NIST CSF",
		Long: `policygap compares organizational security policies against the
NIST Cybersecurity Framework, using a deterministic keyword-coverage
check and an optional retrieval-augmented analysis backed by a local
or hosted language model.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			globalLogger = logging.Init(logging.Config{
				Level:   parseLogLevel(logLevelName, config.Global.Logging.Level),
				LogDir:  config.Global.Logging.Dir,
				Service: "policygap",
				JSON:    config.Global.Logging.JSON,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if globalLogger != nil {
				globalLogger.Close()
			}
		},
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one policy file or a directory of policies",
		RunE:  runAnalyzeCommand, // Defined in cmd_analyze.go
	}

	taxonomyCmd = &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect the loaded control framework",
	}
	taxonomyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the framework functions and their categories",
		RunE:  runTaxonomyList, // Defined in cmd_taxonomy.go
	}
	taxonomyShowCmd = &cobra.Command{
		Use:   "show [function]",
		Short: "Show every requirement of one framework function",
		Args:  cobra.ExactArgs(1),
		RunE:  runTaxonomyShow, // Defined in cmd_taxonomy.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis HTTP API",
		RunE:  runServeCommand, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the policygap version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("policygap", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&enableTrace, "trace", false, "Export OpenTelemetry spans to stdout")
	rootCmd.PersistentFlags().StringVar(&logLevelName, "log-level", "", "Override the configured log level (debug|info|warn|error)")

	analyzeCmd.Flags().StringVar(&policyPath, "policy", "", "Path to a policy document (.txt or .md)")
	analyzeCmd.Flags().StringVar(&policyDirPath, "policy-dir", "", "Directory of policy documents to analyze")
	analyzeCmd.Flags().StringVar(&policyType, "type", "", "Policy type label (inferred from the file name when empty)")
	analyzeCmd.Flags().StringVar(&outputDir, "output", "", "Output directory for analysis artifacts")
	analyzeCmd.Flags().StringVar(&strategyName, "strategy", "deterministic", "Analysis strategy: deterministic, retrieval, or both")
	analyzeCmd.Flags().BoolVar(&useLLM, "use-llm", false, "Use the configured oracle to draft the revised policy")
	analyzeCmd.Flags().StringVar(&modelOverride, "model", "", "Override the configured oracle model")
	analyzeCmd.Flags().StringArrayVar(&referenceDirs, "reference", nil, "Additional reference documents for retrieval grounding")
	analyzeCmd.MarkFlagsOneRequired("policy", "policy-dir")
	analyzeCmd.MarkFlagsMutuallyExclusive("policy", "policy-dir")
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.AddCommand(taxonomyCmd)
	taxonomyCmd.AddCommand(taxonomyListCmd)
	taxonomyCmd.AddCommand(taxonomyShowCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port for the HTTP API")
	serveCmd.Flags().StringVar(&modelOverride, "model", "", "Override the configured oracle model")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(flagValue, configValue string) logging.Level {
	name := flagValue
	if name == "" {
		name = configValue
	}
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
