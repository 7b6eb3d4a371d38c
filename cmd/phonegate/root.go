// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Phonegate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/phonegate/phonegate/internal/config"
)

// NewRootCmd creates the root command for the phonegate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil, nil)
}

func newRootCmd(serveDeps *ServeDeps, migrateDeps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phonegate",
		Short: "Phone-number account authentication service",
		Long: `phonegate registers accounts by phone number and password, issues
signed session tokens and locks out repeated failed sign-ins.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(serveDeps))
	cmd.AddCommand(NewMigrateCmd(migrateDeps))
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
