package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/redkeeper/pkg/admin"
	"github.com/cuemby/redkeeper/pkg/config"
	"github.com/cuemby/redkeeper/pkg/reconciler"
	"github.com/cuemby/redkeeper/pkg/secrets"
	"github.com/cuemby/redkeeper/pkg/security"
	"github.com/cuemby/redkeeper/pkg/types"
)

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Run operator actions",
}

var getAdminPasswordCmd = &cobra.Command{
	Use:   "get-initial-admin-password",
	Short: "Print the generated admin password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSecret(secrets.AdminPasswordKey)
	},
}

var getSentinelPasswordCmd = &cobra.Command{
	Use:   "get-sentinel-password",
	Short: "Print the generated sentinel password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSecret(secrets.SentinelPasswordKey)
	},
}

// printSecret is gated on the first completed reconciliation: before that
// the password may not exist yet or may still change.
func printSecret(key string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := reconciler.Reconciled(a.db)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("deployment has not finished its first reconciliation: %w",
			types.ErrNotYetAvailable)
	}

	password, err := a.secrets.Get(key)
	if err != nil {
		return err
	}
	fmt.Println(password)
	return nil
}

var checkServiceCmd = &cobra.Command{
	Use:   "check-service",
	Short: "Probe the local redis-server and sentinel",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		adminPassword, err := a.secrets.Get(secrets.AdminPasswordKey)
		if err != nil {
			return err
		}
		sentinelPassword, err := a.secrets.Get(secrets.SentinelPasswordKey)
		if err != nil {
			return err
		}
		creds := types.Credentials{
			AdminPassword:    adminPassword,
			SentinelPassword: sentinelPassword,
		}

		dial, err := buildDialer(a.cfg, creds)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), admin.DefaultTimeout)
		defer cancel()

		rconn := dial.Redis(a.cfg.UnitAddress)
		defer rconn.Close()
		if err := rconn.Ping(ctx); err != nil {
			fmt.Println("redis: down")
			return err
		}
		version, _ := rconn.ServerVersion(ctx)
		fmt.Printf("redis: up (version %s)\n", version)

		sconn := dial.Sentinel(a.cfg.UnitAddress)
		defer sconn.Close()
		if err := sconn.Ping(ctx); err != nil {
			fmt.Println("sentinel: down")
			return err
		}
		fmt.Println("sentinel: up")
		return nil
	},
}

// buildDialer mirrors the reconciler's dialer setup: TLS is used when the
// user enabled it and a complete bundle is attached.
func buildDialer(cfg *config.Operator, creds types.Credentials) (admin.Dialer, error) {
	opts, err := config.LoadOptions(cfg.OptionsFile)
	if err != nil {
		return nil, err
	}

	res := cfg.Resources
	bundle, err := security.LoadBundle(res.CACertFile, res.CertFile, res.KeyFile, config.DefaultCertDir)
	if err != nil && !errors.Is(err, types.ErrNotConfigured) {
		return nil, err
	}

	dialer := &admin.NetDialer{
		MasterName:       cfg.AppName,
		AdminPassword:    creds.AdminPassword,
		SentinelPassword: creds.SentinelPassword,
	}
	if opts.EnableTLS && bundle.Complete() {
		dialer.TLS, err = admin.ClientTLS(bundle)
		if err != nil {
			return nil, err
		}
	}
	return dialer, nil
}

func init() {
	actionCmd.AddCommand(getAdminPasswordCmd)
	actionCmd.AddCommand(getSentinelPasswordCmd)
	actionCmd.AddCommand(checkServiceCmd)
}
