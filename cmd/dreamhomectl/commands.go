package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamhome/auth-gateway/internal/bootstrap"
	"github.com/dreamhome/auth-gateway/internal/core/domain"
	"github.com/dreamhome/auth-gateway/internal/core/policy"
	"github.com/dreamhome/auth-gateway/internal/core/service"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/queue"
	"github.com/dreamhome/auth-gateway/internal/infrastructure/security"
	"github.com/dreamhome/auth-gateway/internal/pkg/config"
	"github.com/dreamhome/auth-gateway/pkg/logger"
)

type configLoader func(ctx context.Context) (*config.Config, error)

func newRootCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dreamhomectl",
		Short:         "Operator tooling for the DreamHome auth gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newHashPasswordCmd(load),
		newSeedAdminCmd(load),
		newVerifyTokenCmd(load),
		newPolicyCheckCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "dreamhomectl version %s (build: %s)\n", version, buildTime)
			},
		},
	)
	return cmd
}

func newHashPasswordCmd(load configLoader) *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			switch {
			case !cmd.Flags().Changed("cost"):
				if err != nil {
					return err
				}
				cost = cfg.Bcrypt.Cost
			case err == nil && cost != cfg.Bcrypt.Cost:
				fmt.Fprintf(cmd.ErrOrStderr(),
					"warning: cost %d differs from BCRYPT_COST %d; login timing for this account will differ from unknown users\n",
					cost, cfg.Bcrypt.Cost)
			}
			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := security.NewBcryptHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
	return cmd
}

func newSeedAdminCmd(load configLoader) *cobra.Command {
	var (
		username string
		email    string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an account with an explicit role, reading its password from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			log := logger.Init(logger.Options{
				Level:   cfg.LogLevel,
				Pretty:  true,
				Output:  cmd.ErrOrStderr(),
				Service: "dreamhomectl",
				Env:     cfg.Env,
				Version: version,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := bootstrap.OpenStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			audit := queue.NewDispatcher(1, store.Audit, log)
			audit.Start(context.Background())
			defer audit.Close(context.Background())

			provisioner := service.NewProvisioner(store.Credentials, security.NewBcryptHasher(cfg.Bcrypt.Cost), audit, log)
			user, created, err := provisioner.EnsureAccount(ctx, service.AccountInput{
				Username: username,
				Email:    email,
				Password: password,
				Role:     r,
			})
			if err != nil {
				return err
			}

			status := "exists"
			if created {
				status = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, id %s)\n", status, user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "account username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "account role (USER or ADMIN)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newVerifyTokenCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Validate a bearer token and print its principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Context())
			if err != nil {
				return err
			}
			codec, err := security.NewJWTCodec(security.JWTCodecConfig{
				Secret: cfg.JWT.Secret,
				Issuer: cfg.JWT.Issuer,
				TTL:    cfg.JWT.TTL,
				Leeway: cfg.JWT.ClockSkew,
			})
			if err != nil {
				return err
			}

			p, err := codec.Validate(strings.TrimPrefix(args[0], "Bearer "))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}

func newPolicyCheckCmd(load configLoader) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "policy-check <method> <path>",
		Short: "Show which access rule applies to a request and the resulting decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol := policy.Default()
			cfg, err := load(cmd.Context())
			if err == nil && cfg.PolicyFile != "" {
				if pol, err = policy.LoadFile(cfg.PolicyFile); err != nil {
					return err
				}
			}

			var principal *domain.Principal
			if role != "" {
				r, ok := domain.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q", role)
				}
				principal = &domain.Principal{Username: "cli", Role: r}
			}

			method, target := strings.ToUpper(args[0]), args[1]
			fmt.Fprintf(cmd.OutOrStdout(), "access=%s decision=%s\n",
				pol.AccessFor(method, target), pol.Authorize(method, target, principal))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "evaluate as a principal with this role; empty means anonymous")
	return cmd
}

// readSecret returns the first line of r without its line terminator.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}
