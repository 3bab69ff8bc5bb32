package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/apps/server/internal/config"
	"github.com/tilsley/stockroom/apps/server/internal/inventory"
	"github.com/tilsley/stockroom/pkg/api"
)

// app carries the store constructors so tests can swap them out.
type app struct {
	configPath string
	out        io.Writer

	openAccounts  func(ctx context.Context, cfg *config.Config) (*accounts.Service, func(), error)
	openInventory func(ctx context.Context, cfg *config.Config) (*inventory.Service, error)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "stockroom-admin",
		Short:        "Operator tasks for stockroom",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file (default: $CONFIG_FILE)")

	userCmd := &cobra.Command{Use: "user", Short: "Manage user accounts"}
	userCmd.AddCommand(a.userCreateCmd(), a.userListCmd())

	partsCmd := &cobra.Command{Use: "parts", Short: "Inspect the parts catalogue"}
	partsCmd.AddCommand(a.partsExportCmd())

	root.AddCommand(userCmd, partsCmd, a.dashboardCmd())
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

func (a *app) userCreateCmd() *cobra.Command {
	var email, password, role, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long: `Create a user account and seed its profile.

Roles:
  admin  - manages users and everything editors can do
  editor - changes parts, stock and orders
  viewer - read only`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, closeFn, err := a.openAccounts(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			req := api.CreateUserRequest{Email: email, Password: password, Role: api.Role(role)}
			if name != "" {
				req.DisplayName = &name
			}
			u, err := svc.CreateUser(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(a.out, u)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(api.RoleViewer), "admin, editor or viewer")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: email local part)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, closeFn, err := a.openAccounts(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			users, err := svc.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(a.out, users)
		},
	}
}

var exportHeader = []string{
	"id", "partNumber", "name", "category", "supplier", "location", "unit",
	"quantity", "reorderPoint", "reorderQuantity", "unitCost", "level",
}

func (a *app) partsExportCmd() *cobra.Command {
	var category, level string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the parts catalogue as CSV to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, err := a.openInventory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			parts, err := svc.ListParts(cmd.Context(), inventory.PartFilter{
				Category: category,
				Level:    api.StockLevel(level),
			})
			if err != nil {
				return err
			}
			return writeCSV(a.out, parts)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only parts in this category")
	cmd.Flags().StringVar(&level, "level", "", "only parts at this stock level (in_stock, low_stock, out_of_stock)")
	return cmd
}

func writeCSV(w io.Writer, parts []api.Part) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range parts {
		row := []string{
			p.Id, p.PartNumber, p.Name, p.Category, deref(p.Supplier), deref(p.Location), p.Unit,
			strconv.Itoa(p.Quantity), strconv.Itoa(p.ReorderPoint), strconv.Itoa(p.ReorderQuantity),
			strconv.FormatFloat(p.UnitCost, 'f', 2, 64), string(p.Level),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (a *app) dashboardCmd() *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the inventory dashboard as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			svc, err := a.openInventory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			d, err := svc.Dashboard(cmd.Context(), recent)
			if err != nil {
				return err
			}
			return writeJSON(a.out, d)
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "recent movements to include")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
