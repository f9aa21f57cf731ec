package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"fintrack/internal/app"
	"fintrack/internal/config"
	"fintrack/internal/infrastructure/database"
	"fintrack/internal/logging"
	"fintrack/internal/model"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow, color.Bold)
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, err)
			}
			if cfg.Store.Driver != config.StoreDriverMySQL {
				return fail(cmd, fmt.Errorf("store.driver=%s 不需要迁移", cfg.Store.Driver))
			}
			db, err := database.InitMySQL(&cfg.MySQL)
			if err != nil {
				return fail(cmd, err)
			}
			defer func() {
				err = multierr.Append(err, database.Close(db))
			}()
			if err = database.Migrate(db); err != nil {
				return fail(cmd, err)
			}
			green.Fprintln(cmd.OutOrStdout(), "迁移完成")
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var owner string
	c := &cobra.Command{
		Use:   "list",
		Short: "列出用户的有效账户",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				accounts, err := a.AccountService.ListActive(ctx, owner)
				if err != nil {
					return err
				}
				printAccounts(cmd.OutOrStdout(), accounts)
				return nil
			})
		},
	}
	c.Flags().StringVar(&owner, "owner", "", "用户ID")
	_ = c.MarkFlagRequired("owner")
	return c
}

func setDefaultCmd() *cobra.Command {
	var owner, id string
	c := &cobra.Command{
		Use:   "set-default",
		Short: "设为默认账户",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.AccountService.SetDefault(ctx, id, owner); err != nil {
					return err
				}
				green.Fprintf(cmd.OutOrStdout(), "%s 已设为默认账户\n", id)
				return nil
			})
		},
	}
	c.Flags().StringVar(&owner, "owner", "", "用户ID")
	c.Flags().StringVar(&id, "id", "", "账户ID")
	_ = c.MarkFlagRequired("owner")
	_ = c.MarkFlagRequired("id")
	return c
}

func deleteCmd() *cobra.Command {
	var owner, id string
	c := &cobra.Command{
		Use:   "delete",
		Short: "删除账户（余额必须为零）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.AccountService.SoftDelete(ctx, id, owner); err != nil {
					return err
				}
				green.Fprintf(cmd.OutOrStdout(), "%s 已删除\n", id)
				return nil
			})
		},
	}
	c.Flags().StringVar(&owner, "owner", "", "用户ID")
	c.Flags().StringVar(&id, "id", "", "账户ID")
	_ = c.MarkFlagRequired("owner")
	_ = c.MarkFlagRequired("id")
	return c
}

func loadConfig() (*config.Config, error) {
	color.NoColor = color.NoColor || flags.noColor
	return config.LoadConfig(flags.configPath)
}

// withApp 组装依赖后执行 fn，结束时关闭所有连接
func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return fail(cmd, err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr()))
	if err != nil {
		return fail(cmd, err)
	}
	defer func() {
		err = multierr.Append(err, a.Close())
	}()
	if err := fn(ctx, a); err != nil {
		return fail(cmd, err)
	}
	return nil
}

func printAccounts(w io.Writer, accounts []*model.Account) {
	if len(accounts) == 0 {
		fmt.Fprintln(w, "没有有效账户")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDEFAULT\tBALANCE")
	for _, a := range accounts {
		balance := a.Balance.StringFixed(2)
		if a.Balance.IsNegative() {
			balance = red.Sprint(balance)
		}
		// 每行都着色，转义序列长度一致才能对齐
		mark := yellow.Sprint(" ")
		if a.IsDefault {
			mark = yellow.Sprint("*")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Type, mark, balance)
	}
	tw.Flush()
}
