package main

import (
	"fmt"
	"os"

	"fintrack/pkg/idgen"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "accountctl",
		Short:        "账户运维工具",
		Long:         `直接操作账户存储的运维命令，与 HTTP 服务共用同一套配置、锁和账户规则。`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := idgen.Init(flags.workerID); err != nil {
				return fail(cmd, err)
			}
			return nil
		},
	}
	c.PersistentFlags().StringVar(&flags.configPath, "config", "config/config.yaml", "配置文件路径")
	c.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "关闭颜色输出")
	// 默认取最大机器号，和 server 的默认值错开；同时运行多个 accountctl 时需分别指定
	c.PersistentFlags().Int64Var(&flags.workerID, "worker-id", idgen.MaxWorkerID, "雪花算法机器ID，不能与运行中的 server 重复")

	c.AddCommand(
		migrateCmd(),
		listCmd(),
		setDefaultCmd(),
		deleteCmd(),
	)
	return c
}

var flags struct {
	configPath string
	noColor    bool
	workerID   int64
}

func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), red.Sprint(err))
	return err
}
