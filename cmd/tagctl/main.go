// tagctl 是标签树的运维命令行工具，直接连接数据库执行结构性操作。
package main

import (
	"fmt"
	"os"

	"knowhub_tags/internal/config"
	"knowhub_tags/internal/repository"
	"knowhub_tags/internal/service"
	"knowhub_tags/pkg/database"
	"knowhub_tags/pkg/log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd(openService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serviceOpener 根据配置创建引擎，测试中替换为内存实现
type serviceOpener func(cfg config.Config) (service.TagService, *gorm.DB, error)

func openService(cfg config.Config) (service.TagService, *gorm.DB, error) {
	db, err := database.Open(cfg.Database.MySQL)
	if err != nil {
		return nil, nil, err
	}
	svc := service.NewTagService(
		repository.NewTagGateway(db),
		service.WithDefaultLanguageCode(cfg.Tags.DefaultLanguageCode),
	)
	return svc, db, nil
}

type cli struct {
	configFile string
	open       serviceOpener

	svc service.TagService
	db  *gorm.DB
}

func newRootCmd(open serviceOpener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:   "tagctl",
		Short: "tagctl manages the tag tree",
		Long: `tagctl runs structural operations on the tag tree (move, copy, merge,
convert, delete) and prints tags as JSON. It reads the same configuration
file as the server.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.attach,
		PersistentPostRunE: c.detach,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "configs/config.yaml", "config file")

	root.AddCommand(
		c.getCmd(),
		c.childrenCmd(),
		c.treeCmd(),
		c.moveCmd(),
		c.copyCmd(),
		c.mergeCmd(),
		c.convertCmd(),
		c.deleteCmd(),
		c.migrateCmd(),
	)
	return root
}

// attach 加载配置并连接数据库
func (c *cli) attach(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := log.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	if err != nil {
		return fmt.Errorf("init log: %w", err)
	}
	log.SetLogger(logger)

	if c.svc, c.db, err = c.open(cfg); err != nil {
		return fmt.Errorf("open tag service: %w", err)
	}
	return nil
}

func (c *cli) detach(cmd *cobra.Command, args []string) error {
	log.Sync()
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
