package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/logging"
)

func main() {
	var (
		username = flag.String("username", "", "账号用户名（必填）")
		email    = flag.String("email", "", "账号邮箱（必填）")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*dbHost) != "" {
		cfg.Database.Host = strings.TrimSpace(*dbHost)
	}
	if *dbPort > 0 {
		cfg.Database.Port = *dbPort
	}

	logger := logging.New(cfg.Log, os.Stderr)
	if err := run(cfg, logger, *username, *email); err != nil {
		logger.Error("create account failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, username, email string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" {
		return fmt.Errorf("missing required flags: --username and --email")
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 建号不涉及令牌签发与登录限流。
	accounts := auth.NewAccounts(db, nil, nil, auth.LoginPolicy{})
	ctx := logging.WithLogger(context.Background(), logger)
	user, password, err := accounts.CreateAccount(ctx, username, email)
	if err != nil {
		return err
	}

	fmt.Printf("已创建账号（首次登录需强制改密）：\n")
	fmt.Printf("用户名: %s\n", user.Username)
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次，请立即登录并修改。\n")
	return nil
}
