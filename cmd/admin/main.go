// Command admin 提供运维用的账号管理：
//
//	admin create-user -username alice [-email a@b.c] [-full-name Alice]
//	admin reset-password -username alice
//
// 两个命令都会生成一次性随机密码并打印到标准输出。
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"resumate/internal/auth"
	"resumate/internal/config"
	"resumate/internal/database"
)

const passwordBytes = 24

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <create-user|reset-password> -username NAME [flags]")
	os.Exit(2)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	username := fs.String("username", "", "用户名（必填）")
	migrate := fs.Bool("migrate", true, "执行前先迁移数据库")
	var email, fullName *string
	if cmd == "create-user" {
		email = fs.String("email", "", "邮箱")
		fullName = fs.String("full-name", "", "姓名")
	}
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "load config", err)
	}
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		fatal(logger, "init database", err)
	}
	if *migrate {
		if err := database.Migrate(db); err != nil {
			fatal(logger, "migrate", err)
		}
	}

	// 这里只做账号操作，不签发令牌也不需要 redis
	accounts := auth.NewAccounts(db, nil, nil, auth.LoginPolicy{})
	password, err := randomPassword()
	if err != nil {
		fatal(logger, "generate password", err)
	}

	ctx := context.Background()
	var user *database.User
	switch cmd {
	case "create-user":
		user, err = accounts.Register(ctx, auth.Registration{
			Username:           *username,
			Email:              *email,
			FullName:           *fullName,
			Password:           password,
			MustChangePassword: true,
		})
	case "reset-password":
		user, err = accounts.ResetPassword(ctx, *username, password)
	default:
		usage()
	}
	if err != nil {
		fatal(logger, cmd, err)
	}

	fmt.Printf("账号: %s (id=%d)\n", user.Username, user.ID)
	fmt.Printf("一次性密码: %s\n", password)
	fmt.Println("登录后须先通过 /api/v1/auth/change-password 修改密码，之前业务接口均返回 403。")
}

func fatal(logger *slog.Logger, step string, err error) {
	logger.Error(step+" failed", slog.Any("error", err))
	os.Exit(1)
}

func randomPassword() (string, error) {
	buf := make([]byte, passwordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
