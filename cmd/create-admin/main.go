package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
	"mailroom/backend/internal/storage/hybrid"
)

// 开账号的引导工具：Register 接口要求主管权限，第一个主管
// 账号只能从这里写进数据库。
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: create-admin <email> <password> <username> [manager|admin]")
		os.Exit(1)
	}

	email := os.Args[1]
	password := os.Args[2]
	username := os.Args[3]
	role := domain.RoleManager
	if len(os.Args) >= 5 && os.Args[4] == "admin" {
		role = domain.RoleAdmin
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("No database configured. Set database type and DSN first;")
		fmt.Println("accounts created against memory storage would vanish on exit.")
		os.Exit(1)
	}

	store, err := hybrid.NewStore(&cfg.Database, &cfg.Redis, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to connect storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if !auth.ValidateEmail(email) {
		fmt.Println("Invalid email format")
		os.Exit(1)
	}
	if err := auth.ValidatePassword(password); err != nil {
		fmt.Printf("Invalid password: %v\n", err)
		os.Exit(1)
	}

	if _, err := store.GetUserByUsername(username); err == nil {
		fmt.Printf("User %q already exists\n", username)
		os.Exit(1)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		fmt.Printf("Failed to check existing user: %v\n", err)
		os.Exit(1)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := store.CreateUser(user); err != nil {
		fmt.Printf("Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Account created successfully")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Username: %s\n", user.Username)
	fmt.Printf("  Role:     %s\n", user.Role)
}
