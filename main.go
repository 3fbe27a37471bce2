package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fieldops_backend/config"
	"fieldops_backend/database"
	"fieldops_backend/services"

	"github.com/spf13/cobra"
)

func main() {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "fieldops",
		Short:         "FieldOps backend: коллекции в реальном времени и дашборд",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	rootCmd.AddCommand(
		setupServeCommand(&cfg),
		setupMigrateCommand(&cfg),
		setupDigestCommand(&cfg),
		setupCreateUserCommand(&cfg),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func setupServeCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
}

func setupMigrateCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Создать базу, таблицы, индексы и триггеры уведомлений",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if err := database.CreateDatabaseIfNotExists(c); err != nil {
				return err
			}
			db, err := database.ConnectDatabase(c)
			if err != nil {
				return err
			}
			defer closeDB(db)
			return migrate(db, c)
		},
	}
}

func setupDigestCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Отправить сводку за вчерашний день и выйти",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApplication(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.digest.SendDigest(cmd.Context())
		},
	}
}

func setupCreateUserCommand(cfg **config.Config) *cobra.Command {
	var (
		input    services.CreateUserInput
		regionID string
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Создать пользователя (администратора или инженера)",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.ConnectDatabase(*cfg)
			if err != nil {
				return err
			}
			defer closeDB(db)

			if regionID != "" {
				input.RegionID = &regionID
			}
			user, err := services.NewUserService(db).CreateUser(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("не удалось создать пользователя: %w", err)
			}
			log.Printf("✅ Пользователь %s (%s) создан, id=%s", user.Email, user.Role, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Email, "email", "", "Email пользователя")
	cmd.Flags().StringVar(&input.Password, "password", "", "Пароль, не короче 8 символов")
	cmd.Flags().StringVar(&input.Name, "name", "", "Имя пользователя")
	cmd.Flags().StringVar(&input.Role, "role", "engineer", "Роль: admin или engineer")
	cmd.Flags().StringVar(&regionID, "region", "", "Основной регион инженера")
	cmd.Flags().StringSliceVar(&input.AssignedRegions, "assigned-regions", nil, "Дополнительные регионы инженера")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
