package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/internal/validation"
	"github.com/Tuns2000/Campusfix-sub000/pkg/database"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
)

// ────────────────────── migrate ──────────────────────

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить миграции базы данных",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		if rollbackSteps > 0 {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			if err := database.RollbackMigrations(sqlDB, rollbackSteps, a.logger); err != nil {
				return err
			}
			fmt.Println(green("✓"), "Откат выполнен, шагов:", rollbackSteps)
			return nil
		}

		if err := a.migrate(); err != nil {
			return err
		}
		fmt.Println(green("✓"), "Миграции применены")
		return nil
	},
}

// ────────────────────── create-admin ──────────────────────

var adminReq dto.RegisterRequest

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Создать пользователя с ролью администратора",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := validation.New()
		if err != nil {
			return err
		}
		if err := v.Struct(&adminReq); err != nil {
			if fields, ok := validation.Translate(err); ok {
				for _, f := range fields {
					fmt.Fprintln(os.Stderr, red("✗"), f.Field+":", f.Message)
				}
				return fmt.Errorf("%s", validation.MsgInvalidInput)
			}
			return err
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.migrate(); err != nil {
			return err
		}

		repo := repository.NewRepository(a.db)
		admins, err := repo.User.CountByRole(cmd.Context(), model.RoleAdmin)
		if err != nil {
			return err
		}
		if admins > 0 {
			fmt.Println(yellow("⚠"), "В системе уже есть администраторы:", admins, "(будет создан еще один)")
		}

		authSvc := service.NewAuthService(repo, jwt.NewManager(&a.cfg.Auth), nil, a.logger)
		user, err := authSvc.CreateUser(cmd.Context(), &adminReq, model.RoleAdmin)
		if err != nil {
			return err
		}

		fmt.Println(green("✓"), "Администратор создан:", user.Email, "("+user.ID+")")
		return nil
	},
}

// ────────────────────── reconcile-attachments ──────────────────────

var reconcileFix bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-attachments",
	Short: "Сверить записи о вложениях с файлами в хранилище",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		store, err := storage.New(ctx, &a.cfg.Upload, a.logger)
		if err != nil {
			return err
		}

		repo := repository.NewRepository(a.db)
		svc := service.NewAttachmentService(&a.cfg.Upload, repo, store, a.logger)
		report, err := svc.Reconcile(ctx, reconcileFix)
		if err != nil {
			return err
		}

		printReconcileReport(report, reconcileFix)
		return nil
	},
}

func printReconcileReport(report *service.ReconcileReport, fixed bool) {
	if len(report.MissingFiles) == 0 && len(report.OrphanFiles) == 0 {
		fmt.Println(green("✓"), "Расхождений не найдено")
		return
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header("Проблема", "Ключ", "Вложение", "Размер")
	for _, a := range report.MissingFiles {
		_ = table.Append(red("нет файла"), a.FilePath, a.ID, strconv.FormatInt(a.FileSize, 10))
	}
	for _, o := range report.OrphanFiles {
		_ = table.Append(yellow("нет записи"), o.Key, "-", strconv.FormatInt(o.Size, 10))
	}
	_ = table.Render()

	summary := []string{
		fmt.Sprintf("без файла: %d", len(report.MissingFiles)),
		fmt.Sprintf("без записи: %d", len(report.OrphanFiles)),
	}
	if fixed {
		summary = append(summary,
			fmt.Sprintf("удалено записей: %d", report.RemovedRows),
			fmt.Sprintf("удалено файлов: %d", report.RemovedFiles),
		)
		fmt.Println(green("✓"), strings.Join(summary, ", "))
		return
	}
	fmt.Println(yellow("⚠"), strings.Join(summary, ", "), "(запустите с --fix для исправления)")
}

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "rollback", 0, "откатить указанное число миграций")

	f := createAdminCmd.Flags()
	f.StringVar(&adminReq.Email, "email", "", "email администратора")
	f.StringVar(&adminReq.Password, "password", "", "пароль")
	f.StringVar(&adminReq.FirstName, "first-name", "", "имя")
	f.StringVar(&adminReq.LastName, "last-name", "", "фамилия")
	for _, name := range []string{"email", "password", "first-name", "last-name"} {
		_ = createAdminCmd.MarkFlagRequired(name)
	}

	reconcileCmd.Flags().BoolVar(&reconcileFix, "fix", false, "удалить файлы без записей и записи без файлов")
}
