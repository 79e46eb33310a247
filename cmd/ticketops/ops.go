package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ticketops/backup"
	"ticketops/legacy"
	"ticketops/notify"
	"ticketops/rights"
	"ticketops/settings"
	"ticketops/users"
)

var (
	dryRun      bool
	siteID      int64
	emailTo     string
	newUsername string
	newPassword string
	resetAdmin  bool
)

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Import clients, sites, users, assets, stock and tickets from the legacy MongoDB",
	Long: `Reads the legacy MongoDB database named in the legacy section of the
config and copies its records into the SQL store. Records whose unique key
(client code, username, asset code, ticket number) already exists are
skipped, so the import can be re-run.

Users whose legacy password is not a bcrypt hash are imported disabled.`,
	RunE: runImportLegacy,
}

var clearStockCmd = &cobra.Command{
	Use:   "clear-stock",
	Short: "Zero every stock quantity at a site",
	RunE:  runClearStock,
}

var emailTestCmd = &cobra.Command{
	Use:   "email-test",
	Short: "Send a test e-mail through the configured SMTP server",
	RunE:  runEmailTest,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a spreadsheet backup of every table to S3 or the local backup directory",
	RunE:  runBackup,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a super admin, or reset its password with --reset",
	RunE:  runCreateAdmin,
}

func init() {
	importLegacyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be imported without writing")

	clearStockCmd.Flags().Int64Var(&siteID, "site", 0, "site id")
	clearStockCmd.MarkFlagRequired("site")

	emailTestCmd.Flags().StringVar(&emailTo, "to", "", "recipient address")
	emailTestCmd.MarkFlagRequired("to")

	createAdminCmd.Flags().StringVar(&newUsername, "username", "", "username")
	createAdminCmd.Flags().StringVar(&newPassword, "password", "", "password")
	createAdminCmd.Flags().BoolVar(&resetAdmin, "reset", false, "reset the password of an existing super admin")
	createAdminCmd.MarkFlagRequired("username")
	createAdminCmd.MarkFlagRequired("password")
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	src, err := legacy.Connect(ctx, a.cfg.Legacy)
	if err != nil {
		return err
	}
	defer src.Close(context.WithoutCancel(ctx))

	report, err := legacy.NewImporter(a.db, src, a.log).Run(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	for _, w := range report.Warnings {
		a.log.Warn("import", zap.String("warning", w))
	}
	return printJSON(cmd, report)
}

func runClearStock(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.engine().Inventory().ClearStock(rights.System, siteID)
	if err != nil {
		return err
	}
	a.log.Info("stock cleared", zap.Int64("site_id", siteID), zap.Int("items", n))
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d stock items at site %d\n", n, siteID)
	return nil
}

func runEmailTest(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	mailer := notify.NewSMTPMailer(a.cfg.Email)
	if !mailer.Configured() {
		return notify.ErrMailNotConfigured
	}
	if err := notify.New(a.db, settings.New(a.db), mailer, a.log).SendTest(emailTo); err != nil {
		return fmt.Errorf("send to %s: %w", emailTo, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "test e-mail sent to %s\n", emailTo)
	return nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := backup.New(cmd.Context(), a.db, a.cfg.Storage, a.log)
	if err != nil {
		return err
	}
	res, err := svc.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	u, err := a.engine().Users().CreateAdmin(newUsername, newPassword, resetAdmin)
	if errors.Is(err, users.ErrConflict) {
		return fmt.Errorf("user %q exists, pass --reset to change its password", newUsername)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "super admin %q ready (id %d)\n", u.Username, u.ID)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
