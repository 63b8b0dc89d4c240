package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/bullseye/internal/config"
	"github.com/templui/bullseye/internal/db"
)

func DevCmd() *cobra.Command {
	var port int
	var skipMigrate bool

	devCmd := &cobra.Command{
		Use:   "dev",
		Short: "Run the escrow API under air, rebuilding on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("APP_ENV") == "" {
				os.Setenv("APP_ENV", "development")
			}
			if !skipMigrate {
				err := withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, database *sqlx.DB) error {
					return db.RunMigrations(ctx, database.DB, cfg.DBDriver)
				})
				if err != nil {
					return err
				}
			}
			return runDev(port)
		},
	}

	devCmd.Flags().IntVar(&port, "port", 8090, "port the API listens on")
	devCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "start without applying pending migrations")
	return devCmd
}

// runDev replaces the process with air watching the server and its migrations.
func runDev(port int) error {
	airPath, err := exec.LookPath("air")
	if err != nil {
		return fmt.Errorf("air not found, install with: go install github.com/air-verse/air@latest")
	}

	airArgs := []string{
		"air",
		"-c", "/dev/null",
		"-root", ".",
		"-build.cmd", "go build -o ./tmp/server ./cmd/server",
		"-build.bin", "./tmp/server",
		"-build.delay", "100",
		"-build.exclude_dir", "bin,tmp,data,_examples",
		"-build.exclude_regex", "_test.go$",
		"-build.include_ext", "go,sql",
		"-build.kill_delay", "500ms",
		"-build.send_interrupt", "true",
	}

	env := append(os.Environ(), "PORT="+strconv.Itoa(port))

	fmt.Printf("Serving escrow API on :%d\n", port)
	return syscall.Exec(airPath, airArgs, env)
}
