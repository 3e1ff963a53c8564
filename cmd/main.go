package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"archweaver/internal/config"
	"archweaver/internal/disk"
	"archweaver/internal/executor"
	"archweaver/internal/hwinfo"
	"archweaver/internal/installer"
	"archweaver/internal/logging"
	"archweaver/internal/snapshot"
	"archweaver/internal/structures"
)

var version = "dev"

var (
	// Флаги
	configPath string
	logPath    string
	verbose    bool
	dryRun     bool
	debug      bool
	assumeYes  bool
)

// rootCmd представляет базовую команду
var rootCmd = &cobra.Command{
	Use:   "archweaver",
	Short: "ArchWeaver - Arch Linux installation plan compiler",
	Long: `ArchWeaver turns an installation configuration (disks, encryption,
boot loader, kernels, users, packages, network) into an ordered plan of
privileged steps and runs it against the live machine.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Без подкоманды выводим помощь
		cmd.Help()
	},
}

// planCmd показывает план без выполнения
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compile the configuration and print the installation plan",
	Long: `Compile the configuration into an installation plan and print it.
Every package name is checked against the pacman sync database; names that
cannot be resolved are reported and left out of the install step.
Passwords are never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewCommandLogger(verbose).With("command", "plan")

		s, err := loadSnapshot(logger)
		if err != nil {
			return err
		}
		compiled, err := installer.Compile(cmd.Context(), s, installer.Options{DryRun: true})
		if err != nil {
			return err
		}
		logger.Debug("plan compiled", "steps", len(compiled.Plan.Steps), "packages", len(compiled.Packages))

		printPlan(compiled.Plan)
		reportMissing(compiled.Missing)
		return nil
	},
}

// installCmd выполняет план
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install Arch Linux according to the configuration",
	Long: `Compile the configuration and execute the plan on this machine.
The target disk is wiped and repartitioned. Use --dry-run to stream the
plan without executing anything; a real run requires --yes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewCommandLogger(verbose).With("command", "install")

		s, err := loadSnapshot(logger)
		if err != nil {
			return err
		}
		if !dryRun && !assumeYes {
			return fmt.Errorf("refusing to erase %s without --yes (use --dry-run to preview)", s.Device)
		}

		compiled, err := installer.Compile(cmd.Context(), s, installer.Options{DryRun: dryRun})
		if err != nil {
			return err
		}
		reportMissing(compiled.Missing)

		events := make(chan executor.Event, 64)
		if dryRun {
			go executor.DryRun(compiled.Plan, events)
			printEvents(events)
			return nil
		}

		target := structures.DefaultTargetConfig()
		target.Debug = s.Debug
		if logPath != "" {
			target.LogPath = logPath
		}
		if disk.RootEncrypted(s) {
			target.CryptMapping = disk.CryptRootName
		}

		exec := executor.New(target)
		exec.SetLogger(logger)
		if verbose {
			exec.SetLogWriter(os.Stdout)
		}

		// Гарантируем очистку /mnt при выходе, независимо от результата
		defer func() {
			if err := exec.Release(); err != nil {
				printWarning(fmt.Sprintf("cleanup: %v", err))
			}
		}()

		done := make(chan error, 1)
		go func() {
			done <- exec.Run(cmd.Context(), compiled.Plan, events)
		}()
		printEvents(events)

		if err := <-done; err != nil {
			return fmt.Errorf("installation stopped: %w", err)
		}
		printSuccess("Installation complete, you can reboot now")
		return nil
	},
}

// validateCmd проверяет конфигурацию
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadInstallConfig(configPath)
		if err != nil {
			return err
		}
		if err := config.FillPasswordsFromEnv(cfg); err != nil {
			return err
		}

		for _, p := range config.PasswordsPending(cfg) {
			printWarning("password required: " + p)
		}
		if err := config.ValidateConfig(cfg); err != nil {
			return err
		}

		s := snapshot.FromConfig(cfg, hwinfo.DefaultProber().Probe())
		if problems := installer.Preflight(s); len(problems) > 0 {
			return &config.ValidationError{Problems: problems}
		}

		printSuccess("Configuration is valid")
		printLabelValue("Disk", s.Device)
		printLabelValue("Boot loader", s.Bootloader.String())
		printLabelValue("Firmware", firmwareName(s.UEFI))
		printLabelValue("Root device", disk.RootDevice(s))
		return nil
	},
}

// saveConfigCmd сохраняет конфигурацию с хэшами паролей
var saveConfigCmd = &cobra.Command{
	Use:   "save-config [output]",
	Short: "Write the configuration with passwords replaced by hashes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadInstallConfig(configPath)
		if err != nil {
			return err
		}
		if err := config.FillPasswordsFromEnv(cfg); err != nil {
			return err
		}
		if err := config.SaveInstallConfig(args[0], cfg); err != nil {
			return err
		}
		printSuccess("Configuration saved to " + args[0])
		return nil
	},
}

// versionCmd показывает версию
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ArchWeaver %s\n", version)
	},
}

// loadSnapshot загружает конфигурацию, проверяет её и строит снимок
func loadSnapshot(logger *slog.Logger) (*snapshot.Snapshot, error) {
	cfg, err := config.LoadInstallConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.FillPasswordsFromEnv(cfg); err != nil {
		return nil, err
	}
	if debug {
		cfg.System.Debug = true
	}
	if pending := config.PasswordsPending(cfg); len(pending) > 0 {
		logger.Warn("passwords not provided", "pending", strings.Join(pending, ","))
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	facts := hwinfo.DefaultProber().Probe()
	logger.Debug("hardware facts", "uefi", facts.UEFI, "cpu", facts.CPUVendor, "machine", facts.Machine)

	s := snapshot.FromConfig(cfg, facts)
	if problems := installer.Preflight(s); len(problems) > 0 {
		return nil, &config.ValidationError{Problems: problems}
	}
	return s, nil
}

func reportMissing(missing []string) {
	if len(missing) == 0 {
		return
	}
	printWarning(fmt.Sprintf("%d package(s) not found and skipped: %s", len(missing), strings.Join(missing, ", ")))
}

func firmwareName(uefi bool) string {
	if uefi {
		return "UEFI"
	}
	return "BIOS"
}

func init() {
	// Глобальные флаги
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "archweaver.yaml", "Path to the installation config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Keep debug logs and copy them into the installed system")

	installCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without executing any step")
	installCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Confirm that the target disk may be erased")
	installCmd.Flags().StringVar(&logPath, "log", "", "Install log path (default /var/log/archweaver/install.log)")

	// Добавляем подкоманды
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(saveConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err.Error())
		stop()
		os.Exit(1)
	}
}
