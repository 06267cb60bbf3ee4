package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/marcosnunesmbs/smith/internal/config"
	"github.com/marcosnunesmbs/smith/internal/logging"
	"github.com/marcosnunesmbs/smith/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:   "smith",
		Short: "Smith — remote execution agent",
		Long:  "Smith is a headless agent that accepts a WebSocket connection from a controller and executes sandboxed tools on its behalf.",
	}

	root.AddCommand(
		initCmd(),
		startCmd(),
		stopCmd(),
		statusCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath(home string) string {
	return filepath.Join(home, "config.toml")
}

// --- smith init ---

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the home directory and a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			home, err := config.EnsureHome()
			if err != nil {
				return err
			}

			cfg := config.Default()
			if name != "" {
				cfg.Name = name
			} else {
				cfg.Name = "smith-agent"
			}
			cfg.SandboxDir = home

			token, err := config.ResolveAuthToken("", home)
			if err != nil {
				return err
			}
			cfg.AuthToken = token

			path := configPath(home)
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			fmt.Printf("Config created at %s\n", path)
			fmt.Printf("Home directory: %s\n", home)
			fmt.Println("Edit sandbox_dir and categories as needed, then run: smith start")
			return nil
		},
	}
	cmd.Flags().String("name", "", "Instance name (default: smith-agent)")
	return cmd
}

// --- smith start ---

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the agent in the foreground",
		RunE:  runStart,
	}
	cmd.Flags().Bool("background", false, "Fork into the background and return immediately")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	home, err := config.EnsureHome()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath(home))
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'smith init' first", err)
	}
	if cfg.SandboxDir == "" {
		cfg.SandboxDir = home
	}
	token, err := config.ResolveAuthToken(cfg.AuthToken, home)
	if err != nil {
		return err
	}
	cfg.AuthToken = token

	if err := cfg.Validate(); err != nil {
		return err
	}

	if existingPID, alive := runningPID(home); alive {
		return fmt.Errorf("smith is already running (pid %d); run 'smith stop' first", existingPID)
	}

	background, _ := cmd.Flags().GetBool("background")
	if background {
		return forkBackground(home)
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger, logCloser, err := logging.New(config.LogFile(home), int64(cfg.LogMaxSizeMB)*1024*1024, level)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logCloser.Close()

	if err := os.WriteFile(config.PIDFile(home), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	defer os.Remove(config.PIDFile(home))

	auditDBPath := config.AuditDBFile(home)
	if cfg.Audit.DBPath != "" {
		auditDBPath = cfg.Audit.DBPath
	}
	srv, err := server.New(cfg, logger, config.BrowserCacheDir(home), auditDBPath)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("smith agent %q listening on :%d (sandbox: %s)\n", cfg.Name, cfg.Port, cfg.SandboxDir)
	logger.Info("agent starting", "name", cfg.Name, "port", cfg.Port, "sandbox_dir", cfg.SandboxDir)

	return srv.Serve(ctx)
}

// forkBackground re-execs the current binary as "smith start" in a detached
// session, with stdio redirected to the log file, and returns once the child
// has its own pid — it does not wait for the child to exit.
func forkBackground(home string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	logFile, err := os.OpenFile(config.LogFile(home), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, "start")
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to fork background process: %w", err)
	}

	fmt.Printf("smith started in background (pid %d)\n", child.Process.Pid)
	return nil
}

// --- smith stop ---

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop a running agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.Home()
			if err != nil {
				return err
			}

			pid, alive := runningPID(home)
			if !alive {
				return fmt.Errorf("smith is not running")
			}

			proc, err := process.NewProcess(int32(pid))
			if err != nil {
				return fmt.Errorf("failed to locate process %d: %w", pid, err)
			}

			if err := proc.SendSignal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to signal process %d: %w", pid, err)
			}

			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				if running, _ := proc.IsRunning(); !running {
					fmt.Printf("smith (pid %d) stopped\n", pid)
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}

			fmt.Printf("smith (pid %d) did not stop within 5s, sending SIGKILL\n", pid)
			return proc.Kill()
		},
	}
}

// --- smith status ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the agent is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.Home()
			if err != nil {
				return err
			}

			pid, alive := runningPID(home)
			if !alive {
				fmt.Println("smith is not running")
				return fmt.Errorf("not running")
			}

			fmt.Printf("smith is running (pid %d)\n", pid)
			return nil
		},
	}
}

// runningPID reads the pid file under home and reports whether that
// process is still alive. A missing or unparseable pid file, or a pid
// that no longer exists, both report alive=false.
func runningPID(home string) (pid int, alive bool) {
	data, err := os.ReadFile(config.PIDFile(home))
	if err != nil {
		return 0, false
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return pid, false
	}
	running, err := proc.IsRunning()
	if err != nil || !running {
		return pid, false
	}
	return pid, true
}
