// Package service installs whistle as a systemd unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/crimson-sun/whistle/internal/config"
)

const (
	// UnitName is the systemd unit installed by Install.
	UnitName = "whistle.service"
	// DefaultUnitDir is where system units live.
	DefaultUnitDir = "/etc/systemd/system"
)

// RenderUnit returns the unit file running `whistle monitor` with the
// given config.
func RenderUnit(execPath, configPath string) string {
	return fmt.Sprintf(`[Unit]
Description=whistle log monitoring service
After=network-online.target systemd-journald.service
Wants=network-online.target

[Service]
Type=simple
User=root
ExecStart=%s monitor --config %s
Restart=on-failure
RestartSec=10
StandardOutput=journal
StandardError=journal

[Install]
WantedBy=multi-user.target
`, execPath, configPath)
}

// Runner runs an external command.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

// Installer writes the default config and the unit file, then reloads
// systemd.
type Installer struct {
	ExecPath  string
	UnitDir   string
	ConfigDir string
	Run       Runner
	Logger    *zap.Logger
}

// Result reports what Install did.
type Result struct {
	UnitPath      string
	ConfigPath    string
	ConfigCreated bool
	// ReloadErr is set when daemon-reload failed. The files are in place
	// and the operator can reload by hand.
	ReloadErr error
}

// NewInstaller returns an Installer with system defaults.
func NewInstaller(execPath string, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{
		ExecPath:  execPath,
		UnitDir:   DefaultUnitDir,
		ConfigDir: config.SystemDir,
		Run:       execRunner,
		Logger:    logger,
	}
}

// Install creates the default config when none exists, writes the unit
// and runs `systemctl daemon-reload`. An existing config is left alone.
func (i *Installer) Install(ctx context.Context) (Result, error) {
	if i.ExecPath == "" {
		return Result{}, errors.New("service: executable path is required")
	}
	res := Result{
		UnitPath:   filepath.Join(i.UnitDir, UnitName),
		ConfigPath: config.PathIn(i.ConfigDir),
	}

	if _, err := os.Stat(res.ConfigPath); errors.Is(err, fs.ErrNotExist) {
		i.Logger.Info("creating default config", zap.String("path", res.ConfigPath))
		if err := config.NewStore(res.ConfigPath).Save(config.Default()); err != nil {
			return res, fmt.Errorf("service: %w", err)
		}
		res.ConfigCreated = true
	} else if err != nil {
		return res, fmt.Errorf("service: stat config: %w", err)
	} else {
		i.Logger.Info("config already exists, leaving it unchanged", zap.String("path", res.ConfigPath))
	}

	if err := os.MkdirAll(i.UnitDir, 0o755); err != nil {
		return res, fmt.Errorf("service: %w", err)
	}
	unit := RenderUnit(i.ExecPath, res.ConfigPath)
	if err := os.WriteFile(res.UnitPath, []byte(unit), 0o644); err != nil {
		return res, fmt.Errorf("service: write unit: %w", err)
	}
	i.Logger.Info("wrote unit file", zap.String("path", res.UnitPath))

	if err := i.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		i.Logger.Warn("systemctl daemon-reload failed", zap.Error(err))
		res.ReloadErr = err
	}
	return res, nil
}
