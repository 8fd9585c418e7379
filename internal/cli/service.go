package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/termwatch/internal/config"
	"github.com/ppiankov/termwatch/internal/systemd"
)

// serviceUnitPath is where --install writes the unit and where doctor
// looks for it.
var serviceUnitPath = filepath.Join("/etc/systemd/system", systemd.DefaultUnitName)

const unitHashFile = "unit.sha256"

var (
	serviceUser    string
	serviceBinary  string
	serviceInstall bool
)

func init() {
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.Flags().StringVar(&serviceUser, "user", "", "Run the service as this user")
	serviceCmd.Flags().StringVar(&serviceBinary, "binary", "", "Path to the termwatch binary (default: this executable)")
	serviceCmd.Flags().BoolVar(&serviceInstall, "install", false, "Write the unit to "+serviceUnitPath+" and record its hash")
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Print or install a systemd unit for termwatch watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		binary := serviceBinary
		if binary == "" {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot resolve executable: %w", err)
			}
			binary = exe
		}
		target := ""
		if serviceInstall {
			target = serviceUnitPath
		}
		return runService(os.Stdout, config.GetConfigDir(), currentSettings(), binary, serviceUser, target)
	},
}

// runService renders the watch unit. With an empty target it prints the
// unit, otherwise it writes it to target and records the hash under
// configDir for doctor to verify later.
func runService(w io.Writer, configDir string, cfg *config.Config, binary, user, target string) error {
	cfgPath := ""
	if p := filepath.Join(configDir, "config.yaml"); fileExists(p) {
		cfgPath = p
	}

	historyDir := ""
	if cfg.HistoryDB != "" {
		historyDir = filepath.Dir(cfg.HistoryDB)
	}

	unit, err := systemd.WatchUnit(systemd.UnitOptions{
		Binary:     binary,
		Config:     cfgPath,
		User:       user,
		Inbox:      cfg.Watch.Inbox,
		Outbox:     cfg.Watch.Outbox,
		State:      cfg.Watch.State,
		HistoryDir: historyDir,
	})
	if err != nil {
		return err
	}

	if target == "" {
		_, err := io.WriteString(w, unit)
		return err
	}

	if err := os.WriteFile(target, []byte(unit), 0644); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := systemd.RecordUnitHash(target, filepath.Join(configDir, unitHashFile)); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", target)
	fmt.Fprintf(w, "Enable with: systemctl daemon-reload && systemctl enable --now %s\n", filepath.Base(target))
	return nil
}
