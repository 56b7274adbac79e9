package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/emanuelstiuj/Mini-Shell/core/config"
	"github.com/emanuelstiuj/Mini-Shell/core/interp"
	"github.com/emanuelstiuj/Mini-Shell/core/logger"
	"github.com/emanuelstiuj/Mini-Shell/core/shell"
	"github.com/emanuelstiuj/Mini-Shell/core/vos"
)

var (
	commandFlag string
	logPathFlag string
)

// runCmd runs the shell on the host: external commands are real
// processes and the filesystem is the real one.
var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run the shell interactively, for one command or for a script",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		auditLog, closeLog, err := openAuditLog(logPathFlag)
		if err != nil {
			return err
		}
		defer closeLog()

		v := newHostOS(configuration)
		isPTY := readline.IsTerminal(int(os.Stdin.Fd()))

		sh, err := shell.NewShell(v, shell.Options{
			Interp:      interp.New(),
			Log:         auditLog,
			User:        loginName(v),
			IsPTY:       isPTY,
			HistoryFile: configuration.HistoryFile,
		})
		if err != nil {
			return err
		}

		var status int
		switch {
		case commandFlag != "":
			status = sh.RunCommand(commandFlag)
		case len(args) == 1:
			script, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			status = sh.RunScript(string(script))
		default:
			if configuration.Motd != "" {
				fmt.Fprint(v.Stdout(), configuration.Motd)
			}
			status = sh.RunInteractive()
		}
		if status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

// newHostOS wires a process context to the real machine: OS filesystem,
// inherited environment and real process creation.
func newHostOS(configuration *config.Configuration) vos.VOS {
	hostname := configuration.Hostname
	if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	sys := vos.NewSystemOS(afero.NewOsFs(), hostname, nil)
	v := sys.InitProc()
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			v.Setenv(key, value)
		}
	}
	if _, ok := v.LookupEnv(shell.EnvPath); !ok {
		v.Setenv(shell.EnvPath, configuration.DefaultPath)
	}
	if configuration.Prompt != "" {
		v.Setenv(shell.EnvPrompt, configuration.Prompt)
	}
	if wd, err := os.Getwd(); err == nil {
		_ = v.Chdir(wd)
	}
	v.SetStdin(os.Stdin)
	v.SetStdout(os.Stdout)
	v.SetStderr(os.Stderr)
	return v
}

func loginName(v vos.VOS) string {
	if user := v.Getenv(shell.EnvUser); user != "" {
		return user
	}
	return "root"
}

// openAuditLog opens the JSON lines audit destination. An empty path
// disables auditing.
func openAuditLog(path string) (*logger.Logger, func(), error) {
	if path == "" {
		return logger.NewNop(), func() {}, nil
	}
	fd, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return logger.New(fd, logger.NewSessionID()), func() { fd.Close() }, nil
}

func init() {
	runCmd.Flags().StringVarP(&commandFlag, "command", "c", "", "run a single command and exit")
	runCmd.Flags().StringVar(&logPathFlag, "log", "", "append JSON lines audit records to this file")
	rootCmd.AddCommand(runCmd)
}
