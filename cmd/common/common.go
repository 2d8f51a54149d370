package common

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	golog "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cloudx-io/assetauction/logging"
)

// Flag describes a configuration flag.
type Flag struct {
	Name        string
	DefValue    interface{}
	Description string
	Repeatable  bool
}

// LoggingFlags are the flags read by ConfigureLogging.
var LoggingFlags = []Flag{
	{Name: "log-level", DefValue: "info", Description: "Log level: debug, info, warn or error"},
	{Name: "log-json", DefValue: false, Description: "Enable structured logging"},
}

// ConfigureCLI configures a Viper environment with flags and envs.
func ConfigureCLI(v *viper.Viper, envPrefix string, flags []Flag, cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for _, flag := range flags {
		switch defval := flag.DefValue.(type) {
		case string:
			if flag.Repeatable {
				cmd.Flags().StringSlice(flag.Name, []string{defval}, flag.Description)
			} else {
				cmd.Flags().String(flag.Name, defval, flag.Description)
			}
			v.SetDefault(flag.Name, defval)
		case bool:
			cmd.Flags().Bool(flag.Name, defval, flag.Description)
			v.SetDefault(flag.Name, defval)
		case int:
			cmd.Flags().Int(flag.Name, defval, flag.Description)
			v.SetDefault(flag.Name, defval)
		case uint32:
			cmd.Flags().Uint32(flag.Name, defval, flag.Description)
			v.SetDefault(flag.Name, defval)
		case time.Duration:
			cmd.Flags().Duration(flag.Name, defval, flag.Description)
			v.SetDefault(flag.Name, defval)
		default:
			return fmt.Errorf("unknown type %T for flag %s", flag.DefValue, flag.Name)
		}
		if err := v.BindPFlag(flag.Name, cmd.Flags().Lookup(flag.Name)); err != nil {
			return fmt.Errorf("binding flag %s: %s", flag.Name, err)
		}
	}
	return nil
}

// ConfigureLogging sets up output format and levels from the log-json and
// log-level settings. If systems is empty every subsystem gets the level.
func ConfigureLogging(v *viper.Viper, systems []string) error {
	if v.GetBool("log-json") {
		golog.SetupLogging(golog.Config{
			Format: golog.JSONOutput,
			Stderr: false,
			Stdout: true,
			Level:  golog.LevelError,
		})
	}

	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("parsing log level: %s", err)
	}
	if len(systems) == 0 {
		systems = []string{"*"}
	}
	levels := make(map[string]golog.LogLevel, len(systems))
	for _, sys := range systems {
		levels[sys] = level
	}
	if err := logging.SetLogLevels(levels); err != nil {
		return fmt.Errorf("set log levels: %s", err)
	}
	return nil
}

// ParseStringSlice returns a single slice of values that may have been set by either repeating
// a flag or using comma separation in a single flag.
func ParseStringSlice(v *viper.Viper, key string) []string {
	var vals []string
	for _, val := range v.GetStringSlice(key) {
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				vals = append(vals, part)
			}
		}
	}
	return vals
}

// CheckErr ends in a fatal log if err is not nil.
func CheckErr(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// CheckErrf ends in a fatal log if err is not nil.
func CheckErrf(format string, err error) {
	if err != nil {
		log.Fatalf(format, err)
	}
}

// HandleInterrupt blocks until SIGINT or SIGTERM, then runs cleanup. A second
// signal forces the process to exit.
func HandleInterrupt(cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	fmt.Println("Gracefully stopping... (press Ctrl+C again to force)")
	go func() {
		<-quit
		os.Exit(1)
	}()
	cleanup()
}
