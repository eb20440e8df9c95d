package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sehri-go/internal/app"
	"sehri-go/internal/calendar"
	"sehri-go/internal/config"
	"sehri-go/internal/encryption"
	"sehri-go/internal/sehri"
)

var verbose bool

func main() {
	// Secrets such as SEHRI_PASSPHRASE or SEHRI_TELEGRAM_TOKEN may live in .env.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	path := defaults["config_path"]
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	app.ApplyEnv(cfg)
	return cfg, path, nil
}

// newApp reads the config and creates a SehriApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Today", "Serve").
func newApp(ctx context.Context, operation string, logToStderr bool) (*app.SehriApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	pass, err := storePassphrase(cfg)
	if err != nil {
		return nil, err
	}

	a, err := app.NewSehriApp(ctx, cfg, app.Options{
		Operation:  operation,
		Passphrase: pass,
		Verbose:    logToStderr,
		Out:        os.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh SehriApp and marks the operation failed
// when fn returns an error.
func withApp(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.SehriApp) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, operation, verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		a.Fail()
		return err
	}
	return nil
}

// storePassphrase returns the passphrase for an encrypted store, from the
// environment or an interactive prompt.
func storePassphrase(cfg *config.Config) (string, error) {
	if !cfg.Store.Encrypted {
		return "", nil
	}
	if p, ok := app.PassphraseFromEnv(); ok {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("%w: set %s", app.ErrPassphraseRequired, app.EnvPassphrase)
	}
	return readPassphrase("Passphrase: ")
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "sehri",
	Short:        "Sehri and iftar times, countdown and reminders",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if city, _ := cmd.Flags().GetString("city"); city != "" {
			cfg.Location.City = city
		}
		if tz, _ := cmd.Flags().GetString("timezone"); tz != "" {
			cfg.Timezone = tz
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		printConfig(os.Stdout, cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nWarning: %v\n", err)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change a configuration value",
	Long:  "Change a configuration value. Keys: " + settableKeys(),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("%s updated\n", args[0])
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the encryption keys of an encrypted store",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a key pair protected by a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}

		pass, ok := app.PassphraseFromEnv()
		if !ok {
			if pass, err = readPassphrase("New passphrase: "); err != nil {
				return err
			}
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if pass != confirm {
				return errors.New("passphrases do not match")
			}
		}
		if pass == "" {
			return errors.New("passphrase must not be empty")
		}

		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		if !cfg.Store.Encrypted {
			fmt.Println("Run 'sehri config set store.encrypted true' to encrypt stored data.")
		}
		return nil
	},
}

// today command
var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's sehri and iftar times",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "Today", func(ctx context.Context, a *app.SehriApp) error {
			s, err := a.Today(ctx)
			if err != nil {
				return err
			}
			printToday(os.Stdout, s, a.Settings(), a.Now())
			return nil
		})
	},
}

// countdown command
var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Show the time left until sehri ends or iftar",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")

		return withApp(cmd, "Countdown", func(ctx context.Context, a *app.SehriApp) error {
			target, err := a.Countdown(ctx)
			if err != nil {
				return err
			}
			locale := a.Settings().Locale
			if !watch {
				fmt.Println(countdownLine(target, a.Now(), locale))
				return nil
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				fmt.Printf("\r%s ", countdownLine(target, a.Now(), locale))
				if target.Remaining(a.Now()) == 0 {
					if target, err = a.Countdown(ctx); err != nil {
						fmt.Println()
						return err
					}
				}
				select {
				case <-ctx.Done():
					fmt.Println()
					return nil
				case <-ticker.C:
				}
			}
		})
	},
}

// remind command
var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Manage the iftar reminder",
}

var remindSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Arm a reminder before today's iftar",
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		return withApp(cmd, "RemindSet", func(ctx context.Context, a *app.SehriApp) error {
			fired := make(chan sehri.ReminderState, 1)
			a.OnReminderFired(func(s sehri.ReminderState) { fired <- s })

			state, err := a.ArmReminder(ctx)
			if err != nil {
				return fmt.Errorf("arming reminder: %w", err)
			}
			fmt.Printf("Reminder set for %s (%d minutes before iftar)\n", state.ScheduledFor.Format(time.Kitchen), state.LeadMinutes)

			if !wait {
				fmt.Println("Keep 'sehri serve' running to receive it.")
				return nil
			}
			select {
			case <-fired:
				return nil
			case <-ctx.Done():
				return nil
			}
		})
	},
}

var remindCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the armed reminder",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RemindCancel", func(ctx context.Context, a *app.SehriApp) error {
			a.CancelReminder(ctx)
			fmt.Println("Reminder cancelled.")
			return nil
		})
	},
}

var remindStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the armed reminder",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "RemindStatus", func(ctx context.Context, a *app.SehriApp) error {
			state, ok := a.PendingReminder(ctx)
			if !ok {
				fmt.Println("No reminder armed.")
				return nil
			}
			fmt.Printf("Reminder at %s for iftar at %s\n", state.ScheduledFor.Format("2006-01-02 15:04"), state.Target.Format(time.Kitchen))
			fmt.Printf("  %s: %s\n", state.Message.Title, state.Message.Body)
			return nil
		})
	},
}

// calendar command
var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show the schedule of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")

		return withApp(cmd, "Calendar", func(ctx context.Context, a *app.SehriApp) error {
			now := a.Now()
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			if month < 1 || month > 12 {
				return fmt.Errorf("month must be between 1 and 12")
			}

			days, err := a.Calendar(ctx, year, time.Month(month))
			if err != nil {
				return err
			}
			printDays(os.Stdout, days, a.Settings())
			return nil
		})
	},
}

var calendarExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sehri and iftar events as an iCalendar file",
	RunE: func(cmd *cobra.Command, args []string) error {
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")
		output, _ := cmd.Flags().GetString("output")

		return withApp(cmd, "CalendarExport", func(ctx context.Context, a *app.SehriApp) error {
			now := a.Now()
			from, err := parseDate(fromStr, now)
			if err != nil {
				return err
			}
			to, err := parseDate(toStr, from.AddDate(0, 0, 29))
			if err != nil {
				return err
			}
			if _, err := calendar.Days(from, to); err != nil {
				return err
			}

			if output == "-" {
				return a.ExportCalendar(ctx, os.Stdout, from, to)
			}
			return writeFileAtomic(output, func(f *os.File) error {
				return a.ExportCalendar(ctx, f, from, to)
			})
		})
	},
}

// ramadan command
var ramadanCmd = &cobra.Command{
	Use:   "ramadan",
	Short: "Show the fasting calendar of Ramadan",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")

		return withApp(cmd, "Ramadan", func(ctx context.Context, a *app.SehriApp) error {
			if year == 0 {
				year = a.UpcomingRamadanYear()
			}
			days, err := a.Ramadan(ctx, year)
			if err != nil {
				return err
			}
			fmt.Printf("Ramadan %d AH\n\n", year)
			printRamadan(os.Stdout, days, a.Settings())
			return nil
		})
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder daemon and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Serve", true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Serve(ctx); err != nil {
			a.Fail()
			return err
		}
		return nil
	},
}

func parseDate(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(sehri.DateLayout, raw, def.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return t, nil
}

// writeFileAtomic writes to a temp file beside path and renames it into place.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("city", "", "City from the built-in table")
	configInitCmd.Flags().String("timezone", "", "IANA timezone, e.g. Asia/Dhaka")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)

	keysCmd.AddCommand(keysInitCmd)

	// remind subcommands
	remindCmd.AddCommand(remindSetCmd)
	remindSetCmd.Flags().Bool("wait", false, "Stay running until the reminder fires")
	remindCmd.AddCommand(remindCancelCmd)
	remindCmd.AddCommand(remindStatusCmd)

	calendarCmd.Flags().Int("year", 0, "Gregorian year (default: current)")
	calendarCmd.Flags().Int("month", 0, "Month 1-12 (default: current)")
	calendarCmd.AddCommand(calendarExportCmd)
	calendarExportCmd.Flags().String("from", "", "First day, YYYY-MM-DD (default: today)")
	calendarExportCmd.Flags().String("to", "", "Last day, YYYY-MM-DD (default: 30 days from the first)")
	calendarExportCmd.Flags().StringP("output", "o", "sehri.ics", "Output file, or - for stdout")

	ramadanCmd.Flags().Int("year", 0, "Hijri year (default: the current or next Ramadan)")

	countdownCmd.Flags().BoolP("watch", "w", false, "Keep updating every second")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(countdownCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(ramadanCmd)
	rootCmd.AddCommand(serveCmd)
}
