package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/pkg/google"
	"github.com/klokku/appointments/pkg/scheduling"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "./config/application.yaml"

// NewCLI returns the command line interface. serve runs the HTTP API; the
// other commands run a single operation against the configured ledger.
func NewCLI() *cli.App {
	return &cli.App{
		Name:  "appointments",
		Usage: "Book, reschedule and cancel HR appointments.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: defaultConfigPath, Usage: "Path to the YAML configuration file.", EnvVars: []string{"APPT_CONFIG"}},
		},
		Commands: []*cli.Command{
			serveCommand(),
			bookCommand(),
			rescheduleCommand(),
			cancelCommand(),
			listCommand(),
			availabilityCommand(),
			googleAuthCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (config.Application, error) {
	return config.Load(c.String("config"))
}

// withService builds the dependencies for a single command and releases them
// afterwards.
func withService(c *cli.Context, fn func(ctx context.Context, service scheduling.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	deps, err := BuildDependencies(c.Context, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Warnf("failed to release resources: %v", err)
		}
	}()
	return fn(c.Context, deps.SchedulingService)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := NewApplication(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run(ctx)
		},
	}
}

func bookCommand() *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "Book an appointment.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "phone", Required: true},
			&cli.StringFlag{Name: "date", Required: true, Usage: "YYYY-MM-DD"},
			&cli.StringFlag{Name: "time", Required: true, Usage: "e.g. 14:00 or 2 PM"},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, service scheduling.Service) error {
				outcome, err := service.Book(ctx, scheduling.BookRequest{
					FullName: c.String("name"),
					Email:    c.String("email"),
					Phone:    c.String("phone"),
					Date:     c.String("date"),
					Time:     c.String("time"),
				})
				if err != nil {
					return err
				}
				printOutcome(c.App.Writer, outcome)
				return nil
			})
		},
	}
}

func rescheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "reschedule",
		Usage: "Move an appointment to another slot.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "date", Required: true},
			&cli.StringFlag{Name: "time", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, service scheduling.Service) error {
				outcome, err := service.Reschedule(ctx, scheduling.RescheduleRequest{
					Email: c.String("email"),
					Date:  c.String("date"),
					Time:  c.String("time"),
				})
				if err != nil {
					return err
				}
				printOutcome(c.App.Writer, outcome)
				return nil
			})
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Cancel an appointment.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, service scheduling.Service) error {
				outcome, err := service.Cancel(ctx, c.String("email"))
				if err != nil {
					return err
				}
				printOutcome(c.App.Writer, outcome)
				return nil
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List active appointments.",
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, service scheduling.Service) error {
				records, err := service.List(ctx)
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Fprintf(c.App.Writer, "%s %s  %s <%s> %s\n", r.Date, r.Time, r.FullName, r.Email, r.Phone)
				}
				return nil
			})
		},
	}
}

func availabilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "availability",
		Usage: "Check whether a slot is free.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Required: true},
			&cli.StringFlag{Name: "time", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, service scheduling.Service) error {
				report, err := service.CheckAvailability(ctx, c.String("date"), c.String("time"))
				if err != nil {
					return err
				}
				if report.Available {
					fmt.Fprintf(c.App.Writer, "%s %s is available\n", report.Date, report.Time)
					return nil
				}
				fmt.Fprintf(c.App.Writer, "%s %s is not available: %s\n", report.Date, report.Time, report.Reason)
				if report.Suggested != "" {
					fmt.Fprintf(c.App.Writer, "Next free slot: %s\n", report.Suggested)
				}
				return nil
			})
		},
	}
}

func googleAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "google-auth",
		Usage: "Authorize access to the Google calendar and store the token.",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			conf := google.OAuthConfig(cfg.Google)
			fmt.Fprintf(c.App.Writer, "Go to the following link in your browser then type the authorization code:\n%s\n", google.AuthCodeURL(conf))
			fmt.Fprint(c.App.Writer, "Enter Authorization Code: ")

			code, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("could not read authorization code: %w", err)
			}
			if err := google.ExchangeAndSave(c.Context, conf, strings.TrimSpace(code), cfg.Google.TokenFile); err != nil {
				return err
			}
			log.Infof("Saved Google token to %s", cfg.Google.TokenFile)
			return nil
		},
	}
}

func printOutcome(w io.Writer, outcome scheduling.Outcome) {
	fmt.Fprintln(w, outcome.Message)
	for _, step := range outcome.Steps {
		if step.Err != nil {
			fmt.Fprintf(w, "  %s: %s (%v)\n", step.System, step.Status, step.Err)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", step.System, step.Status)
	}
}
