// Command surveyctl runs operator tasks against the survey store and can take
// the survey from a terminal against a running server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/vytor/assessment/internal/auth"
	"github.com/vytor/assessment/internal/catalog"
	"github.com/vytor/assessment/internal/config"
	"github.com/vytor/assessment/internal/db"
	"github.com/vytor/assessment/internal/logger"
	"github.com/vytor/assessment/internal/repository/sqlstore"
	"github.com/vytor/assessment/internal/roster"
	"github.com/vytor/assessment/internal/services"
)

const usage = `usage: surveyctl <command> [flags]

commands:
  seed                         reconcile the roster with the store
  stats                        print the participant overview
  export -format json|csv      write every record to stdout
  reset -participant ID | -all wipe one participant or everyone
  take -server URL -id ID      answer the survey in this terminal
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithOutput(os.Stderr),
	)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(logger.NewContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "take":
		err = runTake(ctx, args, os.Stdin, os.Stdout)
	case "seed", "stats", "export", "reset":
		err = runAdmin(ctx, cfg, cmd, args, os.Stdout)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error("%s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

type adminEnv struct {
	db        *db.DB
	roster    *roster.Roster
	directory services.DirectoryService
	admin     services.AdminService
}

func openAdmin(ctx context.Context, cfg config.Config) (*adminEnv, error) {
	if cfg.AdminSecret == "" {
		return nil, fmt.Errorf("ADMIN_SECRET_KEY is required")
	}
	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, dialect, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		conn.Close()
		return nil, err
	}
	people, err := roster.Load(cfg.RosterPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	participants := sqlstore.NewParticipantRepository(conn)
	sessions := sqlstore.NewSessionRepository(conn)
	answers := sqlstore.NewAnswerRepository(conn)
	directory := services.NewDirectoryService(participants, sessions, answers, auth.NewPINHasher(cfg.PINCost))
	admin := services.NewAdminService(cfg.AdminSecret, services.AdminDeps{
		Participants: participants,
		Sessions:     sessions,
		Answers:      answers,
		Activity:     sqlstore.NewActivityRepository(conn),
		Directory:    directory,
		Roster:       people,
		Catalog:      cat,
	}, services.WithOnlineWindow(cfg.OnlineWindow))

	return &adminEnv{db: conn, roster: people, directory: directory, admin: admin}, nil
}

func runAdmin(ctx context.Context, cfg config.Config, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	format := fs.String("format", "json", "export format: json or csv")
	participant := fs.String("participant", "", "participant id to reset")
	all := fs.Bool("all", false, "reset every participant")
	actor := fs.String("actor", "cli", "name recorded in the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := openAdmin(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.db.Close()

	switch cmd {
	case "seed":
		report, err := env.directory.EnsureSeed(ctx, env.roster)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created=%d migrated=%d merged=%d updated=%d\n",
			len(report.Created), len(report.Migrated), len(report.Merged), len(report.Updated))
		return nil

	case "stats":
		stats, err := env.admin.ListStats(ctx, cfg.AdminSecret)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tINDEX\tANSWERS\tTIME\tSTATUS")
		for _, row := range stats {
			status, index, spent := "not started", 0, 0.0
			if s := row.Session; s != nil {
				index, spent = s.CurrentIndex, s.TotalTimeSpent
				switch {
				case s.IsCompleted:
					status = "completed"
				case row.Online:
					status = "online"
				default:
					status = "offline"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0fs\t%s\n",
				row.Participant.ID, row.Participant.Name, index, row.AnswerCount, spent, status)
		}
		return tw.Flush()

	case "export":
		switch *format {
		case "csv":
			return env.admin.ExportCSV(ctx, cfg.AdminSecret, out)
		case "json":
			bundle, err := env.admin.ExportAll(ctx, cfg.AdminSecret)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(bundle)
		}
		return fmt.Errorf("unknown format %q", *format)

	case "reset":
		switch {
		case *all && *participant != "":
			return fmt.Errorf("use either -participant or -all")
		case *all:
			return env.admin.ResetAll(ctx, cfg.AdminSecret, *actor)
		case *participant != "":
			return env.admin.ResetOne(ctx, cfg.AdminSecret, *participant, *actor)
		}
		return fmt.Errorf("reset needs -participant ID or -all")
	}
	return fmt.Errorf("unknown command %q", cmd)
}
