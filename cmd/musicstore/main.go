package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"musicstore/internal/ingest"
	"musicstore/internal/logging"
	"musicstore/internal/purchase"
	"musicstore/internal/store"
)

type app struct {
	cfg Config
	log zerolog.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	logging.SetGlobalLogger(logger)

	a := &app{cfg: cfg, log: logger}

	root := &cli.Command{
		Name:  "musicstore",
		Usage: "Track/album purchase ledger and archive ingestion",
		Commands: []*cli.Command{
			a.seedCommand(),
			a.ingestCommand(),
			a.buyCommand(),
			a.balanceCommand(),
			a.historyCommand(),
			a.albumCommand(),
			a.jobCommand(),
			a.likeCommand(),
			a.listenCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

// withStore opens the database for the duration of one command.
func (a *app) withStore(ctx context.Context, fn func(*sql.DB, *store.Store) error) error {
	db, err := openDatabase(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db, store.New(db))
}

func (a *app) seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Populate an empty database with demo accounts and catalog",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				if err := seedDemoData(ctx, db, s); err != nil {
					return err
				}
				a.log.Info().Msg("demo data seeded")
				return nil
			})
		},
	}
}

func (a *app) ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Submit a ZIP archive of tracks and wait for the result",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "archive"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.StringArg("archive")
			if path == "" {
				return errors.New("archive path is required")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				unpacker := ingest.NewUnpacker(s, ingest.Config{
					DefaultPriceCents: a.cfg.DefaultPriceCents,
				})
				runner := ingest.NewRunner(ctx, s, unpacker, a.log, a.cfg.IngestWorkers)

				jobID, err := runner.Submit(ctx, data)
				if err != nil {
					return err
				}
				a.log.Info().Str("job_id", jobID).Msg("archive submitted")

				job, err := a.awaitJob(ctx, runner, jobID)
				if err != nil {
					return err
				}
				if closeErr := runner.Close(); closeErr != nil {
					return closeErr
				}

				fmt.Printf("job %s: %s (%s)\n", job.ID, job.Status, job.Message)
				if job.Status != store.JobSucceeded {
					return fmt.Errorf("ingestion failed: %s", job.Message)
				}
				return nil
			})
		},
	}
}

func (a *app) awaitJob(ctx context.Context, runner *ingest.Runner, jobID string) (store.Job, error) {
	var last store.JobStatus
	for {
		job, err := runner.Poll(ctx, jobID)
		if err != nil {
			return store.Job{}, err
		}
		if job.Status != last {
			a.log.Info().Str("status", string(job.Status)).Str("message", job.Message).Msg("job update")
			last = job.Status
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return store.Job{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (a *app) buyCommand() *cli.Command {
	return &cli.Command{
		Name:  "buy",
		Usage: "Purchase a track or album for an account",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Usage: "Account id", Required: true},
			&cli.IntFlag{Name: "method", Usage: "Payment method id", Required: true},
			&cli.StringFlag{Name: "kind", Usage: "Item kind: track or album", Value: "track"},
			&cli.IntFlag{Name: "item", Usage: "Item id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			kind := store.ItemKind(cmd.String("kind"))
			if kind != store.KindTrack && kind != store.KindAlbum {
				return fmt.Errorf("invalid item kind %q", kind)
			}

			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				svc := purchase.New(s, a.log)
				p, err := svc.Buy(ctx, int64(cmd.Int("account")), kind, int64(cmd.Int("item")), int64(cmd.Int("method")))
				if err != nil {
					return err
				}
				fmt.Printf("purchase %d recorded: %s %d for account %d\n", p.ID, p.ItemKind, p.ItemID, p.AccountID)
				return nil
			})
		},
	}
}

func (a *app) balanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Show an account's balance",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Usage: "Account id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				acc, err := s.AccountByID(ctx, int64(cmd.Int("account")))
				if err != nil {
					return err
				}
				fmt.Printf("account %d balance: %d\n", acc.ID, acc.Balance)
				return nil
			})
		},
	}
}

func (a *app) historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List an account's purchases, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Usage: "Account id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				svc := purchase.New(s, a.log)
				purchases, err := svc.History(ctx, int64(cmd.Int("account")))
				if err != nil {
					return err
				}
				if len(purchases) == 0 {
					fmt.Println("no purchases")
					return nil
				}
				for _, p := range purchases {
					fmt.Printf("%s  %s %d  (method %d)\n", p.CreatedAt.Format(time.RFC3339), p.ItemKind, p.ItemID, p.MethodID)
				}
				return nil
			})
		},
	}
}

func (a *app) albumCommand() *cli.Command {
	return &cli.Command{
		Name:  "album",
		Usage: "Show an album and its tracks in order",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "id", Usage: "Album id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				item, err := s.ItemByID(ctx, store.KindAlbum, int64(cmd.Int("id")))
				if err != nil {
					return err
				}
				tracks, err := s.TracksByAlbum(ctx, item.ID)
				if err != nil {
					return err
				}

				fmt.Printf("album %d: %s - %s (%d cents)\n", item.ID, item.Author, item.Title, item.PriceCents)
				for i, track := range tracks {
					fmt.Printf("  %2d. %s (%d cents)\n", i+1, track.Title, track.PriceCents)
				}
				return nil
			})
		},
	}
}

func (a *app) jobCommand() *cli.Command {
	return &cli.Command{
		Name:  "job",
		Usage: "Show the status of an ingestion job",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.StringArg("id")
			if id == "" {
				return errors.New("job id is required")
			}

			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				job, err := s.JobByID(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("job %s: %s (%s), albums added %d, tracks added %d\n",
					job.ID, job.Status, job.Message, job.AlbumsAdded, job.TracksAdded)
				return nil
			})
		},
	}
}

func (a *app) likeCommand() *cli.Command {
	return &cli.Command{
		Name:  "like",
		Usage: "Like a track for an account",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Usage: "Account id", Required: true},
			&cli.IntFlag{Name: "track", Usage: "Track id", Required: true},
			&cli.BoolFlag{Name: "remove", Usage: "Remove the like instead"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				if cmd.Bool("remove") {
					return s.RemoveLike(ctx, int64(cmd.Int("account")), int64(cmd.Int("track")))
				}
				return s.SetLike(ctx, int64(cmd.Int("account")), int64(cmd.Int("track")))
			})
		},
	}
}

func (a *app) listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Record a listen event for a track",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "account", Usage: "Account id", Required: true},
			&cli.IntFlag{Name: "track", Usage: "Track id", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.withStore(ctx, func(db *sql.DB, s *store.Store) error {
				if err := s.RecordListen(ctx, int64(cmd.Int("account")), int64(cmd.Int("track"))); err != nil {
					return err
				}
				count, err := s.ListenCount(ctx, int64(cmd.Int("track")))
				if err != nil {
					return err
				}
				fmt.Printf("track %d has %d listens\n", int64(cmd.Int("track")), count)
				return nil
			})
		},
	}
}
