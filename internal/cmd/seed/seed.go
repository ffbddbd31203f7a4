// Package seed loads a roster file into the configured attendance store.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	entrypoint "github.com/louisbranch/rollcall/internal/platform/cmd"
	server "github.com/louisbranch/rollcall/internal/services/attendance/app"
	"github.com/louisbranch/rollcall/internal/services/attendance/recurrence"
	"github.com/louisbranch/rollcall/internal/services/attendance/repository"
	"github.com/louisbranch/rollcall/internal/services/attendance/roster"
	"github.com/louisbranch/rollcall/internal/services/attendance/sessions"
	"github.com/louisbranch/rollcall/internal/services/attendance/storage"
	"gopkg.in/yaml.v3"
)

// Config holds seed command configuration.
type Config struct {
	File    string `env:"ROLLCALL_SEED_FILE" envDefault:"seed.yaml"`
	Verbose bool
}

// File is the roster file layout.
type File struct {
	Attendees []AttendeeEntry `yaml:"attendees"`
	Sessions  []SessionEntry  `yaml:"sessions"`
}

// AttendeeEntry is one attendee to create.
type AttendeeEntry struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// SessionEntry is one session to create. Recurring is optional.
type SessionEntry struct {
	Title     string          `yaml:"title"`
	Date      string          `yaml:"date"`
	Time      string          `yaml:"time"`
	Recurring *RecurringEntry `yaml:"recurring"`
}

// RecurringEntry describes a weekly (or custom interval) series.
type RecurringEntry struct {
	Weeks    int `yaml:"weeks"`
	Interval int `yaml:"interval"`
}

// Summary counts what a seed run did.
type Summary struct {
	AttendeesCreated int
	AttendeesSkipped int
	SessionsCreated  int
	SessionsSkipped  int
	Instances        int
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.File, "file", cfg.File, "roster file to load")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("roster file is required")
	}
	return cfg, nil
}

// LoadFile reads and decodes a roster file.
func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read roster file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return File{}, fmt.Errorf("decode roster file %s: %w", path, err)
	}
	return file, nil
}

// Run loads cfg.File into the store selected by the environment.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	file, err := LoadFile(cfg.File)
	if err != nil {
		return err
	}
	store, closeStore, err := server.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeStore()
	}()

	summary, err := Apply(ctx, store, file, cfg.Verbose, out)
	if err != nil {
		return err
	}
	if out != nil {
		fmt.Fprintf(out, "attendees: %d created, %d skipped\n", summary.AttendeesCreated, summary.AttendeesSkipped)
		fmt.Fprintf(out, "sessions: %d created (%d instances), %d skipped\n", summary.SessionsCreated, summary.Instances, summary.SessionsSkipped)
	}
	return nil
}

// Apply writes file into store. Attendees whose email is already on the
// roster and sessions with the same title and date are skipped, so a file
// can be applied more than once.
func Apply(ctx context.Context, store storage.RowStore, file File, verbose bool, out io.Writer) (Summary, error) {
	if out == nil {
		out = io.Discard
	}
	repo := repository.New(store, nil, nil)
	if err := repo.EnsureSchema(ctx); err != nil {
		return Summary{}, err
	}
	rosterSvc := roster.NewService(repo, nil)
	scheduleSvc := sessions.NewService(repo, recurrence.NewExpander(repo, nil), sessions.Options{})

	var summary Summary
	existing, err := repo.ListAttendees(ctx)
	if err != nil {
		return Summary{}, err
	}
	emails := make(map[string]struct{}, len(existing))
	for _, attendee := range existing {
		emails[strings.ToLower(strings.TrimSpace(attendee.Email))] = struct{}{}
	}
	for i, entry := range file.Attendees {
		key := strings.ToLower(strings.TrimSpace(entry.Email))
		if _, ok := emails[key]; ok {
			summary.AttendeesSkipped++
			if verbose {
				fmt.Fprintf(out, "skip attendee email=%s\n", entry.Email)
			}
			continue
		}
		attendee, err := rosterSvc.CreateAttendee(ctx, roster.CreateInput{Name: entry.Name, Email: entry.Email})
		if err != nil {
			return summary, fmt.Errorf("attendee %d: %w", i, err)
		}
		emails[key] = struct{}{}
		summary.AttendeesCreated++
		if verbose {
			fmt.Fprintf(out, "created attendee id=%s qr_code=%s\n", attendee.ID, attendee.QRCode)
		}
	}

	scheduled, err := scheduleSvc.ListSessions(ctx)
	if err != nil {
		return summary, err
	}
	seen := make(map[string]struct{}, len(scheduled))
	for _, session := range scheduled {
		seen[sessionKey(session.Title, session.Date)] = struct{}{}
	}
	for i, entry := range file.Sessions {
		key := sessionKey(entry.Title, entry.Date)
		if _, ok := seen[key]; ok {
			summary.SessionsSkipped++
			if verbose {
				fmt.Fprintf(out, "skip session title=%q date=%s\n", entry.Title, entry.Date)
			}
			continue
		}
		in := sessions.CreateInput{Title: entry.Title, Date: entry.Date, Time: entry.Time}
		if entry.Recurring != nil {
			in.IsRecurring = true
			in.RecurringWeeks = entry.Recurring.Weeks
			in.RecurringInterval = entry.Recurring.Interval
		}
		result, err := scheduleSvc.CreateSession(ctx, in)
		if err != nil {
			return summary, fmt.Errorf("session %d: %w", i, err)
		}
		if result.ExpansionErr != nil {
			return summary, fmt.Errorf("session %d: %w", i, result.ExpansionErr)
		}
		seen[key] = struct{}{}
		summary.SessionsCreated++
		summary.Instances += len(result.Instances)
		if verbose {
			fmt.Fprintf(out, "created session id=%s kind=%s instances=%d\n", result.Session.ID, result.Session.Kind(), len(result.Instances))
		}
	}
	return summary, nil
}

func sessionKey(title, date string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.TrimSpace(date)
}
