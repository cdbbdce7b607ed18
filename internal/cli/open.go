package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/roach88/cellsync/internal/engine"
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/store"
)

// session is an open store with an engine on the configured store id.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

// Close stops the engine and closes the database.
func (s *session) Close() {
	s.engine.Close()
	s.store.Close()
}

// openStore opens the configured database. With mustExist, a missing file
// is a command error instead of a new empty database.
func openStore(opts *RootOptions, mustExist bool) (*store.Store, error) {
	path := opts.Config.DBPath
	if mustExist {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openSession opens the database and replays the configured store into an
// engine.
func openSession(ctx context.Context, opts *RootOptions, mustExist bool) (*session, error) {
	st, err := openStore(opts, mustExist)
	if err != nil {
		return nil, err
	}
	reg, err := event.NewRegistry()
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load event schema", err)
	}
	eng, err := engine.Open(ctx, st, reg, engine.Config{
		StoreID:        opts.Config.StoreID,
		LivenessWindow: opts.Config.LivenessWindow,
		SweepInterval:  opts.Config.SweepInterval,
	}, engine.WithCommitRetries(opts.Config.CommitRetries))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open engine", err)
	}
	return &session{store: st, engine: eng}, nil
}

func (o *RootOptions) formatter(w, errW io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: w, ErrWriter: errW, Verbose: o.Verbose}
}
