package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"findash/internal/auth"
	"findash/internal/log"
	"findash/internal/storage"
)

type uploadsCmd struct {
	db    string
	limit int
}

func (*uploadsCmd) Name() string     { return "uploads" }
func (*uploadsCmd) Synopsis() string { return "list recent uploads from the SQLite journal" }
func (*uploadsCmd) Usage() string {
	return `findash-cli uploads [-db <path>] [-n <count>]

  Lists the most recent upload attempts, newest first.
`
}

func (c *uploadsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.db, "db", envOr("SQLITE_DB_PATH", "./data/findash.db"), "SQLite journal path.")
	f.IntVar(&c.limit, "n", 20, "Number of uploads to show.")
}

func (c *uploadsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, err := storage.NewSQLiteRepository(c.db, log.Discard())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer repo.Close()

	recs, err := repo.Recent(ctx, c.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSOURCE\tFILE\tOUTCOME\tREASON\tROWS")
	for _, r := range recs {
		rows := r.Counts.NetWorth + r.Counts.Income + r.Counts.Expenses + r.Counts.Budget
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Source, r.Filename, r.Outcome, r.Reason, rows)
	}
	_ = tw.Flush()
	return subcommands.ExitSuccess
}

type hashPasswordCmd struct {
	user string
}

func (*hashPasswordCmd) Name() string     { return "hash-password" }
func (*hashPasswordCmd) Synopsis() string { return "print an AUTH_USERS entry for a password read from stdin" }
func (*hashPasswordCmd) Usage() string {
	return `findash-cli hash-password -u <user>

  Reads a password from the first line of stdin and prints user:bcrypt-hash.
`
}

func (c *hashPasswordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "User name.")
}

func (c *hashPasswordCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || strings.ContainsAny(c.user, ":,") {
		fmt.Fprintln(os.Stderr, "Error: -u is required and may not contain ':' or ','.")
		return subcommands.ExitUsageError
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "Error: no password on stdin.")
		return subcommands.ExitFailure
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s:%s\n", c.user, hash)
	return subcommands.ExitSuccess
}
