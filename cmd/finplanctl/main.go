package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"finplan/internal/api"
	"finplan/internal/cli"
	"finplan/internal/log"
	"finplan/internal/session"
)

const usage = "Usage: finplanctl [-email <email>] [-password <password>] summary|incomes|expenses"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("finplanctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "Log in as this user when no session can be resumed")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return errors.New("expected exactly one command")
	}
	command := fs.Arg(0)
	if _, ok := commands[command]; !ok {
		fmt.Fprintln(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, stderr).WithComponent(log.ComponentCLI)

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	jar, err := api.NewPersistentJar(ctx, cfg.APIBaseURL, repo, logger)
	if err != nil {
		return err
	}
	client, err := api.NewClient(cfg.APIBaseURL, jar, api.WithTimeout(cfg.APITimeout), api.WithLogger(logger))
	if err != nil {
		return err
	}
	sessions := session.NewManager(client, session.WithLogger(logger))
	defer sessions.Close()

	if !sessions.Bootstrap(ctx) {
		if *email == "" {
			return errors.New("no saved session, pass -email to log in")
		}
		password := *passwordFlag
		if password == "" {
			fmt.Fprint(stdout, "Password: ")
			password, err = readPassword(stdin)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			fmt.Fprintln(stdout)
		}
		if strings.TrimSpace(password) == "" {
			return errors.New("password cannot be empty")
		}
		if _, err := sessions.Login(ctx, api.Credentials{Email: *email, Password: password}); err != nil {
			return fmt.Errorf("log in: %s", api.Message(err))
		}
	}

	return execute(ctx, command, client, sessions, stdout)
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Not a terminal, e.g. a pipe.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
