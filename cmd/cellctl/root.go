package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"cellfinder/internal/adminclient"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:3000"

// app carries what every subcommand needs. The credential is loaded per command
// and passed explicitly to the client.
type app struct {
	out       io.Writer
	server    string
	credsPath string
	asJSON    bool
}

func (a *app) store() (*adminclient.FileStore, error) {
	path := a.credsPath
	if path == "" {
		var err error
		if path, err = adminclient.DefaultCredentialPath(); err != nil {
			return nil, err
		}
	}
	return adminclient.NewFileStore(path), nil
}

// serverURL prefers the flag, then CELLFINDER_URL, then the server of the saved login.
func (a *app) serverURL(cred *adminclient.Credential) string {
	if a.server != "" {
		return a.server
	}
	if env := os.Getenv("CELLFINDER_URL"); env != "" {
		return env
	}
	if cred != nil && cred.Server != "" {
		return cred.Server
	}
	return defaultServer
}

// session loads the saved credential and a client pointed at its server.
func (a *app) session() (*adminclient.Client, *adminclient.Credential, error) {
	store, err := a.store()
	if err != nil {
		return nil, nil, err
	}
	cred, err := store.Load()
	if errors.Is(err, adminclient.ErrNoCredential) {
		return nil, nil, fmt.Errorf("%w: run `cellctl login` first", err)
	}
	if err != nil {
		return nil, nil, err
	}
	return adminclient.New(a.serverURL(cred), nil), cred, nil
}

// explain turns a 401 into a hint to log in again.
func explain(err error) error {
	if adminclient.IsUnauthorized(err) {
		return fmt.Errorf("%w; the token may have expired, run `cellctl login` again", err)
	}
	return err
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "cellctl",
		Short:         "Find the nearest cell and manage cells on a cellfinder server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.server, "server", "", "API base URL (default $CELLFINDER_URL, the logged-in server, or "+defaultServer+")")
	root.PersistentFlags().StringVar(&a.credsPath, "credentials", "", "credential file (default <user config dir>/cellfinder/credentials.json)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newNearestCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newRemoveCmd(a),
		newExportCmd(a),
	)

	return root
}
