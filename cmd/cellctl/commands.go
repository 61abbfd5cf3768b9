package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"cellfinder/internal/adminclient"
	"cellfinder/internal/cells"

	"github.com/spf13/cobra"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as admin and save the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CELLFINDER_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("--username and --password (or CELLFINDER_PASSWORD) are required")
			}

			store, err := a.store()
			if err != nil {
				return err
			}

			client := adminclient.New(a.serverURL(nil), nil)
			cred, err := client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := store.Save(cred); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Logged in to %s as %s\n", cred.Server, cred.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "admin", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newNearestCmd(a *app) *cobra.Command {
	var q cells.NearestQuery

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the cell nearest to a street address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Public endpoint; a saved login only contributes its server URL.
			var cred *adminclient.Credential
			if store, err := a.store(); err == nil {
				cred, _ = store.Load()
			}

			res, err := adminclient.New(a.serverURL(cred), nil).Nearest(cmd.Context(), q)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(res)
			}

			n := res.Nearest
			fmt.Fprintf(a.out, "%s\n%s\n%.2f km away\n%s\n", n.Name, n.Address, n.DistanceKm, n.MapsURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Street, "street", "", "street name (required)")
	cmd.Flags().StringVar(&q.Number, "number", "", "house number (required)")
	cmd.Flags().StringVar(&q.Neighborhood, "neighborhood", "", "neighborhood")
	_ = cmd.MarkFlagRequired("street")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cells, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := a.session()
			if err != nil {
				return err
			}

			list, err := client.ListCells(cmd.Context(), cred)
			if err != nil {
				return explain(err)
			}
			if a.asJSON {
				return a.printJSON(cells.ListCellsResponse{Cells: list})
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tLAT\tLNG")
			for _, c := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Address, formatCoord(c.Lat), formatCoord(c.Lng))
			}
			return tw.Flush()
		},
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// coordFlags registers --lat/--lng and reports them only when set.
type coordFlags struct {
	lat, lng float64
}

func (f *coordFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude (geocoded from the address when omitted)")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "longitude (geocoded from the address when omitted)")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

func (f *coordFlags) values(cmd *cobra.Command) (*float64, *float64) {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
		return nil, nil
	}
	lat, lng := f.lat, f.lng
	return &lat, &lng
}

func newAddCmd(a *app) *cobra.Command {
	var req cells.CreateCellRequest
	var coords coordFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := a.session()
			if err != nil {
				return err
			}

			req.Lat, req.Lng = coords.values(cmd)
			id, err := client.CreateCell(cmd.Context(), cred, req)
			if err != nil {
				return explain(err)
			}

			fmt.Fprintln(a.out, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "cell name (required)")
	cmd.Flags().StringVar(&req.Address, "address", "", "street address (required)")
	coords.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var name, address string
	var coords coordFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a cell",
		Long:  "Change fields of a cell. Unless --lat and --lng are given, coordinates are geocoded again from the address.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req cells.UpdateCellRequest
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("address") {
				req.Address = &address
			}
			req.Lat, req.Lng = coords.values(cmd)
			if req.IsEmpty() {
				return errors.New("nothing to update: pass --name, --address or --lat/--lng")
			}

			client, cred, err := a.session()
			if err != nil {
				return err
			}
			if err := client.UpdateCell(cmd.Context(), cred, args[0], req); err != nil {
				return explain(err)
			}

			fmt.Fprintln(a.out, "Updated", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&address, "address", "", "new address")
	coords.register(cmd)
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete a cell",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := a.session()
			if err != nil {
				return err
			}
			if err := client.DeleteCell(cmd.Context(), cred, args[0]); err != nil {
				return explain(err)
			}

			fmt.Fprintln(a.out, "Removed", args[0])
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of all cells to object storage and print its download link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cred, err := a.session()
			if err != nil {
				return err
			}

			res, err := client.Export(cmd.Context(), cred)
			if err != nil {
				return explain(err)
			}
			if a.asJSON {
				return a.printJSON(res)
			}

			fmt.Fprintf(a.out, "%s\nexpires %s\n", res.DownloadURL, res.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}
