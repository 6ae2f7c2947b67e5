package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dataconta/cmd/dataconta/config"
)

var checkConnectionCmd = &cobra.Command{
	Use:   "check-connection",
	Short: "Verify the Siigo credentials",
	Long: `Authenticate against the Siigo API with the configured credentials and
show the user they belong to.`,
	RunE: runCheckConnection,
}

func init() {
	rootCmd.AddCommand(checkConnectionCmd)
}

func runCheckConnection(cmd *cobra.Command, _ []string) error {
	client, err := newSiigoClient()
	if err != nil {
		return err
	}

	user, err := client.TestConnection(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Conexión exitosa con Siigo API (%s)\n", config.Siigo(settings).BaseURL)
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		fmt.Fprintf(out, "Usuario: %s\n", name)
	}
	if user.Username != "" {
		fmt.Fprintf(out, "Cuenta:  %s\n", user.Username)
	}
	if user.Email != "" {
		fmt.Fprintf(out, "Email:   %s\n", user.Email)
	}
	return nil
}
