package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/esinstall/pkg/model"
	"github.com/openfroyo/esinstall/pkg/stores"
	"github.com/openfroyo/esinstall/pkg/tasks"
)

func newStateCommand() *cobra.Command {
	var product string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted installation state",
		Long: `State prints every value persisted in the temporary installation directory
by earlier phases. It is read-only and meant for diagnosing a failed install
or rollback.

The directory is taken from --model when given, otherwise from --temp-dir and
--product.`,
		Example: `  esinstall state --temp-dir /tmp
  esinstall state --model install.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := stores.NewTempDirectory(tempDir, product)
			if modelPath != "" {
				m, err := loadModel()
				if err != nil {
					return err
				}
				dir = tasks.TempDirectory(m)
			}

			store := dir.StateStore(log.Logger)
			keys, err := store.Keys()
			if err != nil {
				return err
			}

			values := make(map[string]string, len(keys))
			for _, key := range keys {
				v, err := store.ReadString(key)
				if err != nil {
					v = fmt.Sprintf("<unreadable: %v>", err)
				}
				values[key] = v
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"directory": dir.Path,
					"values":    values,
				})
			}

			fmt.Fprintf(out, "State directory: %s\n", dir.Path)
			if len(keys) == 0 {
				fmt.Fprintln(out, "No persisted state")
				return nil
			}
			fmt.Fprintln(out, stores.NewInstallState(store).String())
			for _, key := range keys {
				if !stores.IsInstallStateKey(key) {
					fmt.Fprintf(out, " - %s = %s (unknown key)\n", key, values[key])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", model.DefaultProductName, "product name the state directory is derived from")

	return cmd
}
