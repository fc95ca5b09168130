package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/esinstall/pkg/engine"
	"github.com/openfroyo/esinstall/pkg/tasks"
)

func newValidateCommand() *cobra.Command {
	return newPhaseCommand(engine.PhaseValidate,
		"Validate the installation model and Java runtime",
		`Validate checks the installation model, records the state of the node
service and the product environment variables, and locates a usable Java
runtime. Nothing on the machine is changed.`,
		`  # Validate a model file
  esinstall validate --model install.yaml

  # Validate with an override
  esinstall validate --model install.yaml --set node.http_port=9201`)
}

func newInstallCommand() *cobra.Command {
	return newPhaseCommand(engine.PhaseInstall,
		"Run the install phase, rolling back on failure",
		`Install persists the pre-install state, generates TLS certificates when
requested, starts the node service and provisions the X-Pack license and
built-in user passwords.

When any install task fails the rollback phase runs in the same process and
the install failure is reported.`,
		`  # Install and record the run in a journal
  esinstall install --model install.yaml --journal-db /var/lib/esinstall/journal.db`)
}

func newRollbackCommand() *cobra.Command {
	return newPhaseCommand(engine.PhaseRollback,
		"Undo a failed install using the persisted state",
		`Rollback stops a service the install started, restores the environment
variables recorded before install, and restores or removes the config, data,
logs and plugins directories.`,
		`  esinstall rollback --model install.yaml`)
}

func newCommitCommand() *cobra.Command {
	return newPhaseCommand(engine.PhaseCommit,
		"Publish environment variables and remove persisted state",
		`Commit sets the product environment variables at machine scope and deletes
the temporary installation directory.`,
		`  esinstall commit --model install.yaml`)
}

func newUninstallCommand() *cobra.Command {
	return newPhaseCommand(engine.PhaseUninstall,
		"Remove plugins and installation directories",
		`Uninstall removes every installed plugin with the plugin tool of the
previous installation, then deletes the install, config and logs directories.
The data directory is kept unless uninstall.remove_data is set.`,
		`  # Uninstall and also delete the data directory
  esinstall uninstall --model install.yaml --set uninstall.remove_data=true`)
}

func newPhaseCommand(kind engine.PhaseKind, short, long, example string) *cobra.Command {
	return &cobra.Command{
		Use:     string(kind),
		Short:   short,
		Long:    long,
		Example: example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, kind)
		},
	}
}

// runPhase runs one phase and prints the composite fault message when it
// fails.
func runPhase(cmd *cobra.Command, kind engine.PhaseKind) error {
	ctx := cmd.Context()

	m, err := loadModel()
	if err != nil {
		return report(cmd, err)
	}

	rt, err := newRuntime(ctx, cmd.OutOrStdout(), m)
	if err != nil {
		return report(cmd, err)
	}
	defer rt.close()

	var run *engine.PhaseRun
	if kind == engine.PhaseInstall {
		run, err = rt.orch.InstallWithRollback(ctx, tasks.InstallPhase(rt.deps), tasks.RollbackPhase(rt.deps), rt.tc)
	} else {
		phase, perr := tasks.PhaseFor(kind, rt.deps)
		if perr != nil {
			return report(cmd, perr)
		}
		run, err = rt.orch.Run(ctx, phase, rt.tc)
	}
	if err != nil {
		rt.tel.Metrics.RecordError(err)
		if run != nil {
			rt.log.WithPhase(string(run.Phase), run.ID).Errorf("Phase failed after %s", run.Duration)
		}
		return report(cmd, err)
	}

	rt.log.WithPhase(string(kind), run.ID).Infof("Phase completed in %s", run.Duration)
	return nil
}

func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), engine.FailureMessage(err))
	return err
}
