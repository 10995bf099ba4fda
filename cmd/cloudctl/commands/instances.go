package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

func instancesCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "instances",
		Short: "Manage VM instances",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List instances in a region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, _ := cmd.Flags().GetString(flagRegion)
			return runDispatch(cmd, cloud.ActionListInstances, cloud.Params{Region: region})
		},
	}
	list.Flags().StringP(flagRegion, "r", "", "Region (GCE zone for gcp)")
	mustRequire(list, flagRegion)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a new instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, _ := cmd.Flags().GetString(flagRegion)
			name, _ := cmd.Flags().GetString(flagName)
			machineType, _ := cmd.Flags().GetString(flagMachineType)
			image, _ := cmd.Flags().GetString(flagImage)
			labelPairs, _ := cmd.Flags().GetStringArray(flagLabel)
			labels, err := parseLabels(labelPairs)
			if err != nil {
				return err
			}
			return runDispatch(cmd, cloud.ActionCreateInstance, cloud.Params{
				Region:      region,
				Name:        name,
				MachineType: machineType,
				Image:       image,
				Labels:      labels,
			})
		},
	}
	create.Flags().StringP(flagRegion, "r", "", "Region (GCE zone for gcp)")
	create.Flags().StringP(flagName, "n", "", "Instance name")
	create.Flags().StringP(flagMachineType, "m", "", "Machine type (t2.micro, n1-standard-1)")
	create.Flags().StringP(flagImage, "i", "", "Image (AMI id for aws; image link for gcp, optional)")
	create.Flags().StringArrayP(flagLabel, "l", nil, "Label as key=value (repeatable)")
	mustRequire(create, flagRegion)
	mustRequire(create, flagName)
	mustRequire(create, flagMachineType)

	modify := &cobra.Command{
		Use:   "modify <id>",
		Short: "Start, stop, resize or relabel an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString(flagRegion)
			powerState, _ := cmd.Flags().GetString(flagPowerState)
			machineType, _ := cmd.Flags().GetString(flagMachineType)
			labelPairs, _ := cmd.Flags().GetStringArray(flagLabel)
			labels, err := parseLabels(labelPairs)
			if err != nil {
				return err
			}
			metaPairs, _ := cmd.Flags().GetStringArray(flagMetadata)
			metadata, err := parseLabels(metaPairs)
			if err != nil {
				return err
			}
			return runDispatch(cmd, cloud.ActionModifyInstance, cloud.Params{
				ID:          args[0],
				Region:      region,
				PowerState:  powerState,
				MachineType: machineType,
				Labels:      labels,
				Metadata:    metadata,
			})
		},
	}
	modify.Flags().StringP(flagRegion, "r", "", "Region (GCE zone for gcp)")
	modify.Flags().String(flagPowerState, "", "Desired power state (start|stop)")
	modify.Flags().StringP(flagMachineType, "m", "", "New machine type (stopped instances only)")
	modify.Flags().StringArrayP(flagLabel, "l", nil, "Label as key=value (repeatable)")
	modify.Flags().StringArray(flagMetadata, nil, "Instance metadata as key=value (gcp only, repeatable)")
	mustRequire(modify, flagRegion)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an instance (succeeds if it is already gone)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			region, _ := cmd.Flags().GetString(flagRegion)
			return runDispatch(cmd, cloud.ActionDeleteInstance, cloud.Params{ID: args[0], Region: region})
		},
	}
	del.Flags().StringP(flagRegion, "r", "", "Region (GCE zone for gcp)")
	mustRequire(del, flagRegion)

	root.AddCommand(list, create, modify, del)
	return root
}

func mustRequire(cmd *cobra.Command, flag string) {
	if err := cmd.MarkFlagRequired(flag); err != nil {
		panic(fmt.Errorf("mark %s required on %s: %w", flag, cmd.Name(), err))
	}
}
