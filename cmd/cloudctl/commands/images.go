package commands

import (
	"github.com/spf13/cobra"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

func imagesCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "images",
		Short: "Browse bootable images",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List images available in a region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			region, _ := cmd.Flags().GetString(flagRegion)
			return runDispatch(cmd, cloud.ActionListImages, cloud.Params{Region: region})
		},
	}
	list.Flags().StringP(flagRegion, "r", "", "Region")
	mustRequire(list, flagRegion)

	root.AddCommand(list)
	return root
}
