package commands

import (
	"github.com/spf13/cobra"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
)

func bucketsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "buckets",
		Short: "Manage storage buckets",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List buckets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDispatch(cmd, cloud.ActionListBuckets, cloud.Params{})
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, cloud.ActionCreateBucket, cloud.Params{Name: args[0]})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd, cloud.ActionDeleteBucket, cloud.Params{Name: args[0]})
		},
	}

	root.AddCommand(list, create, del)
	return root
}
