package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/ui"
)

var (
	searchDept   string
	searchLimit  int
	searchOffset int
)

var searchCmd = &cobra.Command{
	Use:     "search [query]",
	GroupID: "data",
	Short:   "Search cached assets by tag or name",
	Long: `Search the local asset cache. With --dept and no query, lists the
department's assets instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		var assets []*model.Asset
		switch {
		case len(args) == 1:
			assets, err = db.SearchAssets(cmd.Context(), args[0], searchLimit, searchOffset)
		case searchDept != "":
			assets, err = db.AssetsByDepartment(cmd.Context(), searchDept, searchLimit, searchOffset)
		default:
			return fmt.Errorf("provide a query or --dept")
		}
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			fmt.Printf("%s No matching assets\n", ui.RenderWarn("⚠"))
			return nil
		}

		for _, a := range assets {
			fmt.Printf("%s  %s\n", ui.RenderAccent(a.Tag), a.Name)
			fmt.Printf("   %s\n", ui.RenderFaint(fmt.Sprintf(
				"serial %s · dept %s · room %s · %s", a.Serial, a.DeptID, a.RoomTag, a.Status)))
		}
		fmt.Printf("\n%d result(s)\n", len(assets))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchDept, "dept", "", "list assets of one department")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "results to skip")
	rootCmd.AddCommand(searchCmd)
}
