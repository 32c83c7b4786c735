package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/store"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the watchlist",
}

var (
	addName    string
	addTicker  string
	addAliases []string
)

var companiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a company to the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		company, err := st.AddCompany(ctx, model.Company{
			Name:    addName,
			Ticker:  addTicker,
			Aliases: addAliases,
		})
		if err != nil {
			return eris.Wrap(err, "add company")
		}

		fmt.Printf("added %s (%s)\n", company.Name, company.ID)
		return nil
	},
}

var listAll bool

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watchlist companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		companies, err := st.ListCompanies(ctx, !listAll)
		if err != nil {
			return eris.Wrap(err, "list companies")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTICKER\tACTIVE")
		for _, c := range companies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", c.ID, c.Name, c.Ticker, c.Active)
		}
		return w.Flush()
	},
}

var companiesRemoveCmd = &cobra.Command{
	Use:   "remove <company-id>",
	Short: "Remove a company and its articles and signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteCompany(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete company")
		}
		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

var companiesActivateCmd = &cobra.Command{
	Use:   "activate <company-id>",
	Short: "Reactivate a company",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], true) },
}

var companiesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <company-id>",
	Short: "Deactivate a company without deleting its history",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(cmd, args[0], false) },
}

func setActive(cmd *cobra.Command, id string, active bool) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetCompanyActive(ctx, id, active); err != nil {
		return eris.Wrap(err, "set company active")
	}
	fmt.Printf("company %s active=%t\n", id, active)
	return nil
}

// watchlistFile is the YAML shape accepted by companies import.
type watchlistFile struct {
	Companies []struct {
		Name    string   `yaml:"name"`
		Ticker  string   `yaml:"ticker"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"companies"`
}

var companiesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import companies from a YAML watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		list, err := loadWatchlist(args[0])
		if err != nil {
			return err
		}

		added, skipped := importCompanies(cmd, st, list)
		fmt.Printf("imported %d companies (%d skipped)\n", added, skipped)
		return nil
	},
}

func loadWatchlist(path string) (*watchlistFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read watchlist file")
	}

	var list watchlistFile
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, eris.Wrap(err, "parse watchlist yaml")
	}
	return &list, nil
}

// importCompanies adds every entry, skipping duplicates and entries without
// a name so one bad row never aborts the batch.
func importCompanies(cmd *cobra.Command, st store.Store, list *watchlistFile) (added, skipped int) {
	for _, entry := range list.Companies {
		if entry.Name == "" {
			zap.L().Warn("import: skipping entry without a name")
			skipped++
			continue
		}
		_, err := st.AddCompany(cmd.Context(), model.Company{
			Name:    entry.Name,
			Ticker:  entry.Ticker,
			Aliases: entry.Aliases,
		})
		if err != nil {
			zap.L().Warn("import: skipping company",
				zap.String("name", entry.Name),
				zap.Error(err),
			)
			skipped++
			continue
		}
		added++
	}
	return added, skipped
}

func init() {
	companiesAddCmd.Flags().StringVar(&addName, "name", "", "company name (required)")
	companiesAddCmd.Flags().StringVar(&addTicker, "ticker", "", "stock ticker")
	companiesAddCmd.Flags().StringSliceVar(&addAliases, "alias", nil, "alternate name to match in headlines (repeatable)")
	_ = companiesAddCmd.MarkFlagRequired("name")

	companiesListCmd.Flags().BoolVar(&listAll, "all", false, "include inactive companies")

	companiesCmd.AddCommand(companiesAddCmd)
	companiesCmd.AddCommand(companiesListCmd)
	companiesCmd.AddCommand(companiesRemoveCmd)
	companiesCmd.AddCommand(companiesActivateCmd)
	companiesCmd.AddCommand(companiesDeactivateCmd)
	companiesCmd.AddCommand(companiesImportCmd)
	rootCmd.AddCommand(companiesCmd)
}
