package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/cli/internal/ui"
	"github.com/clinicdesk/localbase/store"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables and columns in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables()
		},
	}
}

func runTables() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(store.Options{Path: cfg.DatabasePath})
	if err != nil {
		return err
	}
	defer s.Close()

	infos, err := s.Introspect()
	if err != nil {
		return err
	}

	for _, info := range infos {
		fmt.Println(ui.TitleStyle.Render(info.Name))

		rows := make([][]string, 0, len(info.Columns))
		for _, col := range info.Columns {
			key := ""
			if col.PrimaryKey {
				key = "pk"
			}
			notNull := ""
			if col.NotNull {
				notNull = "not null"
			}
			rows = append(rows, []string{col.Name, col.Type, notNull, col.Default, key})
		}
		ui.PrintTable([]string{"column", "type", "null", "default", "key"}, rows)
		fmt.Println()
	}

	ui.PrintSuccess("%d tables in %s", len(infos), cfg.DatabasePath)
	return nil
}
