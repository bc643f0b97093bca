package commands

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/localbase/auth"
	"github.com/clinicdesk/localbase/cli/internal/config"
	"github.com/clinicdesk/localbase/cli/internal/ui"
	"github.com/clinicdesk/localbase/cli/internal/version"
	"github.com/clinicdesk/localbase/runtime/client"
	"github.com/clinicdesk/localbase/runtime/types"
)

const demoPassword = "demo1234"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up the clinic workspace",
		Long:  "Create the app-data directory with config.json, materialize the database schema, and optionally seed demo data.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(yes)
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "accept defaults without prompting")

	return cmd
}

type initAnswers struct {
	Dir          string
	Practitioner string
	Seed         bool
}

func runInit(yes bool) error {
	ui.PrintHeader("localbase", "local clinic data, queried like a remote")

	defaultDir, err := config.Dir(flagDir)
	if err != nil {
		return err
	}

	answers := initAnswers{Dir: defaultDir, Seed: true}
	if !yes {
		questions := []*survey.Question{
			{
				Name: "dir",
				Prompt: &survey.Input{
					Message: "Data directory:",
					Default: defaultDir,
				},
				Validate: survey.Required,
			},
			{
				Name: "practitioner",
				Prompt: &survey.Input{
					Message: "Practitioner name:",
				},
			},
			{
				Name: "seed",
				Prompt: &survey.Confirm{
					Message: "Seed demo data?",
					Default: true,
				},
			},
		}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}
	}

	cfg := config.Load(answers.Dir)
	if answers.Practitioner != "" {
		cfg.PractitionerName = answers.Practitioner
	}
	if cfg.TokenSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.TokenSecret = secret
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	ui.PrintSuccess("wrote %s", cfg.ConfigPath())

	spinner := ui.Spinner("Opening database")
	app, err := openApp(cfg)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	defer app.Close()
	spinner.Success(fmt.Sprintf("database ready at %s", cfg.DatabasePath))

	if answers.Seed {
		spinner = ui.Spinner("Seeding demo data")
		if err := seedDemo(context.Background(), app.client); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("demo data seeded")
		ui.PrintWarning("demo sign-in is demo@clinic.local / %s; change it before real use", demoPassword)
	}

	next := fmt.Sprintf(`## Ready (v%s)

- `+"`localbase tables`"+` shows the schema
- `+"`localbase query descriptor.json`"+` runs a query from a file
- `+"`localbase serve`"+` starts the local HTTP surface
- config lives at `+"`%s`"+`
`, version.Version, cfg.ConfigPath())
	if err := ui.PrintMarkdown(next); err != nil {
		ui.PrintInfo("config written to %s", cfg.ConfigPath())
	}

	return nil
}

// seedDemo writes a small, internally consistent clinic through the façade.
func seedDemo(ctx context.Context, c *client.Client) error {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	steps := []struct {
		table   string
		payload any
	}{
		{"users", types.Row{
			"email":         "demo@clinic.local",
			"password_hash": hash,
			"display_name":  "Demo Practitioner",
			"settings":      map[string]any{"locale": "pt"},
		}},
		{"patients", []map[string]any{
			{"id": "demo-p1", "first_name": "Ana", "last_name": "Silva", "birth_date": "1987-04-12", "gender": "F", "phone": "+351 912 000 001", "email": "ana.silva@example.com"},
			{"id": "demo-p2", "first_name": "Rui", "last_name": "Costa", "birth_date": "1979-11-30", "gender": "M", "phone": "+351 912 000 002"},
			{"id": "demo-p3", "first_name": "Marta", "last_name": "Lopes", "birth_date": "1994-02-03", "gender": "F", "archived": true},
		}},
		{"consultations", []map[string]any{
			{"id": "demo-c1", "patient_id": "demo-p1", "date": "2026-08-20", "reason": "Routine check", "notes": "All good.", "attachments": []any{"bloodwork.pdf"}},
			{"id": "demo-c2", "patient_id": "demo-p2", "date": "2026-08-21", "reason": "Back pain", "diagnosis": "Lumbago"},
		}},
		{"invoices", []map[string]any{
			{"id": "demo-i1", "patient_id": "demo-p1", "consultation_id": "demo-c1", "number": "2026-0001", "date": "2026-08-20", "amount": 50.0, "status": "paid", "items": []any{
				map[string]any{"description": "Consultation", "quantity": 1, "unit_price": 40.0},
				map[string]any{"description": "Dressing kit", "quantity": 1, "unit_price": 10.0},
			}},
		}},
		{"appointments", []map[string]any{
			{"patient_id": "demo-p1", "starts_at": "2026-09-01T10:00:00Z", "ends_at": "2026-09-01T10:30:00Z", "reason": "Follow-up"},
		}},
		{"messages", []map[string]any{
			{"patient_id": "demo-p1", "direction": "out", "subject": "Reminder", "body": "Appointment tomorrow at 10:00."},
		}},
	}

	for _, step := range steps {
		res := c.From(step.table).Insert(step.payload).Execute(ctx)
		if res.Error != nil {
			return fmt.Errorf("failed to seed %s: %s", step.table, res.Error.Message)
		}
	}
	return nil
}
