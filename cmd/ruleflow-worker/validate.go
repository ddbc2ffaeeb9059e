package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/ruleflow/pkg/cmd"
	"github.com/dukex/ruleflow/pkg/models"
	"github.com/dukex/ruleflow/pkg/registry"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
)

var ErrInvalidRules = errors.New("invalid rules found")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate rule definitions and their action configuration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "rules-path",
				Usage:    "Rule file or directory of rule files",
				Required: true,
				Sources:  cli.EnvVars("RULES_PATH"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing action plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", "ruleflow-worker",
				"action", "validate",
			)

			reg, err := cmd.NewRegistry(ctx, logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(command.String("rules-path"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			ruleSet, err := persistence.Rules(ctx)
			if err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}

			logger.InfoContext(ctx, "Validating rules", "rules", len(ruleSet))

			return validateRules(os.Stdout, reg, ruleSet)
		},
	}
}

func validateRules(out io.Writer, reg *registry.Registry, ruleSet []*models.Rule) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_, _ = fmt.Fprintln(out, "Rule Validation Results:")
	_, _ = fmt.Fprintln(out, "========================")

	valid := 0
	invalid := 0

	for _, rule := range ruleSet {
		_, _ = fmt.Fprintf(out, "\nRule: %s (%s) -> %s\n", rule.Name, rule.ID, rule.Action.Kind)

		err := validateRule(validate, reg, rule)
		if err != nil {
			_, _ = fmt.Fprintf(out, "    ❌ INVALID: %v\n", err)
			invalid++

			continue
		}

		if !rule.Enabled {
			_, _ = fmt.Fprintf(out, "    ✅ VALID (disabled)\n")
		} else {
			_, _ = fmt.Fprintf(out, "    ✅ VALID\n")
		}

		valid++
	}

	_, _ = fmt.Fprintf(out, "\nValidation Summary:\n")
	_, _ = fmt.Fprintf(out, "  Total rules: %d\n", valid+invalid)
	_, _ = fmt.Fprintf(out, "  Valid rules: %d\n", valid)
	_, _ = fmt.Fprintf(out, "  Invalid rules: %d\n", invalid)

	if invalid > 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRules, invalid)
	}

	_, _ = fmt.Fprintln(out, "All rules are valid! ✅")

	return nil
}

func validateRule(validate *validator.Validate, reg *registry.Registry, rule *models.Rule) error {
	err := validate.Struct(rule)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return validationErrors
		}

		return err
	}

	config, err := rule.Action.ConfigJSON()
	if err != nil {
		return err
	}

	return reg.Validate(rule.Action.Kind, config)
}
