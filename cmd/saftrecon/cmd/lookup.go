package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// Lookup sources
const (
	sourceAccounts = "accounts"
	sourceEntity   = "entity"
	sourceStatus   = "status"
)

var (
	lookupOrgNumber string
	lookupSource    string
)

// lookupOutput is the JSON document printed by the lookup command
type lookupOutput struct {
	OrgNumber string                  `json:"orgnr"`
	Source    string                  `json:"source"`
	Result    *registry.Result        `json:"result,omitempty"`
	Metrics   *registry.Metrics       `json:"metrics,omitempty"`
	Status    *registry.CompanyStatus `json:"status,omitempty"`
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Query the Brønnøysund registers for one organization",
	Long: `Lookup fetches the filed annual accounts, the entity record or the
derived company status for an organization number and prints it as JSON.
Answers are cached; transient failures are never cached and end the
command with a network error exit code.

Examples:
  saftrecon lookup --orgnr 923609016
  saftrecon lookup --orgnr "923 609 016" --source entity
  saftrecon lookup --orgnr 923609016 --source status`,
	PreRunE: validateLookupFlags,
	RunE:    runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupOrgNumber, "orgnr", "", "organization number (required)")
	lookupCmd.Flags().StringVar(&lookupSource, "source", sourceAccounts, "what to fetch: accounts, entity or status")
	lookupCmd.MarkFlagRequired("orgnr")
}

func validateLookupFlags(cmd *cobra.Command, args []string) error {
	normalized, err := registry.NormalizeOrgNumber(lookupOrgNumber)
	if err != nil {
		return err
	}
	lookupOrgNumber = normalized

	switch lookupSource {
	case sourceAccounts, sourceEntity, sourceStatus:
		return nil
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "source", lookupSource, nil).
			WithSuggestion("Valid sources: accounts, entity, status")
	}
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.GetGlobalLogger().WithComponent("cli")

	cache := registry.OpenCache(settings.CacheOptions(), log)
	defer cache.Close()
	client := registry.NewClient(settings.Registry, cache, log)

	output := lookupOutput{OrgNumber: lookupOrgNumber, Source: lookupSource}
	registerName := registry.AccountsSource

	switch lookupSource {
	case sourceStatus:
		status, err := client.CompanyStatus(ctx, lookupOrgNumber)
		if err != nil {
			return err
		}
		output.Status = &status

	case sourceEntity:
		result, err := client.FetchEntity(ctx, lookupOrgNumber)
		if err != nil {
			return err
		}
		output.Result = &result
		registerName = registry.EntitySource

	default:
		result, err := client.FetchAccounts(ctx, lookupOrgNumber)
		if err != nil {
			return err
		}
		output.Result = &result
		if result.OK() {
			metrics, err := registry.MapMetrics(result.Data)
			if err != nil {
				log.WithError(err).Warn("Could not read key figures from the accounts")
			} else {
				output.Metrics = &metrics
			}
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "lookup output", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if output.Result != nil && !output.Result.OK() {
		log.WithField("error_code", output.Result.ErrorCode).Info(output.Result.ErrorMessage)
		return output.Result.TransientError(registerName)
	}
	return nil
}
