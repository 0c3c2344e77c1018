package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"saft-reconciliation-service/cmd/saftrecon/config"
	"saft-reconciliation-service/internal/parsers"
	"saft-reconciliation-service/internal/reconciler"
	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/internal/reporter"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

// Flags for the analyze command
var (
	trialBalanceFile string
	voucherFile      string
	orgNumber        string
	encoding         string
	delimiter        string
	outputFormat     string
	outputFile       string
	showProgress     bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a trial balance and compare it with the registry",
	Long: `Analyze imports a trial balance export, optionally with its voucher lines,
and reports the balance sheet and income statement figures.

With voucher lines it also reports VAT code deviations per cost account,
fixed asset accessions and purchases that may need capitalization. With an
organization number the figures are compared with the annual accounts in
the Brønnøysund registers; if the registry cannot be reached the analysis
still completes and the comparison is marked unavailable.

Examples:
  # Trial balance only
  saftrecon analyze --trial-balance saldobalanse.csv

  # Vouchers and registry comparison
  saftrecon analyze -t saldobalanse.csv --vouchers bilag.csv --orgnr 923609016

  # Legacy export written as JSON
  saftrecon analyze -t tb.csv --encoding iso-8859-1 --delimiter ';' \
    --output-format json --output-file report.json

  # Stricter capitalization review
  saftrecon analyze -t tb.csv --vouchers bilag.csv --capitalization-threshold 15000`,

	PreRunE: validateAnalyzeFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Input flags
	analyzeCmd.Flags().StringVarP(&trialBalanceFile, "trial-balance", "t", "", "path to the trial balance CSV file (required)")
	analyzeCmd.Flags().StringVar(&voucherFile, "vouchers", "", "path to the voucher line CSV file")
	analyzeCmd.Flags().StringVar(&orgNumber, "orgnr", "", "organization number to compare with the registry")
	analyzeCmd.Flags().StringVar(&encoding, "encoding", parsers.EncodingUTF8, "input encoding: utf-8, iso-8859-1, windows-1252")
	analyzeCmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter (default: detected from the header)")

	// Output flags
	analyzeCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	analyzeCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	analyzeCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")

	// Analysis flags
	analyzeCmd.Flags().Int("min-observations", 2, "minimum postings before an account's VAT code is judged")
	analyzeCmd.Flags().String("capitalization-threshold", "30000", "purchase amount that triggers a capitalization review, must be positive")
	analyzeCmd.Flags().Bool("per-voucher", false, "apply the capitalization threshold per voucher instead of per line")
	analyzeCmd.Flags().Bool("net-reversals", false, "net asset accessions against credit postings on the same voucher")

	analyzeCmd.MarkFlagRequired("trial-balance")

	viper.BindPFlag("trial-balance", analyzeCmd.Flags().Lookup("trial-balance"))
	viper.BindPFlag("vouchers", analyzeCmd.Flags().Lookup("vouchers"))
	viper.BindPFlag("orgnr", analyzeCmd.Flags().Lookup("orgnr"))
	viper.BindPFlag("encoding", analyzeCmd.Flags().Lookup("encoding"))
	viper.BindPFlag("delimiter", analyzeCmd.Flags().Lookup("delimiter"))
	viper.BindPFlag("output-format", analyzeCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", analyzeCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("progress", analyzeCmd.Flags().Lookup("progress"))
	viper.BindPFlag(config.KeyMinimumObservations, analyzeCmd.Flags().Lookup("min-observations"))
	viper.BindPFlag(config.KeyCapitalizationThreshold, analyzeCmd.Flags().Lookup("capitalization-threshold"))
	viper.BindPFlag(config.KeyPerVoucher, analyzeCmd.Flags().Lookup("per-voucher"))
	viper.BindPFlag(config.KeyNetReversals, analyzeCmd.Flags().Lookup("net-reversals"))
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	trialBalanceFile = viper.GetString("trial-balance")
	voucherFile = viper.GetString("vouchers")
	orgNumber = viper.GetString("orgnr")
	encoding = viper.GetString("encoding")
	delimiter = viper.GetString("delimiter")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	showProgress = viper.GetBool("progress")

	if trialBalanceFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "trial-balance", nil, nil).
			WithSuggestion("Pass the trial balance export with --trial-balance")
	}
	if err := validateFileExists(trialBalanceFile, "trial balance file"); err != nil {
		return err
	}
	if voucherFile != "" {
		if err := validateFileExists(voucherFile, "voucher file"); err != nil {
			return err
		}
	}

	if orgNumber != "" {
		normalized, err := registry.NormalizeOrgNumber(orgNumber)
		if err != nil {
			return err
		}
		orgNumber = normalized
	}

	if _, ok := parsers.LookupEncoding(encoding); !ok {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "encoding", encoding, nil).
			WithSuggestion("Valid encodings: utf-8, iso-8859-1, windows-1252")
	}

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, nil).
			WithSuggestion("Valid formats: console, json, csv")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeDirectoryError, dir, err).
					WithSuggestion("Create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeDirectoryError, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.GetGlobalLogger().WithComponent("cli")
	stderr := cmd.ErrOrStderr()

	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Starting analysis...\n")
		fmt.Fprintf(stderr, "Trial balance: %s\n", trialBalanceFile)
		if voucherFile != "" {
			fmt.Fprintf(stderr, "Vouchers: %s\n", voucherFile)
		}
		if orgNumber != "" {
			fmt.Fprintf(stderr, "Organization number: %s\n", orgNumber)
		}
		fmt.Fprintf(stderr, "Output format: %s\n", outputFormat)
	}

	parseConfig, err := config.CreateParseConfig(encoding, delimiter)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(outputFormat)
	if err != nil {
		return err
	}

	loader := parsers.NewDatasetLoader(parseConfig, 2, log)
	dataset, err := loader.Load(ctx, trialBalanceFile, voucherFile)
	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "could not load the input tables")
	}
	rowErrors := dataset.RowErrors()
	if len(rowErrors) > 0 && viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "\n%s\n\n", errors.FormatRowErrors(rowErrors))
	}

	session, err := openSession(orgNumber != "", log)
	if err != nil {
		return err
	}
	defer session.Close()

	request := &reconciler.Request{
		Source:       trialBalanceFile,
		TrialBalance: dataset.TrialBalance,
		OrgNumber:    orgNumber,
	}
	if dataset.Vouchers != nil {
		request.Vouchers = dataset.Vouchers
	}

	var progress logger.ProgressFunc
	if showProgress {
		progress = func(percent int, message string) {
			fmt.Fprintf(stderr, "\r[%3d%%] %-40s", percent, message)
			if percent >= 100 {
				fmt.Fprintln(stderr)
			}
		}
	}

	result, err := session.Analyze(ctx, request, progress)
	if err != nil {
		return err
	}
	for _, rowErr := range rowErrors {
		result.AddWarning("%s", rowErr.Error())
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout(), outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}
	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "\nAnalysis completed.\n")
		fmt.Fprintf(stderr, "Processed %d accounts and %d vouchers.\n", result.AccountCount, result.VoucherCount)
		fmt.Fprintf(stderr, "Found %d VAT deviations, %d disposals, %d capitalization candidates.\n",
			len(result.VATDeviations), len(result.Disposals), len(result.CapitalizationCandidates))
		if result.Comparison != nil && !result.Comparison.Available {
			fmt.Fprintf(stderr, "Registry comparison: %s\n", result.Comparison.Message)
		}
	}

	return nil
}

// openSession opens a session with registry access when withRegistry is
// set, and a registry-less session otherwise
func openSession(withRegistry bool, log logger.Logger) (*reconciler.Session, error) {
	analysis := settings.ReconcilerConfig()
	if !withRegistry {
		return reconciler.NewSession(analysis, nil, log)
	}
	return reconciler.OpenSession(analysis, settings.Registry, settings.CacheOptions(), log)
}

// openOutput returns the report destination: path when set, stdout
// otherwise
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}
	return file, func() { file.Close() }, nil
}
