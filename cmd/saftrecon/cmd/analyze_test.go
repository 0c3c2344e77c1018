package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"saft-reconciliation-service/cmd/saftrecon/config"
	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

const trialBalanceCSV = `konto;kontonavn;ib_debet;ib_kredit;ub_debet;ub_kredit
1200;Maskiner;300;0;0;0
1920;Bank;0;0;1000;0
2000;Aksjekapital;0;100;0;400
2400;Leverandørgjeld;0;200;0;600
3000;Salgsinntekt;0;0;0;500
4000;Varekjøp;0;0;500;0
`

const voucherCSV = `bilagsnr;dokumentnr;dato;leverandør;konto;kontonavn;mva_kode;debet;kredit
1;F-1;2024-01-10;Kontorland;6540;Inventar;1;1000;0
2;F-2;2024-02-10;Kontorland;6540;Inventar;1;2000;0
3;F-3;2024-03-10;Kontorland;6540;Inventar;1;3000;0
4;F-4;2024-04-10;Møbelhuset;6540;Inventar;13;40000;0
5;F-5;2024-05-10;Maskinsalg;1200;Maskiner;1;50000;0
`

const accountsJSON = `{
	"resultatregnskap": {"sumDriftsinntekter": 501, "driftsresultat": 0, "arsresultat": 0},
	"balanse": {"sumEiendeler": 1000, "sumEgenkapital": 400, "sumGjeld": 610}
}`

const entityJSON = `{"organisasjonsnummer": "923609016", "konkurs": false, "underAvvikling": false, "registrertIMvaregisteret": true}`

// setupCommandState resets viper to the command defaults, applies
// overrides and loads the package settings
func setupCommandState(t *testing.T, overrides map[string]interface{}) {
	t.Helper()

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set("encoding", "utf-8")
	viper.Set("output-format", "console")
	viper.Set(config.KeyCacheDurable, false)
	for key, value := range overrides {
		viper.Set(key, value)
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	settings = loaded
	logger.SetGlobalLogger(logger.NewNop())

	t.Cleanup(func() {
		viper.Reset()
		settings = nil
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	return path
}

// newFakeRegistry serves the accounts and entity endpoints; status is
// used for every response
func newFakeRegistry(t *testing.T, status int) map[string]interface{} {
	t.Helper()

	respond := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "orgnr") != "923609016" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(body))
			}
		}
	}

	router := chi.NewRouter()
	router.Get("/regnskapsregisteret/regnskap/{orgnr}", respond(accountsJSON))
	router.Get("/enhetsregisteret/api/enheter/{orgnr}", respond(entityJSON))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return map[string]interface{}{
		config.KeyAccountsURL: server.URL + "/regnskapsregisteret/regnskap/{orgnr}",
		config.KeyEntityURL:   server.URL + "/enhetsregisteret/api/enheter/{orgnr}",
		config.KeyRetries:     0,
		config.KeyBackoffMin:  "1ms",
		config.KeyBackoffMax:  "2ms",
		config.KeyTimeout:     "2s",
	}
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd, stdout, stderr
}

func runAnalyzeCommand(t *testing.T) (map[string]interface{}, string) {
	t.Helper()

	cmd, stdout, stderr := newTestCommand()
	if err := validateAnalyzeFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runAnalyze(cmd, nil); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var report map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, stdout.String())
	}
	return report, stderr.String()
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := writeFile(t, tmpDir, "valid.csv", "konto\n1920\n")

	tests := []struct {
		name        string
		filePath    string
		expectError bool
		code        errors.ErrorCode
	}{
		{name: "valid file", filePath: validFile},
		{name: "empty path", filePath: "", expectError: true, code: errors.CodeMissingField},
		{name: "non-existent file", filePath: filepath.Join(tmpDir, "missing.csv"), expectError: true, code: errors.CodeFileNotFound},
		{name: "directory instead of file", filePath: tmpDir, expectError: true, code: errors.CodeDirectoryError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !errors.IsCode(err, tt.code) {
					t.Errorf("expected code %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateAnalyzeFlags(t *testing.T) {
	tmpDir := t.TempDir()
	tbFile := writeFile(t, tmpDir, "saldobalanse.csv", trialBalanceCSV)

	tests := []struct {
		name          string
		flags         map[string]interface{}
		errorContains string
	}{
		{
			name:  "valid flags",
			flags: map[string]interface{}{"trial-balance": tbFile},
		},
		{
			name:          "missing trial balance",
			flags:         map[string]interface{}{"trial-balance": ""},
			errorContains: "trial-balance",
		},
		{
			name:          "trial balance not found",
			flags:         map[string]interface{}{"trial-balance": filepath.Join(tmpDir, "missing.csv")},
			errorContains: "file not found",
		},
		{
			name:          "voucher file not found",
			flags:         map[string]interface{}{"trial-balance": tbFile, "vouchers": filepath.Join(tmpDir, "bilag.csv")},
			errorContains: "bilag.csv",
		},
		{
			name:          "invalid organization number",
			flags:         map[string]interface{}{"trial-balance": tbFile, "orgnr": "12345"},
			errorContains: "organization number",
		},
		{
			name:          "invalid encoding",
			flags:         map[string]interface{}{"trial-balance": tbFile, "encoding": "utf-16"},
			errorContains: "encoding",
		},
		{
			name:          "invalid output format",
			flags:         map[string]interface{}{"trial-balance": tbFile, "output-format": "xml"},
			errorContains: "output-format",
		},
		{
			name:          "output directory missing",
			flags:         map[string]interface{}{"trial-balance": tbFile, "output-file": filepath.Join(tmpDir, "nope", "report.json")},
			errorContains: "directory error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCommandState(t, tt.flags)

			err := validateAnalyzeFlags(&cobra.Command{}, nil)

			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.errorContains) {
				t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestValidateAnalyzeFlags_NormalizesOrgNumber(t *testing.T) {
	tbFile := writeFile(t, t.TempDir(), "saldobalanse.csv", trialBalanceCSV)
	setupCommandState(t, map[string]interface{}{
		"trial-balance": tbFile,
		"orgnr":         "923 609 016",
	})

	if err := validateAnalyzeFlags(&cobra.Command{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orgNumber != "923609016" {
		t.Errorf("expected normalized organization number, got %q", orgNumber)
	}
}

func TestRunAnalyze_TrialBalanceOnly(t *testing.T) {
	tbFile := writeFile(t, t.TempDir(), "saldobalanse.csv", trialBalanceCSV)
	setupCommandState(t, map[string]interface{}{
		"trial-balance": tbFile,
		"output-format": "json",
	})

	report, _ := runAnalyzeCommand(t)

	if report["balanced"] != true {
		t.Errorf("expected balanced trial balance, got %v", report["balanced"])
	}
	if report["account_count"] != float64(6) {
		t.Errorf("expected 6 accounts, got %v", report["account_count"])
	}
	if report["source"] != tbFile {
		t.Errorf("expected source %s, got %v", tbFile, report["source"])
	}
	if _, ok := report["comparison"]; ok {
		t.Error("expected no registry comparison without an organization number")
	}
	if balance, ok := report["balance"].([]interface{}); !ok || len(balance) == 0 {
		t.Errorf("expected balance analysis rows, got %v", report["balance"])
	}
}

func TestRunAnalyze_WithVouchersAndRegistry(t *testing.T) {
	tmpDir := t.TempDir()
	tbFile := writeFile(t, tmpDir, "saldobalanse.csv", trialBalanceCSV)
	voucherFile := writeFile(t, tmpDir, "bilag.csv", voucherCSV)

	overrides := newFakeRegistry(t, http.StatusOK)
	overrides["trial-balance"] = tbFile
	overrides["vouchers"] = voucherFile
	overrides["orgnr"] = "923609016"
	overrides["output-format"] = "json"
	overrides["progress"] = true
	setupCommandState(t, overrides)

	report, stderr := runAnalyzeCommand(t)

	if !strings.Contains(stderr, "100%") {
		t.Errorf("expected progress output to reach 100%%, got %q", stderr)
	}

	if deviations, ok := report["vat_deviations"].([]interface{}); !ok || len(deviations) != 1 {
		t.Errorf("expected one VAT deviation, got %v", report["vat_deviations"])
	}
	if candidates, ok := report["capitalization_candidates"].([]interface{}); !ok || len(candidates) != 1 {
		t.Errorf("expected one capitalization candidate, got %v", report["capitalization_candidates"])
	}
	purchases, ok := report["supplier_purchases"].([]interface{})
	if !ok || len(purchases) != 2 {
		t.Fatalf("expected purchases for two suppliers, got %v", report["supplier_purchases"])
	}
	if first := purchases[0].(map[string]interface{}); first["supplier_id"] != "Møbelhuset" {
		t.Errorf("expected the largest supplier first, got %v", first)
	}

	comparison, ok := report["comparison"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected registry comparison, got %v", report["comparison"])
	}
	if comparison["available"] != true {
		t.Errorf("expected comparison available, got %v", comparison["message"])
	}
	if rows, ok := comparison["rows"].([]interface{}); !ok || len(rows) != 6 {
		t.Errorf("expected 6 comparison rows, got %v", comparison["rows"])
	}
	status, ok := comparison["status"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected company status, got %v", comparison["status"])
	}
	if status["vat_registered"] != true {
		t.Errorf("expected VAT registered company, got %v", status["vat_registered"])
	}
}

func TestRunAnalyze_RegistryUnavailable(t *testing.T) {
	tbFile := writeFile(t, t.TempDir(), "saldobalanse.csv", trialBalanceCSV)

	overrides := newFakeRegistry(t, http.StatusServiceUnavailable)
	overrides["trial-balance"] = tbFile
	overrides["orgnr"] = "923609016"
	overrides["output-format"] = "json"
	setupCommandState(t, overrides)

	report, _ := runAnalyzeCommand(t)

	comparison, ok := report["comparison"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected registry comparison, got %v", report["comparison"])
	}
	if comparison["available"] != false {
		t.Error("expected comparison to be unavailable")
	}
	if message, _ := comparison["message"].(string); !strings.Contains(message, "comparison unavailable") {
		t.Errorf("expected unavailable message, got %q", message)
	}
}

func TestRunAnalyze_CSVToFile(t *testing.T) {
	tmpDir := t.TempDir()
	tbFile := writeFile(t, tmpDir, "saldobalanse.csv", trialBalanceCSV)
	outFile := filepath.Join(tmpDir, "report.csv")

	setupCommandState(t, map[string]interface{}{
		"trial-balance": tbFile,
		"output-format": "csv",
		"output-file":   outFile,
	})

	cmd, stdout, _ := newTestCommand()
	if err := validateAnalyzeFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runAnalyze(cmd, nil); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
	content, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	if !strings.Contains(string(content), ";") {
		t.Errorf("expected ';' separated CSV report, got %q", content)
	}
}

func TestRunAnalyze_RowErrorsBecomeWarnings(t *testing.T) {
	tb := trialBalanceCSV + "5000;Lønn;0;0;12.5.3;0\n"
	tbFile := writeFile(t, t.TempDir(), "saldobalanse.csv", tb)

	setupCommandState(t, map[string]interface{}{
		"trial-balance": tbFile,
		"output-format": "json",
	})

	report, _ := runAnalyzeCommand(t)

	warnings, ok := report["warnings"].([]interface{})
	if !ok || len(warnings) == 0 {
		t.Fatalf("expected warnings, got %v", report["warnings"])
	}
	found := false
	for _, w := range warnings {
		if s, _ := w.(string); strings.Contains(s, "invalid amount") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an invalid amount warning, got %v", warnings)
	}
}

func TestRunAnalyze_MissingColumn(t *testing.T) {
	tbFile := writeFile(t, t.TempDir(), "saldobalanse.csv", "navn;ub\nBank;1000\n")
	setupCommandState(t, map[string]interface{}{"trial-balance": tbFile})

	cmd, _, _ := newTestCommand()
	if err := validateAnalyzeFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}

	err := runAnalyze(cmd, nil)
	if err == nil {
		t.Fatal("expected error for missing account column")
	}
	if !errors.IsCode(err, errors.CodeMissingColumn) {
		t.Errorf("expected missing column error, got %v", err)
	}
}

func TestAnalyzeCommandHelp(t *testing.T) {
	if analyzeCmd.Use != "analyze" {
		t.Errorf("expected command use 'analyze', got '%s'", analyzeCmd.Use)
	}
	if analyzeCmd.Short == "" {
		t.Error("expected short description")
	}

	for _, name := range []string{
		"trial-balance", "vouchers", "orgnr", "encoding", "delimiter",
		"output-format", "output-file", "progress",
		"min-observations", "capitalization-threshold", "per-voucher", "net-reversals",
	} {
		if analyzeCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s", name)
		}
	}
	if flag := analyzeCmd.Flags().ShorthandLookup("t"); flag == nil || flag.Name != "trial-balance" {
		t.Error("expected -t shorthand for --trial-balance")
	}
}
