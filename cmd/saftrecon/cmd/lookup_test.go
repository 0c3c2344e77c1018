package cmd

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"saft-reconciliation-service/internal/registry"
	"saft-reconciliation-service/pkg/errors"
)

func runLookupCommand(t *testing.T, orgnr, source string) lookupOutput {
	t.Helper()

	lookupOrgNumber = orgnr
	lookupSource = source

	cmd, stdout, _ := newTestCommand()
	if err := validateLookupFlags(cmd, nil); err != nil {
		t.Fatalf("flag validation failed: %v", err)
	}
	if err := runLookup(cmd, nil); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}

	var output lookupOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		t.Fatalf("lookup output is not JSON: %v\n%s", err, stdout.String())
	}
	return output
}

func TestValidateLookupFlags(t *testing.T) {
	tests := []struct {
		name   string
		orgnr  string
		source string
		code   errors.ErrorCode
	}{
		{name: "valid", orgnr: "923 609 016", source: sourceEntity},
		{name: "short organization number", orgnr: "92360901", source: sourceAccounts, code: errors.CodeInvalidOrgNumber},
		{name: "unknown source", orgnr: "923609016", source: "roles", code: errors.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookupOrgNumber = tt.orgnr
			lookupSource = tt.source

			err := validateLookupFlags(nil, nil)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if lookupOrgNumber != "923609016" {
					t.Errorf("expected normalized organization number, got %q", lookupOrgNumber)
				}
				return
			}
			if !errors.IsCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestRunLookup_Accounts(t *testing.T) {
	setupCommandState(t, newFakeRegistry(t, http.StatusOK))

	output := runLookupCommand(t, "923609016", sourceAccounts)

	if output.OrgNumber != "923609016" || output.Source != sourceAccounts {
		t.Errorf("unexpected header: %+v", output)
	}
	if output.Result == nil || !output.Result.OK() {
		t.Fatalf("expected successful result, got %+v", output.Result)
	}
	if output.Metrics == nil {
		t.Fatal("expected key figures for the accounts")
	}
	if !output.Metrics.Revenue.Valid || !output.Metrics.Revenue.Decimal.Equal(decimal.NewFromInt(501)) {
		t.Errorf("expected revenue 501, got %v", output.Metrics.Revenue)
	}
	if !output.Metrics.Liabilities.Decimal.Equal(decimal.NewFromInt(610)) {
		t.Errorf("expected liabilities 610, got %v", output.Metrics.Liabilities)
	}
}

func TestRunLookup_Entity(t *testing.T) {
	setupCommandState(t, newFakeRegistry(t, http.StatusOK))

	output := runLookupCommand(t, "923609016", sourceEntity)

	if output.Result == nil || !output.Result.OK() {
		t.Fatalf("expected successful result, got %+v", output.Result)
	}
	var entity map[string]interface{}
	if err := json.Unmarshal(output.Result.Data, &entity); err != nil {
		t.Fatalf("entity payload is not JSON: %v", err)
	}
	if entity["registrertIMvaregisteret"] != true {
		t.Errorf("unexpected entity payload: %v", entity)
	}
	if output.Metrics != nil {
		t.Error("expected no key figures for an entity lookup")
	}
}

func TestRunLookup_Status(t *testing.T) {
	setupCommandState(t, newFakeRegistry(t, http.StatusOK))

	output := runLookupCommand(t, "923609016", sourceStatus)

	status := output.Status
	if status == nil {
		t.Fatal("expected company status")
	}
	if status.Source != registry.StatusSource {
		t.Errorf("expected source %s, got %s", registry.StatusSource, status.Source)
	}
	if status.Bankrupt == nil || *status.Bankrupt {
		t.Errorf("expected known non-bankrupt status, got %v", status.Bankrupt)
	}
	if status.VATRegistered == nil || !*status.VATRegistered {
		t.Errorf("expected VAT registered, got %v", status.VATRegistered)
	}
}

func TestRunLookup_NotFound(t *testing.T) {
	setupCommandState(t, newFakeRegistry(t, http.StatusOK))

	output := runLookupCommand(t, "999999999", sourceAccounts)

	if output.Result == nil || output.Result.OK() {
		t.Fatalf("expected failed result, got %+v", output.Result)
	}
	if output.Result.ErrorCode != registry.CodeNotFound {
		t.Errorf("expected not found, got %s", output.Result.ErrorCode)
	}
	if output.Metrics != nil {
		t.Error("expected no key figures without accounts")
	}
}

func TestRunLookup_TransientFailureIsNetworkError(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "accounts", source: sourceAccounts},
		{name: "entity", source: sourceEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCommandState(t, newFakeRegistry(t, http.StatusServiceUnavailable))
			lookupOrgNumber = "923609016"
			lookupSource = tt.source

			cmd, stdout, _ := newTestCommand()
			err := runLookup(cmd, nil)

			if !errors.IsCode(err, errors.CodeServiceUnavailable) {
				t.Fatalf("expected service unavailable, got %v", err)
			}
			appErr, _ := errors.AsAppError(err)
			if appErr.Category != errors.CategoryNetwork || appErr.GetExitCode() != 6 {
				t.Errorf("expected network exit code 6, got %s/%d", appErr.Category, appErr.GetExitCode())
			}

			var output lookupOutput
			if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
				t.Fatalf("expected the failed result on stdout: %v\n%s", err, stdout.String())
			}
			if output.Result == nil || output.Result.ErrorCode != string(registry.KindServer) {
				t.Errorf("expected server_error result, got %+v", output.Result)
			}
		})
	}
}

func TestLookupCommandHelp(t *testing.T) {
	if lookupCmd.Use != "lookup" {
		t.Errorf("expected command use 'lookup', got '%s'", lookupCmd.Use)
	}
	for _, name := range []string{"orgnr", "source"} {
		if lookupCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s", name)
		}
	}
}
