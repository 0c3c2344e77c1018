package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// StatusSource names the register a CompanyStatus came from
const StatusSource = "Brønnøysundregistrene"

// CompanyStatus holds the status flags of an entity. A nil flag is unknown.
type CompanyStatus struct {
	OrgNumber     string `json:"orgnr"`
	Bankrupt      *bool  `json:"bankrupt"`
	Liquidating   *bool  `json:"liquidating"`
	VATRegistered *bool  `json:"vat_registered"`
	Source        string `json:"source,omitempty"`
}

// CompanyStatus reads the entity register for orgnr. Lookup failures give
// an all-unknown status; a not-found entity keeps the source.
func (c *Client) CompanyStatus(ctx context.Context, orgnr string) (CompanyStatus, error) {
	result, err := c.FetchEntity(ctx, orgnr)
	if err != nil {
		return CompanyStatus{}, err
	}
	normalized := digitsOnly(orgnr)
	status := CompanyStatus{OrgNumber: normalized}

	if !result.OK() {
		log := c.logger.WithField("orgnr", normalized)
		switch {
		case result.IsTransient():
			log.Warnf("Company status: %s", result.ErrorMessage)
		case result.ErrorCode == CodeNotFound:
			status.Source = StatusSource
		default:
			log.Errorf("Company status: %s", result.ErrorMessage)
		}
		return status, nil
	}

	fields := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader(result.Data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		c.logger.WithError(err).WithField("orgnr", normalized).Debug("Entity payload is not an object")
		fields = map[string]interface{}{}
	}

	status.Bankrupt = InterpretBool(fields["konkurs"])
	status.VATRegistered = InterpretBool(fields["registrertIMvaregisteret"])
	status.Liquidating = anyTrue(
		InterpretBool(fields["underAvvikling"]),
		InterpretBool(fields["underTvangsavviklingEllerTvangsoppløsning"]),
	)
	status.Source = StatusSource
	return status, nil
}

// anyTrue is true when any known flag is true, false when all known flags
// are false and nil when none is known
func anyTrue(flags ...*bool) *bool {
	var known bool
	result := false
	for _, flag := range flags {
		if flag == nil {
			continue
		}
		known = true
		result = result || *flag
	}
	if !known {
		return nil
	}
	return &result
}

// InterpretBool reads a JSON boolean leniently. Numbers 0 and 1 and the
// strings true/1/ja/j/yes and false/0/nei/n/no are understood; anything
// else is unknown.
func InterpretBool(value interface{}) *bool {
	yes, no := true, false
	switch v := value.(type) {
	case bool:
		return &v
	case json.Number:
		switch v.String() {
		case "1", "1.0":
			return &yes
		case "0", "0.0":
			return &no
		}
	case float64:
		switch v {
		case 1:
			return &yes
		case 0:
			return &no
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "ja", "j", "yes":
			return &yes
		case "false", "0", "nei", "n", "no":
			return &no
		}
	}
	return nil
}
