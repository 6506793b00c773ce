package visa

// Tipos de visa GA4GH v1.
const (
	TypeAffiliationAndRole       = "AffiliationAndRole"
	TypeAcceptedTermsAndPolicies = "AcceptedTermsAndPolicies"
	TypeResearcherStatus         = "ResearcherStatus"
	TypeControlledAccessGrants   = "ControlledAccessGrants"
	TypeLinkedIdentities         = "LinkedIdentities"

	ClaimVisaV1 = "ga4gh_visa_v1"
)

// Object es el contenido del claim ga4gh_visa_v1.
type Object struct {
	Type     string `yaml:"type" json:"type"`
	Asserted int64  `yaml:"asserted" json:"asserted"`
	Value    string `yaml:"value" json:"value"`
	Source   string `yaml:"source" json:"source"`
	By       string `yaml:"by,omitempty" json:"by,omitempty"`
}

// Claims arma {"ga4gh_visa_v1": {...}} listo para CreateJWTVisa.
func (o Object) Claims() map[string]any {
	obj := map[string]any{
		"type":     o.Type,
		"asserted": o.Asserted,
		"value":    o.Value,
		"source":   o.Source,
	}
	if o.By != "" {
		obj["by"] = o.By
	}
	return map[string]any{ClaimVisaV1: obj}
}
