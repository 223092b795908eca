package propublica

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NotAvailable marks a field with no data.
const NotAvailable = "N/A"

// Output column names, in order.
const (
	FieldEmployees    = "Number of Employees"
	FieldWebsite      = "Website"
	FieldMission      = "Mission Statement"
	FieldFiling       = "IRS 990 Filing"
	FieldKeyEmployees = "Key Employees"
)

// Fields lists the enrichment columns in output order.
var Fields = []string{FieldEmployees, FieldWebsite, FieldMission, FieldFiling, FieldKeyEmployees}

// Organization is the enrichment for one EIN. Every field is populated;
// missing data reads NotAvailable.
type Organization struct {
	EIN           string `json:"ein"`
	EmployeeCount string `json:"employee_count"`
	Website       string `json:"website"`
	Mission       string `json:"mission"`
	FilingURL     string `json:"filing_url"`
	KeyEmployees  string `json:"key_employees"`
}

// Values returns the fields in the order of Fields.
func (o *Organization) Values() []string {
	return []string{o.EmployeeCount, o.Website, o.Mission, o.FilingURL, o.KeyEmployees}
}

type response struct {
	Organization rawOrganization `json:"organization"`
}

type rawOrganization struct {
	EmployeeCount any          `json:"employee_count"`
	Website       any          `json:"website"`
	Mission       any          `json:"mission"`
	Officers      []rawOfficer `json:"officers"`
}

type rawOfficer struct {
	Name         any `json:"name"`
	Title        any `json:"title"`
	Compensation any `json:"compensation"`
}

func (r rawOrganization) toOrganization(ein string) *Organization {
	return &Organization{
		EIN:           ein,
		EmployeeCount: text(r.EmployeeCount),
		Website:       text(r.Website),
		Mission:       text(r.Mission),
		KeyEmployees:  formatOfficers(r.Officers),
	}
}

func formatOfficers(officers []rawOfficer) string {
	if len(officers) == 0 {
		return NotAvailable
	}
	parts := make([]string, len(officers))
	for i, o := range officers {
		parts[i] = text(o.Name) + " (" + text(o.Title) + ") - $" + text(o.Compensation)
	}
	return strings.Join(parts, "; ")
}

// text renders a decoded JSON scalar. Null, absent and blank values are
// NotAvailable; numbers keep their literal form.
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return NotAvailable
	case string:
		if strings.TrimSpace(v) == "" {
			return NotAvailable
		}
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return NotAvailable
		}
		return string(b)
	}
}
