package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Provider data tools
	ProviderImportDescription = `Import provider records from a compliance export so they can be used to fill forms.

**When to use:** Before any mapping or filling, or whenever the provider spreadsheet has been updated.

**Why it's useful:** Accepts the export as it comes out of the credentialing system: a wide CSV where every column is a provider and every row an attribute, a tall provider,field,value CSV, an XLSX workbook, or a previously saved JSON dataset. The imported data replaces what was stored before.

**Examples:**
• Load the monthly export: "Import /data/providers-2024-06.csv"
• Load a workbook: "Import providers.xlsx from the forms directory"

**Common workflows:**
1. Setup: provider_import → provider_list → form_analyze
2. Refresh: provider_import with the new export → form_fill again

**Best practices:** Columns whose provider name contains "term" and header cells marked TERM> are skipped as terminated providers.`

	ProviderListDescription = `List the imported providers, optionally narrowed by name or licensed state.

**When to use:** To find the exact provider name to pass to form_map or form_fill, or to see who holds a license in a given state.

**Why it's useful:** Name search is fuzzy ("jdoe" finds "Dr. Jane Doe"), and the state filter looks at license columns such as "TX" or "TX License".

**Examples:**
• "List providers matching 'doe'"
• "Which providers are licensed in CA?"

**Best practices:** Leave both filters empty for the full list with per-state counts.`

	ProviderClearDescription = `Delete the imported provider data.

**When to use:** When the stored export is outdated or was imported by mistake, or before handing the machine over.

**Why it's useful:** Removes the stored dataset so no later fill can pick up stale provider data. Mapping and filling fail until provider_import is run again.

**Examples:**
• "Clear the stored providers"

**Best practices:** Importing a new export already replaces the old one; clear only when no data should remain.`

	// Form tools
	FormAnalyzeDescription = `Inspect a PDF form and report its fillable fields.

**When to use:** On every new form before mapping or filling.

**Why it's useful:** Lists each field with its type (text, checkbox, dropdown, radio, unknown) and current value, and detects forms that cannot be filled: XFA forms (common in government documents), PDFs without form fields, and files that fail to load.

**Error codes:**
• XFA_FORM_DETECTED: the form uses Adobe XFA; convert it to a standard AcroForm first (guidance is included in the response)
• NO_FIELDS_DETECTED: the PDF has no interactive fields
• PDF_LOAD_ERROR: the file is corrupt or encrypted

**Best practices:** Hybrid XFA/AcroForm documents are reported with is_xfa=true but remain fillable through their AcroForm fields.`

	FormMapDescription = `Preview how a provider's data lines up with a form's fields.

**When to use:** Before filling, to review automatic matches and decide on manual overrides.

**Why it's useful:** Each PDF field gets the best provider column with a confidence score (High ≥ 80%, Medium ≥ 50%, Low below). Fields asking for organization or facility data are never matched automatically, and email/phone fields are never crossed.

**Examples:**
• "Map credentialing.pdf for Dr. Jane Doe"

**Common workflows:**
1. form_map → review low-confidence rows → form_fill with mappings overrides

**Best practices:** Low-confidence rows still name their best candidate column, pass it in mappings if it is right.`

	FormFillDescription = `Fill a PDF form with one provider's data and save the result.

**When to use:** After reviewing the mapping, to produce the filled document.

**Why it's useful:** Writes text, checkbox and dropdown fields, never aborts on a single bad field, and reports every field as filled or skipped with a reason. The output is saved next to the source as <provider name>_<original file name>.

**Parameters:** mappings is a JSON object of PDF field name → provider column. An entry overrides the automatic match; an empty string leaves the field blank.

**Examples:**
• "Fill credentialing.pdf for Dr. Jane Doe"
• "Fill credentialing.pdf for Dr. Jane Doe with mappings {\"DOB\": \"Date of Birth\"}"

**Best practices:** Check skipped reasons; "low confidence match" fields usually only need an override.`

	FormFillBatchDescription = `Fill one PDF form for many providers and bundle the results in a ZIP archive.

**When to use:** When the same form is needed for a whole group, e.g. every provider licensed in one state.

**Why it's useful:** Runs the fills in parallel, names each file after its provider, and reports per-provider results without stopping on individual failures.

**Examples:**
• "Fill enrollment.pdf for all providers"
• "Fill enrollment.pdf for Dr. Jane Doe and Dr. John Roe"

**Best practices:** Automatic matching only; use form_fill for providers that need manual overrides.`

	FillerServerInfoDescription = `Describe the server, its configuration and the forms it can see.

**When to use:** At the start of a session to discover forms in the configured directory and check whether provider data has been imported.

**Why it's useful:** Returns the tool list, usage guidance, the PDF forms found, the number of stored providers and when they were last imported.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"provider_import":    ProviderImportDescription,
	"provider_list":      ProviderListDescription,
	"provider_clear":     ProviderClearDescription,
	"form_analyze":       FormAnalyzeDescription,
	"form_map":           FormMapDescription,
	"form_fill":          FormFillDescription,
	"form_fill_batch":    FormFillBatchDescription,
	"filler_server_info": FillerServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
