package extracthtml

import "crmextract/internal/records"

// TypeSegment maps a URL path segment to the object type it identifies.
type TypeSegment struct {
	Segment    string             `json:"segment" yaml:"segment"` // matched against the lower-cased URL
	ObjectType records.ObjectType `json:"object_type" yaml:"object_type"`
}

// Selectors holds every selector list and marker the engine relies on.
//
// The target UI is external and versioned, so nothing here is hard-wired into
// the extraction code: layout drift is patched by editing a selector file
// (see LoadSelectorFile) rather than the engine. Lists typed as Chain are
// ranked (first selector that matches wins); plain []string lists are used as
// a union in document order.
type Selectors struct {
	// Object-type detection.
	TypeSegments     []TypeSegment `json:"type_segments" yaml:"type_segments"`
	TaskBodyMarkers  []string      `json:"task_body_markers" yaml:"task_body_markers"`
	TaskHeaders      Chain         `json:"task_headers" yaml:"task_headers"`
	TaskHeaderMarker string        `json:"task_header_marker" yaml:"task_header_marker"`
	// Elements whose text is not rendered and so never counts as a marker.
	HiddenText []string `json:"hidden_text" yaml:"hidden_text"`

	// List view.
	Rows           []string `json:"rows" yaml:"rows"`
	HeaderCells    string   `json:"header_cells" yaml:"header_cells"`
	HeaderRowClass string   `json:"header_row_class" yaml:"header_row_class"`
	IdentityLinks  Chain    `json:"identity_links" yaml:"identity_links"`
	RecordIDAttr   string   `json:"record_id_attr" yaml:"record_id_attr"`
	Cells          []string `json:"cells" yaml:"cells"`
	LabelAttrs     []string `json:"label_attrs" yaml:"label_attrs"`
	IgnoredLabels  []string `json:"ignored_labels" yaml:"ignored_labels"`
	RowInteractive []string `json:"row_interactive" yaml:"row_interactive"`

	// Detail view.
	DetailNames       Chain    `json:"detail_names" yaml:"detail_names"`
	DetailFields      []string `json:"detail_fields" yaml:"detail_fields"`
	DetailLabels      Chain    `json:"detail_labels" yaml:"detail_labels"`
	DetailValues      Chain    `json:"detail_values" yaml:"detail_values"`
	DetailInteractive []string `json:"detail_interactive" yaml:"detail_interactive"`

	// Names that mean "no real name was rendered".
	NamePlaceholders []string `json:"name_placeholders" yaml:"name_placeholders"`
}

// PlaceholderName is the detail-view name used when no header matched.
const PlaceholderName = "Unknown"

// DefaultSelectors returns the selector set for the CRM's Lightning markup.
func DefaultSelectors() Selectors {
	return Selectors{
		TypeSegments: []TypeSegment{
			{Segment: "/lead/", ObjectType: records.Leads},
			{Segment: "/contact/", ObjectType: records.Contacts},
			{Segment: "/account/", ObjectType: records.Accounts},
			{Segment: "/opportunity/", ObjectType: records.Opportunities},
			{Segment: "/task/", ObjectType: records.Tasks},
		},
		TaskBodyMarkers:  []string{"ObjectTask", "Tasks ("},
		TaskHeaders:      Chain{".slds-page-header__title", ".entityNameTitle", "h1", ".search-results-header"},
		TaskHeaderMarker: "Task",
		HiddenText:       []string{"script", "style", "noscript", "template"},

		Rows:           []string{"tr.slds-hint-parent", `[role="row"]`, ".slds-table tr", ".search-result-item"},
		HeaderCells:    `th[scope="col"]`,
		HeaderRowClass: "slds-text-title_caps",
		IdentityLinks: Chain{
			`[data-label="Subject"] a`,
			`[data-label="Name"] a`,
			"a[data-recordid]",
			`a[href*="/lightning/r/"]`,
			"a.slds-truncate",
			"th a",
			".slds-file__title a",
		},
		RecordIDAttr:   "data-recordid",
		Cells:          []string{"td", "th", ".slds-list_horizontal > div"},
		LabelAttrs:     []string{"data-label", "title"},
		IgnoredLabels:  []string{"Name", "Action", "Select"},
		RowInteractive: []string{"button", ".slds-button", ".slds-assistive-text", ".slds-checkbox"},

		DetailNames: Chain{
			"lightning-formatted-name",
			".slds-page-header__title",
			`[data-field="Name"]`,
			"h1 slot",
			".entityNameTitle",
		},
		DetailFields:      []string{"lightning-output-field", ".slds-form-element", ".slds-page-header__detail-block"},
		DetailLabels:      Chain{".test-id__field-label", ".slds-form-element__label", ".slds-text-title", ".label"},
		DetailValues:      Chain{".test-id__field-value", ".slds-form-element__control", ".slds-text-body_regular", ".value"},
		DetailInteractive: []string{"button", ".slds-button", ".slds-assistive-text"},

		NamePlaceholders: []string{PlaceholderName, "Select item"},
	}
}
