package schema

// The structs in this file mirror the YAML document shapes directly
// (gopkg.in/yaml.v3 tags), kept separate from the resolved domain types in
// types.go so the Loader has a clean seam between "what was on disk" and
// "what the rest of the engine consults."

type catalogDoc struct {
	Catalog struct {
		Name              string          `yaml:"name"`
		Description       string          `yaml:"description"`
		Fields            []fieldDoc      `yaml:"fields"`
		RowValidation     *ruleDoc        `yaml:"row_validation"`
		CatalogValidation *ruleDoc        `yaml:"catalog_validation"`
		FileFormat        string          `yaml:"file_format"`
	} `yaml:"catalog"`
}

type fieldDoc struct {
	Name          string     `yaml:"name"`
	Type          string     `yaml:"type"`
	Length        *int       `yaml:"length"`
	Decimals      *int       `yaml:"decimals"`
	Required      bool       `yaml:"required"`
	Unique        bool       `yaml:"unique"`
	AllowedValues []string   `yaml:"allowed_values"`
	Rules         []ruleDoc  `yaml:"rules"`
}

type ruleDoc struct {
	Name                 string `yaml:"name"`
	ValidationExpression string `yaml:"validation_expression"`
	Message              string `yaml:"message"`
	Severity             string `yaml:"severity"`
}

type packageDoc struct {
	Package struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Mandatory   bool   `yaml:"mandatory"`
		FileFormat  struct {
			Type    string `yaml:"type"`
			Pattern string `yaml:"pattern"`
		} `yaml:"file_format"`
		Catalogs []catalogRefDoc `yaml:"catalogs"`
		// Components is the inline-catalog sibling form to catalogs[].path
		// (spec.md §9 Open Question b): either form, or a mix, is legal.
		Components []catalogRefDoc `yaml:"components"`
		CrossRules []ruleDoc       `yaml:"cross_rules"`
		Destination destinationDoc `yaml:"destination"`
	} `yaml:"package"`
}

type catalogRefDoc struct {
	LogicalName       string      `yaml:"logical_name"`
	Path              string      `yaml:"path"`
	Inline            *catalogDoc `yaml:"catalog"`
	FileInsideArchive string      `yaml:"file_inside_archive"`
	FormatOverride    string      `yaml:"format_override"`
}

type destinationDoc struct {
	Enabled    bool `yaml:"enabled"`
	Connection struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"connection"`
	TargetTable     string `yaml:"target_table"`
	InsertionMethod string `yaml:"insertion_method"`
	PreValidation   *struct {
		Endpoint string                 `yaml:"endpoint"`
		Method   string                 `yaml:"method"`
		Payload  map[string]interface{} `yaml:"payload"`
	} `yaml:"pre_validation"`
}

type senderDoc struct {
	Senders struct {
		CorporateOwner string `yaml:"corporate_owner"`
		DataReceivers  []struct {
			Name  string `yaml:"name"`
			Email string `yaml:"email"`
		} `yaml:"data_receivers"`
		SendersList []senderEntryDoc `yaml:"senders_list"`
	} `yaml:"senders"`
}

type senderEntryDoc struct {
	SenderID          string `yaml:"sender_id"`
	Name              string `yaml:"name"`
	ResponsiblePerson struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Phone string `yaml:"phone"`
	} `yaml:"responsible_person"`
	AllowedMethods []string `yaml:"allowed_methods"`
	Configurations map[string]struct {
		APIKey         string   `yaml:"api_key"`
		AllowedSenders []string `yaml:"allowed_senders"`
		SourceHost     string   `yaml:"source_host"`
	} `yaml:"configurations"`
	SubmissionFrequency struct {
		Cadence  string `yaml:"cadence"`
		Deadline string `yaml:"deadline"`
	} `yaml:"submission_frequency"`
	Packages []string `yaml:"packages"`
}
