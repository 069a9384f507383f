package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Column identifies a named keyspace in the store. Keys are raw string
// bytes; values are canonically encoded records.
type Column string

const (
	ColumnStateChanges                       Column = "state_changes"
	ColumnTasks                              Column = "tasks"
	ColumnTaskAssignments                    Column = "task_assignments"
	ColumnExecutors                          Column = "executors"
	ColumnExtractors                         Column = "extractors"
	ColumnContentTable                       Column = "content_table"
	ColumnExtractionPolicies                 Column = "extraction_policies"
	ColumnNamespaces                         Column = "namespaces"
	ColumnStructuredDataSchemas              Column = "structured_data_schemas"
	ColumnIndexTable                         Column = "index_table"
	ColumnExtractionPoliciesAppliedOnContent Column = "extraction_policies_applied_on_content"
)

// Columns lists every keyspace; buckets are created for each at open time.
var Columns = []Column{
	ColumnStateChanges,
	ColumnTasks,
	ColumnTaskAssignments,
	ColumnExecutors,
	ColumnExtractors,
	ColumnContentTable,
	ColumnExtractionPolicies,
	ColumnNamespaces,
	ColumnStructuredDataSchemas,
	ColumnIndexTable,
	ColumnExtractionPoliciesAppliedOnContent,
}

// Config holds configuration for opening a store
type Config struct {
	Path            string `yaml:"path"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
}

// LoadConfig reads a store configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("config missing store path")
	}
	return &cfg, nil
}
