package report

// Schema is the JSON Schema (Draft 2020-12) for the testsmell analysis
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/testsmell/analysis-report.schema.json",
  "title": "testsmell Analysis Report",
  "description": "Output schema for testsmell analyze --format=json",
  "type": "object",
  "required": ["version", "assembly", "results", "errors", "summary", "metadata"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Schema version (semver)"
    },
    "assembly": {
      "type": "string",
      "description": "Name of the analyzed assembly"
    },
    "results": {
      "type": "array",
      "items": { "$ref": "#/$defs/TestResult" }
    },
    "errors": {
      "type": "array",
      "items": { "$ref": "#/$defs/AnalysisError" }
    },
    "summary": { "$ref": "#/$defs/Summary" },
    "metadata": { "$ref": "#/$defs/Metadata" }
  },
  "$defs": {
    "Rule": {
      "type": "string",
      "enum": ["no_asserts", "multiple_asserts", "conditional_logic", "computed_expected"]
    },
    "Severity": {
      "type": "string",
      "enum": ["error", "warning", "info"]
    },
    "TestResult": {
      "type": "object",
      "required": ["target", "paths", "assertions", "violations"],
      "properties": {
        "target": { "$ref": "#/$defs/TestTarget" },
        "paths": {
          "type": "integer",
          "minimum": 0,
          "description": "Number of entry-to-exit instruction paths"
        },
        "assertions": {
          "type": "integer",
          "minimum": 0,
          "description": "Number of distinct assertion call sites"
        },
        "violations": {
          "type": "array",
          "items": { "$ref": "#/$defs/Violation" }
        },
        "omitted_violations": {
          "type": "integer",
          "minimum": 1,
          "description": "Violations of this test dropped by --max-violations"
        }
      }
    },
    "TestTarget": {
      "type": "object",
      "required": ["assembly", "type", "method", "signature"],
      "properties": {
        "assembly": { "type": "string" },
        "type": {
          "type": "string",
          "description": "Full name of the declaring type"
        },
        "method": { "type": "string" },
        "signature": {
          "type": "string",
          "description": "Full method signature"
        },
        "location": {
          "type": "string",
          "description": "Source position (file:line) of the first sequence point"
        }
      }
    },
    "Violation": {
      "type": "object",
      "required": ["id", "rule", "severity", "location", "message"],
      "properties": {
        "id": {
          "type": "string",
          "pattern": "^ts-[0-9a-f]{8}$",
          "description": "Stable identifier (ts-XXXXXXXX)"
        },
        "rule": { "$ref": "#/$defs/Rule" },
        "severity": { "$ref": "#/$defs/Severity" },
        "location": {
          "type": "string",
          "description": "Source position or instruction label"
        },
        "message": { "type": "string" }
      }
    },
    "AnalysisError": {
      "type": "object",
      "required": ["target", "message"],
      "properties": {
        "target": { "$ref": "#/$defs/TestTarget" },
        "message": { "type": "string" }
      }
    },
    "Summary": {
      "type": "object",
      "required": ["total_tests", "clean_tests", "failed", "total_violations", "by_rule", "by_severity"],
      "properties": {
        "total_tests": { "type": "integer", "minimum": 0 },
        "clean_tests": { "type": "integer", "minimum": 0 },
        "failed": { "type": "integer", "minimum": 0 },
        "total_violations": { "type": "integer", "minimum": 0 },
        "by_rule": {
          "type": "object",
          "propertyNames": { "$ref": "#/$defs/Rule" },
          "additionalProperties": { "type": "integer" }
        },
        "by_severity": {
          "type": "object",
          "propertyNames": { "$ref": "#/$defs/Severity" },
          "additionalProperties": { "type": "integer" }
        },
        "truncated": {
          "type": "boolean",
          "description": "True when violations were capped by --max-violations"
        }
      }
    },
    "Metadata": {
      "type": "object",
      "required": ["run_id", "testsmell_version", "go_version", "duration_ms", "warnings"],
      "properties": {
        "run_id": {
          "type": "string",
          "description": "Unique identifier of the analysis run (UUID)"
        },
        "testsmell_version": { "type": "string" },
        "go_version": { "type": "string" },
        "duration_ms": {
          "type": "integer",
          "description": "Analysis duration in milliseconds"
        },
        "timestamp": {
          "type": "string",
          "description": "Analysis start time (RFC 3339)"
        },
        "warnings": {
          "type": "array",
          "items": { "type": "string" },
          "description": "Analysis warnings, if any"
        }
      }
    }
  }
}`
