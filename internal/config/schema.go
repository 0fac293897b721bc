// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the pipeline configuration
// document: YAML parsing, environment-variable substitution, and
// schema validation, following the teacher's two-step
// "compile schema string, validate instance" pattern.
package config

// documentSchema is the JSON Schema the decoded configuration document
// is checked against before any task is constructed. It intentionally
// allows additional properties inside `conf` (element-specific, opaque
// to the runner) while pinning down the shape of everything else.
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "dcrunner pipeline configuration",
	"type": "object",
	"properties": {
		"runner": {
			"type": "object",
			"properties": {
				"channel_capacity": {"type": "integer", "minimum": 1},
				"termination_timeout": {"type": "string"},
				"finalizer_timeout": {"type": "string"},
				"metadata_padding": {"type": "integer", "minimum": 0}
			},
			"additionalProperties": false
		},
		"plugin": {
			"type": "object",
			"properties": {
				"plugin_files": {"type": "array", "items": {"type": "string"}},
				"on_duplicate": {"type": "string", "enum": ["warn", "fatal"]}
			},
			"additionalProperties": false
		},
		"tasks": {"type": "array", "items": {"$ref": "#/definitions/task"}},
		"task": {"type": "array", "items": {"$ref": "#/definitions/task"}},
		"bg_processes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"command": {"type": "string"},
					"wait_signal": {"type": "string"}
				},
				"required": ["command"],
				"additionalProperties": false
			}
		},
		"before_task": {"type": "array", "items": {"type": "string"}},
		"before_script": {"type": "array", "items": {"type": "string"}},
		"after_task": {"type": "array", "items": {"type": "string"}},
		"after_script": {"type": "array", "items": {"type": "string"}},
		"admin_api": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"addr": {"type": "string"},
				"jwt_secret": {"type": "string"},
				"rate_limit_rps": {"type": "number"}
			},
			"additionalProperties": false
		},
		"ledger": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"driver": {"type": "string", "enum": ["sqlite3", "mysql"]},
				"dsn": {"type": "string"}
			},
			"additionalProperties": false
		}
	},
	"definitions": {
		"task": {
			"type": "object",
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"element": {"type": "string", "minLength": 1},
				"from": {
					"type": "array",
					"items": {"type": "array", "items": {"type": "string"}}
				},
				"conf_file": {"type": "string"},
				"conf": {}
			},
			"required": ["id", "element"],
			"additionalProperties": false
		}
	},
	"additionalProperties": false
}`
