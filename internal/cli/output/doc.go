// Package output renders CLI results as tables, JSON, JSON lines or YAML.
package output
