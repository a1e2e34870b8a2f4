// Package confloader loads layered configuration with koanf.
//
// Priority, highest first:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (VERILOG_SECTION_KEY)
//  3. YAML configuration file
//  4. Defaults already present in the target struct
//
// Watcher reports changes to the configuration file so long-running
// processes can re-read settings that are safe to change live.
package confloader
