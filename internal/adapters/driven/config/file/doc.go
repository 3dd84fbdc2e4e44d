// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration at ~/.lectern/config.toml
//   - PromptStore: editable answer templates under ~/.lectern/prompts
package file
