// Package normalisers provides page extractors that turn book files into
// page-attributed text. Each extractor handles specific file extensions.
//
// Extractors are registered with the Registry at startup.
package normalisers
