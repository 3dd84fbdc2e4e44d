// Package services holds the question answering pipeline: the embedding
// gateway, query processor, response generator, ingestion and settings.
// Each service implements a driving port and reaches infrastructure only
// through driven ports, so tests run them against in-memory fakes.
package services
