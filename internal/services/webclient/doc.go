// Package webclient wraps outbound HTTP for the image and price collaborators.
//
// Every Client carries its own token-bucket limiter, an explicit per-request
// timeout, a body size cap, and a fixed User-Agent. Non-2xx responses are
// returned as *StatusError classified as transient (or not found for 404) so
// callers can degrade to an empty result for the current pass.
package webclient
