// Package remote implements the account-service contract over JSON/HTTP
// for deployments where the flow client and the account backend are
// separate processes.
//
// Every operation is a POST with a JSON body. The client stamps each
// request with a generated request ID and forwards the caller's IP and
// User-Agent when they are present on the context, so the backend can
// rate-limit and audit the real client rather than the proxy host.
//
// Failures surface as plain errors whose text is safe to show an end
// user: the backend's own error message when it sent one, a generic
// status line otherwise. Transport details stay in the logs.
package remote
