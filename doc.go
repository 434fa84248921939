// Package authcore is the authentication and session-lifecycle core of a
// multi-tenant application: it validates credentials, enforces lockout and
// password-aging policy, issues and verifies two-factor codes, and resolves
// which tenant database a validated login is routed to.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator contracts ([CredentialStore], [SecretCodec], [Mailer]),
// and value types (SessionDescriptor, TenantConnection, AuditEvent). Flow
// orchestration and policy decisions live here and under internal/; storage
// adapters live under stores/ and are never required, since any
// [CredentialStore] implementation will do.
//
// # What this package must NOT do
//
//   - Own a database or SMTP connection. All persistence and delivery goes
//     through the injected collaborators.
//   - Render transport artifacts (HTTP responses, cookies, QR images). The
//     engine returns descriptors and codes; the host owns the wire.
//   - Swallow a policy rejection. Every per-account rejection writes an audit
//     row through the store before it is returned to the caller.
package authcore
