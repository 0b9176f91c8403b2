// Package auth is an authentication core that issues and validates bearer
// credentials for two identity flows: password signup/login and Google
// identity federation.
//
// Accounts:
//   - Exactly one Account exists per email. Uniqueness is enforced by the
//     AccountStore implementation (a unique index or an atomic set-if-absent),
//     never by an application level check alone. Store violations surface as
//     ErrDuplicateAccount.
//   - Emails are normalized with NormalizeEmail before they reach a store.
//   - Federation-only accounts carry a per-account unusable credential secret
//     so they can never be reached through password login.
//
// Flows:
//   - Auther wires the Provisioner, CredentialVerifier, an IdentityExchanger
//     and the TokenService into Signup, Login and OAuthLogin. Every flow ends
//     by minting a token that carries only the account id as subject.
//
// Activity sinks:
//   - ActivitySink receives signup and login events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package auth
