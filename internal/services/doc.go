// Package services implements the business logic that coordinates across repositories.
// DeleteAccountService, for example, removes an account from every subsystem that references
// it (package ownership, organizations, credentials, reserved namespaces, support tickets) and
// records the outcome in the audit log.
package services
