// Package iam provides authentication and account management for the
// multi-tenant club platform.
//
// # Overview
//
// The iam package is organized into sub-packages that work together:
//
//   - iam/principal  — the account entity (admins and coaches), repository
//   - iam/session    — opaque refresh-token sessions with rotation
//   - iam/loginlimit — per-identifier/IP failed-attempt rate limiting
//   - iam/auth       — signup, login, tokens, 2FA, email flows, middleware
//   - iam/coach      — admin-facing coach management and super-admin tools
//
// # Architecture
//
// Each sub-domain follows the same layering:
//
//	HTTP Handler  →  Service Layer  →  Repository Interface  →  Postgres
//
// and exposes its own error registry (e.g. "IAM", "AUTH", "LIMIT").
//
// # Principals
//
// Two kinds of account share one table and one token pipeline:
//
//  1. Admins — email + password (argon2id), optional TOTP 2FA, email
//     verification, password reset links.
//
//  2. Coaches — username + 6-digit PIN (argon2id), created by their club's
//     admin, PIN reset links sent to the coach's email.
//
// Every principal belongs to a tenant (a club) identified by subdomain.
// Super admins cross tenant boundaries; everyone else is scoped to their own.
//
// # Tokens
//
// Successful authentication yields a short-lived HS256 JWT access token and
// an opaque refresh token. Refresh tokens are 32 random bytes hex-encoded;
// only their SHA-256 hash is stored. Refresh rotates the token atomically,
// so a replayed old token fails with 401.
//
// Access token claims:
//
//	{
//	  "clubId":   "<PrincipalID>",
//	  "tenantId": "<TenantID>",
//	  "role":     "admin" | "coach" | "super_admin",
//	  "email":    "user@example.com",
//	  "type":     "access",
//	  "iss": "klubhub", "sub": "<PrincipalID>", "iat": ..., "exp": ...
//	}
//
// Default TTLs: access 15 minutes, refresh 7 days.
//
// # Enumeration Resistance
//
// Login, forgot-password and register respond identically whether or not the
// account exists. Handlers must not leak existence through status codes,
// messages or timing-visible side effects.
//
// # Error Response Format
//
// All errors follow the errx structured format:
//
//	{
//	  "code":    "AUTH.INVALID_REFRESH_TOKEN",
//	  "message": "Invalid refresh token",
//	  "type":    "AUTHORIZATION",
//	  "details": { ... }
//	}
//
// Validation failures use a flat shape the frontends rely on:
//
//	{ "error": "Validation error", "details": [ { "path": "email", "message": "..." } ] }
//
// # Infrastructure Dependencies
//
// Required: PostgreSQL (principals, sessions, login_attempts).
// Optional: Redis for the background mail queue; without it email falls back
// to in-process async sends.
package iam
