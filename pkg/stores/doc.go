// Package stores provides persistence for the installer phases: a
// file-backed key/value store that carries state from one phase process to
// the next, the temporary installation directory it lives in, and a SQLite
// journal of phase runs.
package stores
