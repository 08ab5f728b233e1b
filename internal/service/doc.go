// Package service contains the application-level use cases that span more
// than one repository. It receives store interfaces through constructor
// injection and owns the transactional boundaries between them, never
// depending on a specific infrastructure implementation.
package service
