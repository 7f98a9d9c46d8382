// Package domain defines the core persisted types for the PhishDeck platform.
//
// Types in this package are pure value objects with no behavior beyond
// validation, no database dependencies, and no HTTP concerns. They are the
// shared language between the storage contract, its backends, and the API.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags define the canonical field names; backends own any
//     translation to their native representation
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
